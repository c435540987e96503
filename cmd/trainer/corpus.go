package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"review_insights/internal/suggest"
)

// readCorpus reads one text per non-blank line.
func readCorpus(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

// readLabelled reads "label<TAB>text" lines where label is 1/0 or true/false.
func readLabelled(r io.Reader) ([]string, []bool, error) {
	var (
		texts  []string
		labels []bool
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lbl, text, ok := strings.Cut(line, "\t")
		if !ok || strings.TrimSpace(text) == "" {
			return nil, nil, fmt.Errorf("line %d: want label<TAB>text", n)
		}
		switch strings.ToLower(strings.TrimSpace(lbl)) {
		case "1", "true":
			labels = append(labels, true)
		case "0", "false":
			labels = append(labels, false)
		default:
			return nil, nil, fmt.Errorf("line %d: bad label %q", n, lbl)
		}
		texts = append(texts, strings.TrimSpace(text))
	}
	return texts, labels, sc.Err()
}

func readCorpusFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCorpus(f)
}

func evaluate(clf *suggest.Classifier, path string) (suggest.Evaluation, error) {
	f, err := os.Open(path)
	if err != nil {
		return suggest.Evaluation{}, err
	}
	defer f.Close()
	texts, labels, err := readLabelled(f)
	if err != nil {
		return suggest.Evaluation{}, err
	}
	return clf.Evaluate(texts, labels)
}
