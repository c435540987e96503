package suggest

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var defaultPatterns = []string{
	`\bshould\b`,
	`\bcould\b`,
	`\bwould be nice\b`,
	`\bwould be better\b`,
	`\bneed to\b`,
	`\bneeds to\b`,
	`\bmight want to\b`,
	`\bhow about\b`,
	`\bwhy not\b`,
	`\bsuggest\b`,
	`\brecommend\b`,
	`\bwish\b`,
	`\bhope\b`,
	`\bif only\b`,
	`\bconsider\b`,
	`\bmay want to\b`,
	`\bwould like\b`,
	`\bimprove\b`,
	`\bupgrade\b`,
	`\badd\b`,
	`\bchange\b`,
	`\bprovide\b`,
}

// PatternSet is a compiled, read-only list of weak-label patterns.
// The zero value matches nothing.
type PatternSet struct {
	src []string
	res []*regexp.Regexp
}

// NewPatternSet compiles case-insensitive regular expressions.
func NewPatternSet(patterns ...string) (PatternSet, error) {
	ps := PatternSet{
		src: make([]string, 0, len(patterns)),
		res: make([]*regexp.Regexp, 0, len(patterns)),
	}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return PatternSet{}, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		ps.src = append(ps.src, p)
		ps.res = append(ps.res, re)
	}
	return ps, nil
}

// DefaultPatterns is the built-in suggestion vocabulary.
func DefaultPatterns() PatternSet {
	ps, err := NewPatternSet(defaultPatterns...)
	if err != nil {
		panic(err)
	}
	return ps
}

type patternFile struct {
	Patterns []string `yaml:"patterns"`
}

// LoadPatternSet reads a YAML file of the form `patterns: [...]`.
func LoadPatternSet(path string) (PatternSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return PatternSet{}, err
	}
	var pf patternFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return PatternSet{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(pf.Patterns) == 0 {
		return PatternSet{}, fmt.Errorf("%s: no patterns", path)
	}
	return NewPatternSet(pf.Patterns...)
}

// Match reports whether any pattern occurs in the lowercased text.
func (p PatternSet) Match(text string) bool {
	lower := strings.ToLower(text)
	for _, re := range p.res {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

func (p PatternSet) Len() int { return len(p.src) }

// Patterns returns a copy of the source expressions.
func (p PatternSet) Patterns() []string {
	return append([]string(nil), p.src...)
}

// PatternDetector flags suggestions by pattern match alone. It is the
// fallback when no trained model is available.
type PatternDetector struct {
	Set PatternSet
}

func (d PatternDetector) Predict(text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}
	return d.Set.Match(text), nil
}
