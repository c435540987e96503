// Package backup writes one JSON file per collector run so a failed
// enrichment or commit can be replayed.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"review_insights/internal/domain"
)

type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{dir: dir}
}

// FileName is scrape-<unix seconds>-<run id>.json.
func FileName(res domain.ScrapeResult) string {
	return fmt.Sprintf("scrape-%d-%s.json", res.ScrapedAt.Unix(), res.RunID)
}

// Write stores res as indented UTF-8 JSON without HTML escaping. The file
// appears atomically.
func (w *Writer) Write(res domain.ScrapeResult) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("backup dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(res); err != nil {
		return "", fmt.Errorf("encode dump: %w", err)
	}

	path := filepath.Join(w.dir, FileName(res))
	tmp, err := os.CreateTemp(w.dir, ".scrape-*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
