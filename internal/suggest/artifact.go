package suggest

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Artifact kinds. A snapshot carries the whole fitted classifier; a pair
// carries only the vectorizer and the forest.
const (
	KindSnapshot = "snapshot"
	KindPair     = "pair"
)

const artifactVersion = 1

type envelope struct {
	Kind     string    `json:"kind"`
	Version  int       `json:"version"`
	Snapshot *snapshot `json:"snapshot,omitempty"`
	Pair     *pair     `json:"pair,omitempty"`
}

type snapshot struct {
	Vectorizer   *Vectorizer `json:"vectorizer"`
	Forest       *Forest     `json:"forest"`
	Patterns     []string    `json:"patterns"`
	PositiveRate float64     `json:"positive_rate"`
	MaxFeatures  int         `json:"max_features"`
	Trees        int         `json:"trees"`
	Seed         int64       `json:"seed"`
}

type pair struct {
	Vectorizer *Vectorizer `json:"vectorizer"`
	Forest     *Forest     `json:"forest"`
}

type UnrecognizedModelFormatError struct {
	Reason string
	Err    error
}

func (e *UnrecognizedModelFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unrecognized model format: %s: %v", e.Reason, e.Err)
	}
	return "unrecognized model format: " + e.Reason
}

func (e *UnrecognizedModelFormatError) Unwrap() error { return e.Err }

// Save writes a full snapshot.
func (c *Classifier) Save(w io.Writer) error {
	c.mu.RLock()
	env := envelope{Kind: KindSnapshot, Version: artifactVersion}
	if c.forest != nil {
		env.Snapshot = &snapshot{
			Vectorizer:   c.vec,
			Forest:       c.forest,
			Patterns:     c.patterns,
			PositiveRate: c.posRate,
			MaxFeatures:  c.cfg.MaxFeatures,
			Trees:        c.cfg.Trees,
			Seed:         c.cfg.Seed,
		}
	}
	c.mu.RUnlock()
	if env.Snapshot == nil {
		return ErrNotTrained
	}
	return writeEnvelope(w, env)
}

// SavePair writes only the vectorizer and the forest.
func (c *Classifier) SavePair(w io.Writer) error {
	c.mu.RLock()
	vec, forest := c.vec, c.forest
	c.mu.RUnlock()
	if forest == nil {
		return ErrNotTrained
	}
	return writeEnvelope(w, envelope{Kind: KindPair, Version: artifactVersion, Pair: &pair{Vectorizer: vec, Forest: forest}})
}

func writeEnvelope(w io.Writer, env envelope) error {
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(env); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode model: %w", err)
	}
	return zw.Close()
}

// Load replaces the fitted model with the artifact read from r.
func (c *Classifier) Load(r io.Reader) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return &UnrecognizedModelFormatError{Reason: "not gzip", Err: err}
	}
	defer zr.Close()

	var env envelope
	if err := json.NewDecoder(zr).Decode(&env); err != nil {
		return &UnrecognizedModelFormatError{Reason: "bad json", Err: err}
	}

	var (
		vec      *Vectorizer
		forest   *Forest
		patterns []string
		rate     float64
	)
	switch env.Kind {
	case KindSnapshot:
		if env.Snapshot == nil {
			return &UnrecognizedModelFormatError{Reason: "snapshot payload missing"}
		}
		vec, forest = env.Snapshot.Vectorizer, env.Snapshot.Forest
		patterns, rate = env.Snapshot.Patterns, env.Snapshot.PositiveRate
	case KindPair:
		if env.Pair == nil {
			return &UnrecognizedModelFormatError{Reason: "pair payload missing"}
		}
		vec, forest = env.Pair.Vectorizer, env.Pair.Forest
	default:
		return &UnrecognizedModelFormatError{Reason: fmt.Sprintf("unknown kind %q", env.Kind)}
	}
	if !vec.valid() || !forest.valid() || forest.NFeatures != vec.Len() {
		return &UnrecognizedModelFormatError{Reason: "inconsistent model payload"}
	}

	c.mu.Lock()
	c.vec, c.forest, c.patterns, c.posRate = vec, forest, patterns, rate
	c.mu.Unlock()
	return nil
}

// SaveFile writes the artifact of the given kind atomically, creating the
// parent directory if needed. An empty kind means KindSnapshot.
func (c *Classifier) SaveFile(path, kind string) error {
	write := c.Save
	switch kind {
	case "", KindSnapshot:
	case KindPair:
		write = c.SavePair
	default:
		return fmt.Errorf("unknown artifact kind %q", kind)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".model-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (c *Classifier) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Load(f)
}
