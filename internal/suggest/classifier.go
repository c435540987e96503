// Package suggest detects improvement suggestions in review text with a
// weakly supervised TF-IDF + random forest model. Training labels come from
// a PatternSet and are never human-verified, so the model inherits the
// pattern list's bias.
package suggest

import (
	"errors"
	"strings"
	"sync"
)

const (
	DefaultThreshold   = 0.5
	DefaultMaxFeatures = 5000
	DefaultTrees       = 100
	DefaultSeed        = 42
)

var (
	ErrNotTrained  = errors.New("suggestion classifier is not trained")
	ErrEmptyCorpus = errors.New("training corpus is empty")
)

type Config struct {
	MaxFeatures int
	Trees       int
	Seed        int64
}

func (c Config) withDefaults() Config {
	if c.MaxFeatures <= 0 {
		c.MaxFeatures = DefaultMaxFeatures
	}
	if c.Trees <= 0 {
		c.Trees = DefaultTrees
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	return c
}

// Classifier is safe for concurrent use. Fit and Load swap the fitted model
// atomically; predictions never observe a half-built model.
type Classifier struct {
	cfg Config

	mu       sync.RWMutex
	vec      *Vectorizer
	forest   *Forest
	patterns []string
	posRate  float64
}

func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg.withDefaults()}
}

// Fit labels the corpus with ps, trains the vectorizer and the forest and
// returns the share of texts labelled as suggestions.
func (c *Classifier) Fit(corpus []string, ps PatternSet) (float64, error) {
	if len(corpus) == 0 {
		return 0, ErrEmptyCorpus
	}
	docs := make([][]string, len(corpus))
	y := make([]int, len(corpus))
	pos := 0
	for i, text := range corpus {
		docs[i] = preprocess(text)
		if ps.Match(text) {
			y[i] = 1
			pos++
		}
	}

	vec := fitVectorizer(docs, c.cfg.MaxFeatures)
	X := make([]sparseVec, len(docs))
	for i, d := range docs {
		X[i] = vec.transform(d)
	}
	forest := fitForest(X, y, vec.Len(), forestParams{trees: c.cfg.Trees, seed: c.cfg.Seed})
	rate := float64(pos) / float64(len(corpus))

	c.mu.Lock()
	c.vec, c.forest, c.patterns, c.posRate = vec, forest, ps.Patterns(), rate
	c.mu.Unlock()
	return rate, nil
}

func (c *Classifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.forest != nil
}

// PredictProba returns the positive-class probability. Unseen terms weigh zero.
func (c *Classifier) PredictProba(text string) (float64, error) {
	c.mu.RLock()
	vec, forest := c.vec, c.forest
	c.mu.RUnlock()
	if forest == nil {
		return 0, ErrNotTrained
	}
	return forest.proba(vec.transform(preprocess(text))), nil
}

func (c *Classifier) Predict(text string, threshold float64) (bool, error) {
	p, err := c.PredictProba(text)
	if err != nil {
		return false, err
	}
	return p >= threshold, nil
}

// Detector binds a threshold so the classifier can serve as a per-review
// suggestion detector.
func (c *Classifier) Detector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{c: c, threshold: threshold}
}

type Detector struct {
	c         *Classifier
	threshold float64
}

func (d *Detector) Predict(text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}
	return d.c.Predict(strings.ToLower(text), d.threshold)
}

type Evaluation struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	// Confusion[actual][predicted], 0 = no suggestion, 1 = suggestion.
	Confusion [2][2]int `json:"confusion"`
}

// Evaluate scores predictions at DefaultThreshold against labelled data.
func (c *Classifier) Evaluate(texts []string, labels []bool) (Evaluation, error) {
	var ev Evaluation
	if len(texts) != len(labels) {
		return ev, errors.New("texts and labels differ in length")
	}
	if len(texts) == 0 {
		return ev, ErrEmptyCorpus
	}
	for i, t := range texts {
		got, err := c.Predict(t, DefaultThreshold)
		if err != nil {
			return ev, err
		}
		ev.Confusion[b2i(labels[i])][b2i(got)]++
	}
	tn, fp := float64(ev.Confusion[0][0]), float64(ev.Confusion[0][1])
	fn, tp := float64(ev.Confusion[1][0]), float64(ev.Confusion[1][1])
	ev.Accuracy = (tp + tn) / float64(len(texts))
	if tp+fp > 0 {
		ev.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		ev.Recall = tp / (tp + fn)
	}
	if ev.Precision+ev.Recall > 0 {
		ev.F1 = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}
	return ev, nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
