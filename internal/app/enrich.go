package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"review_insights/internal/adapters/observability"
	"review_insights/internal/domain"
)

// Failure policies for the primary analyzer.
const (
	OnErrorFallback = "fallback"
	OnErrorDrop     = "drop"
)

const maxTopics = 3

// Strategy names an analyzer so results can record where they came from.
type Strategy struct {
	Name     string
	Analyzer domain.SentimentAnalyzer
}

type EnricherConfig struct {
	OnError  string
	Workers  int
	CacheTTL time.Duration
}

type Enricher struct {
	primary  Strategy
	fallback *Strategy
	detector domain.SuggestionDetector
	cache    domain.Cache
	cfg      EnricherConfig
}

// NewEnricher wires the analyzers. fallback, detector and cache may be nil.
func NewEnricher(primary Strategy, fallback *Strategy, det domain.SuggestionDetector, cache domain.Cache, cfg EnricherConfig) *Enricher {
	if cfg.OnError != OnErrorDrop {
		cfg.OnError = OnErrorFallback
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &Enricher{primary: primary, fallback: fallback, detector: det, cache: cache, cfg: cfg}
}

// Enrich scores one review. Errors are *domain.EnrichmentError and mean the
// review must not be persisted.
func (e *Enricher) Enrich(ctx context.Context, nr domain.NormalizedReview) (domain.EnrichedReview, error) {
	out := domain.EnrichedReview{NormalizedReview: nr, Topics: []string{}}

	if strings.TrimSpace(nr.Content) == "" {
		score := 0.0
		if nr.Rating != nil {
			score = clamp((*nr.Rating-3)/2, -1, 1)
		}
		out.Sentiment = &domain.Sentiment{Score: score, Magnitude: math.Abs(score), Description: domain.Describe(score)}
		out.SentimentSource = domain.AnalyzerLocal
		return out, nil
	}

	a, source, err := e.analyze(ctx, nr)
	if err != nil {
		return out, &domain.EnrichmentError{SourceID: nr.SourceID, Err: err}
	}
	score := clamp(a.Score, -1, 1)
	out.Sentiment = &domain.Sentiment{
		Score:       score,
		Magnitude:   math.Max(0, a.Magnitude),
		Description: domain.Describe(score),
	}
	out.SentimentSource = source
	out.Topics = topTopics(a.Entities, maxTopics)
	out.IsSuggestion = e.detect(nr)
	return out, nil
}

func (e *Enricher) analyze(ctx context.Context, nr domain.NormalizedReview) (domain.Analysis, string, error) {
	key := cacheKey(nr.Content)
	var a domain.Analysis
	if e.cache != nil {
		if ok, err := e.cache.Get(ctx, key, &a); err == nil && ok {
			return a, e.primary.Name, nil
		} else if err != nil {
			log.Debug().Err(err).Str("key", key).Msg("nlp cache read failed")
		}
	}

	a, err := e.primary.Analyzer.Analyze(ctx, nr.Content)
	if err == nil {
		if e.cache != nil {
			if err := e.cache.Set(ctx, key, a, int(e.cfg.CacheTTL.Seconds())); err != nil {
				log.Debug().Err(err).Str("key", key).Msg("nlp cache write failed")
			}
		}
		return a, e.primary.Name, nil
	}

	if e.cfg.OnError == OnErrorDrop || e.fallback == nil || ctx.Err() != nil {
		return domain.Analysis{}, "", err
	}
	log.Warn().Err(err).Str("source_id", nr.SourceID).Str("fallback", e.fallback.Name).Msg("primary analyzer failed, falling back")
	observability.ObserveItem("enrich", "fallback")
	fa, ferr := e.fallback.Analyzer.Analyze(ctx, nr.Content)
	if ferr != nil {
		return domain.Analysis{}, "", ferr
	}
	return fa, e.fallback.Name, nil
}

func (e *Enricher) detect(nr domain.NormalizedReview) bool {
	if e.detector == nil {
		return false
	}
	ok, err := e.detector.Predict(strings.ToLower(nr.Content))
	if err != nil {
		log.Warn().Err(err).Str("source_id", nr.SourceID).Msg("suggestion detection failed")
		return false
	}
	return ok
}

// EnrichAll runs Enrich on a bounded pool and waits for every item.
// Output keeps input order; failed items are dropped and counted.
func (e *Enricher) EnrichAll(ctx context.Context, items []domain.NormalizedReview) ([]domain.EnrichedReview, int) {
	results := make([]*domain.EnrichedReview, len(items))
	sem := semaphore.NewWeighted(int64(e.cfg.Workers))
	var wg sync.WaitGroup

	for i := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Int("remaining", len(items)-i).Msg("enrichment cancelled")
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			er, err := e.Enrich(ctx, items[i])
			if err != nil {
				observability.ObserveItem("enrich", "dropped")
				log.Warn().Err(err).Msg("review dropped from enrichment")
				return
			}
			observability.ObserveItem("enrich", "ok")
			results[i] = &er
		}(i)
	}
	wg.Wait()

	out := make([]domain.EnrichedReview, 0, len(items))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, len(items) - len(out)
}

// topTopics keeps the n most salient distinct entity names. Ties keep the
// analyzer's order.
func topTopics(ents []domain.Entity, n int) []string {
	sorted := append([]domain.Entity(nil), ents...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Salience > sorted[j].Salience })
	out := make([]string, 0, n)
	seen := map[string]struct{}{}
	for _, en := range sorted {
		name := strings.TrimSpace(en.Name)
		k := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, name)
		if len(out) == n {
			break
		}
	}
	return out
}

func cacheKey(content string) string {
	sum := sha1.Sum([]byte(content))
	return "nlp:" + hex.EncodeToString(sum[:])
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
