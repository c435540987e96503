package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"review_insights/internal/domain"
)

// ---- store ----

type fakeStore struct {
	mu      sync.Mutex
	rows    []domain.Review
	skipped int
	err     error
	page    domain.ReviewsPage
	lists   int
}

func (f *fakeStore) InsertBatch(ctx context.Context, businessID int64, rs []domain.Review) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.rows = append(f.rows, rs[:len(rs)-f.skipped]...)
	return f.skipped, nil
}

func (f *fakeStore) ListReviews(ctx context.Context, businessID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	return f.page, nil
}

func (f *fakeStore) CountReviews(ctx context.Context, businessID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

// ---- cache (JSON round trip, like redis) ----

type fakeCache struct {
	mu      sync.Mutex
	store   map[string][]byte
	deleted []string
	getErr  error
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.deleted = append(c.deleted, key)
	return nil
}

// ---- analyzers ----

type fakeAnalyzer struct {
	calls atomic.Int32
	fn    func(text string) (domain.Analysis, error)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string) (domain.Analysis, error) {
	f.calls.Add(1)
	return f.fn(text)
}

func constAnalyzer(score float64, ents ...domain.Entity) *fakeAnalyzer {
	return &fakeAnalyzer{fn: func(string) (domain.Analysis, error) {
		return domain.Analysis{Score: score, Magnitude: 0.8, Entities: ents}, nil
	}}
}

func failingAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{fn: func(string) (domain.Analysis, error) {
		return domain.Analysis{}, errors.New("remote unavailable")
	}}
}

type fakeDetector struct {
	err error
}

func (d fakeDetector) Predict(text string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return len(text) > 0 && text[0] == 's', nil
}

// ---- collector collaborators ----

type fakeDriver struct {
	raw     domain.RawScrape
	err     error
	block   chan struct{}
	closed  atomic.Int32
	closeCh chan struct{}
	once    sync.Once
}

func (d *fakeDriver) FetchReviews(ctx context.Context, url string) (domain.RawScrape, error) {
	if d.block != nil {
		close(d.block)
		select {
		case <-d.closeCh:
			return domain.RawScrape{}, errors.New("browser closed")
		case <-ctx.Done():
			return domain.RawScrape{}, ctx.Err()
		}
	}
	return d.raw, d.err
}

func (d *fakeDriver) Close() error {
	d.closed.Add(1)
	if d.closeCh != nil {
		d.once.Do(func() { close(d.closeCh) })
	}
	return nil
}

type fakeFactory struct {
	drv      *fakeDriver
	err      error
	acquired atomic.Int32
}

func (f *fakeFactory) Acquire(ctx context.Context) (domain.Driver, error) {
	f.acquired.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.drv, nil
}

type fakeReaper struct {
	calls atomic.Int32
	err   error
}

func (r *fakeReaper) Reap(ctx context.Context) (int, error) {
	r.calls.Add(1)
	return 0, r.err
}

type fakeDumps struct {
	mu      sync.Mutex
	written []domain.ScrapeResult
	err     error
}

func (d *fakeDumps) Write(res domain.ScrapeResult) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	d.written = append(d.written, res)
	return "/tmp/scrape-" + res.RunID + ".json", nil
}

type fakeLocker struct {
	held     bool
	unlocked atomic.Int32
}

func (l *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() { l.unlocked.Add(1) }, nil
}

// ---- builders ----

type fakeRunLog struct {
	mu       sync.Mutex
	outcomes []string
}

func (l *fakeRunLog) LogRun(ctx context.Context, rep domain.IngestionReport, outcome string, runErr error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, outcome)
	return nil
}

func ptr[T any](v T) *T { return &v }

func rawReviews(n int) []domain.RawReviewRecord {
	out := make([]domain.RawReviewRecord, n)
	for i := range out {
		out[i] = domain.RawReviewRecord{
			"caption":        "review number " + string(rune('a'+i)),
			"rating":         4.0,
			"retrieval_date": "2025-03-10T12:00:00Z",
			"relative_date":  "2 days ago",
			"username":       "user",
			"id_review":      "id-" + string(rune('a'+i)),
		}
	}
	return out
}

func enrichedReview(id string, score float64) domain.EnrichedReview {
	t := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return domain.EnrichedReview{
		NormalizedReview: domain.NormalizedReview{
			Source: domain.SourceGoogle, SourceID: id, Content: "text " + id,
			Rating: ptr(4.0), RetrievedAt: t, ReviewDate: t, ReviewDateEstimate: t,
		},
		Sentiment:       &domain.Sentiment{Score: score, Magnitude: 0.5, Description: domain.Describe(score)},
		Topics:          []string{"food", "staff"},
		SentimentSource: domain.AnalyzerRemote,
	}
}
