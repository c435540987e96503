package domain

import (
	"context"
	"time"
)

type ReviewStore interface {
	// InsertBatch stores all reviews of one business in a single transaction.
	// It returns how many rows were skipped because their SourceID already exists.
	InsertBatch(ctx context.Context, businessID int64, rs []Review) (skipped int, err error)

	ListReviews(ctx context.Context, businessID int64, pg PageQuery) (ReviewsPage, error)
	CountReviews(ctx context.Context, businessID int64) (int, error)
}

// Driver is an acquired browser collector. Close must always be called.
type Driver interface {
	FetchReviews(ctx context.Context, url string) (RawScrape, error)
	Close() error
}

type DriverFactory interface {
	Acquire(ctx context.Context) (Driver, error)
}

// ProcessReaper kills orphaned browser worker processes.
type ProcessReaper interface {
	Reap(ctx context.Context) (int, error)
}

type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
}

type SuggestionDetector interface {
	Predict(text string) (bool, error)
}

type DumpWriter interface {
	Write(res ScrapeResult) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Locker hands out cross-process exclusive leases.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

type PageQuery struct {
	Limit int
	Sort  string
}

type ReviewsPage struct {
	Items []Review `json:"items"`
	// Total counts every stored review of the business, not just this page.
	Total int `json:"total"`
}

// RunLog records finished ingestion runs.
type RunLog interface {
	LogRun(ctx context.Context, rep IngestionReport, outcome string, runErr error) error
}
