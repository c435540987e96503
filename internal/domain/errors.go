package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLockHeld      = errors.New("collector lock held by another run")
	ErrNoSentiment   = errors.New("review has no sentiment")
	ErrNoBusiness    = errors.New("business id is required")
	ErrScoreRange    = errors.New("sentiment score out of range")
	ErrNoRetrievedAt = errors.New("retrieval date missing or unparsable")
	ErrDateRange     = errors.New("review date outside years 1000-9999")
)

// CollectionError is fatal for a run: the driver could not be acquired or driven.
type CollectionError struct {
	URL string
	Err error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.URL, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// NormalizationError drops a single raw record.
type NormalizationError struct {
	Index int
	Err   error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize record %d: %v", e.Index, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// EnrichmentError is a per-review analyzer failure.
type EnrichmentError struct {
	SourceID string
	Err      error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich review %s: %v", e.SourceID, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// PersistenceConstructionError skips a single review before commit.
type PersistenceConstructionError struct {
	Index int
	Err   error
}

func (e *PersistenceConstructionError) Error() string {
	return fmt.Sprintf("build review entity %d: %v", e.Index, e.Err)
}

func (e *PersistenceConstructionError) Unwrap() error { return e.Err }

// PersistenceCommitError means the whole batch was rolled back.
type PersistenceCommitError struct {
	BusinessID int64
	Count      int
	Err        error
}

func (e *PersistenceCommitError) Error() string {
	return fmt.Sprintf("commit %d reviews for business %d: %v", e.Count, e.BusinessID, e.Err)
}

func (e *PersistenceCommitError) Unwrap() error { return e.Err }
