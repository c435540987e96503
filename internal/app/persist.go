package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"review_insights/internal/adapters/observability"
	"review_insights/internal/domain"
)

type Persister struct {
	store domain.ReviewStore
	cache domain.Cache
}

// NewPersister takes an optional cache whose review pages are invalidated
// after each commit.
func NewPersister(s domain.ReviewStore, c domain.Cache) *Persister {
	return &Persister{store: s, cache: c}
}

// Persist stores the batch in one transaction. Items that cannot be turned
// into a Review are skipped and counted as failed; a commit failure rolls
// back everything and returns *domain.PersistenceCommitError.
func (p *Persister) Persist(ctx context.Context, items []domain.EnrichedReview, businessID int64) (domain.PersistResult, error) {
	var res domain.PersistResult
	rows := make([]domain.Review, 0, len(items))
	for i, er := range items {
		r, err := toReview(er, businessID)
		if err != nil {
			err = &domain.PersistenceConstructionError{Index: i, Err: err}
			log.Warn().Err(err).Str("source_id", er.SourceID).Msg("review skipped")
			res.Failed++
			continue
		}
		rows = append(rows, r)
	}
	observability.ObserveItems("persist", "invalid", res.Failed)
	if len(rows) == 0 {
		return res, nil
	}

	skipped, err := p.store.InsertBatch(ctx, businessID, rows)
	if err != nil {
		observability.ObserveItems("persist", "rolled_back", len(rows))
		return res, &domain.PersistenceCommitError{BusinessID: businessID, Count: len(rows), Err: err}
	}
	res.Succeeded = len(rows) - skipped
	res.Duplicates = skipped
	observability.ObserveItems("persist", "ok", res.Succeeded)
	observability.ObserveItems("persist", "duplicate", skipped)

	if p.cache != nil {
		invalidateReviews(ctx, p.cache, businessID)
	}
	return res, nil
}

func toReview(er domain.EnrichedReview, businessID int64) (domain.Review, error) {
	if businessID <= 0 {
		return domain.Review{}, domain.ErrNoBusiness
	}
	if er.Sentiment == nil {
		return domain.Review{}, domain.ErrNoSentiment
	}
	s := er.Sentiment
	if math.IsNaN(s.Score) || s.Score < -1 || s.Score > 1 {
		return domain.Review{}, fmt.Errorf("%w: %v", domain.ErrScoreRange, s.Score)
	}
	topics := er.Topics
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return domain.Review{
		BusinessID:           businessID,
		SourceID:             er.SourceID,
		Source:               er.Source,
		Content:              er.Content,
		Rating:               er.Rating,
		RetrievedAt:          er.RetrievedAt,
		ReviewDate:           er.ReviewDate,
		ReviewDateEstimate:   er.ReviewDateEstimate,
		TimePeriodCode:       er.TimePeriodCode,
		RelativeDateOriginal: er.RelativeDateOriginal,
		Username:             er.Username,
		UserReviewCount:      er.UserReviewCount,
		UserProfileURL:       er.UserProfileURL,
		SentiScore:           s.Score,
		SentimentMagnitude:   s.Magnitude,
		SentimentDescription: s.Description,
		Topics:               strings.Join(topics, ", "),
		IsSuggestion:         er.IsSuggestion,
	}, nil
}
