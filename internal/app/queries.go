package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"review_insights/internal/domain"
)

const (
	DefaultReviewLimit = 50
	DefaultReviewSort  = "-review_date"
)

// cached page sizes cleared after a commit
var invalidatedLimits = []int{DefaultReviewLimit, 100, 200}

var sortKeys = []string{"-review_date", "review_date", "-senti_score", "senti_score", "-rating"}

// ValidSort reports whether s is a supported review ordering.
func ValidSort(s string) bool {
	for _, k := range sortKeys {
		if k == s {
			return true
		}
	}
	return false
}

type QueryService struct {
	store    domain.ReviewStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(s domain.ReviewStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{store: s, cache: c, cacheTTL: ttl}
}

func reviewsKey(id int64, limit int, sort string) string {
	return fmt.Sprintf("reviews:%d:%d:%s", id, limit, sort)
}

func (s *QueryService) ListReviews(ctx context.Context, id int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	if pg.Limit <= 0 {
		pg.Limit = DefaultReviewLimit
	}
	if pg.Sort == "" {
		pg.Sort = DefaultReviewSort
	}
	key := reviewsKey(id, pg.Limit, pg.Sort)
	var out domain.ReviewsPage
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	rp, err := s.store.ListReviews(ctx, id, pg)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	cp := copyReviewsPage(rp)
	if cp.Total, err = s.CountReviews(ctx, id); err != nil {
		return domain.ReviewsPage{}, err
	}

	if s.cache != nil {
		if b, _ := json.Marshal(cp); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
		}
	}
	return cp, nil
}

func (s *QueryService) CountReviews(ctx context.Context, id int64) (int, error) {
	return s.store.CountReviews(ctx, id)
}

func copyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{Items: []domain.Review{}}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Review, n)
		copy(out.Items, in.Items)
	}
	return out
}

func invalidateReviews(ctx context.Context, c domain.Cache, id int64) {
	for _, lim := range invalidatedLimits {
		for _, sort := range sortKeys {
			_ = c.Del(ctx, reviewsKey(id, lim, sort))
		}
	}
}
