package app

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"review_insights/internal/adapters/observability"
	"review_insights/internal/domain"
	"review_insights/internal/reldate"
)

/********** alias registry (single source of truth) **********/

var rawAliases = map[string][]string{
	"caption":        {"caption", "text", "content", "review_text", "snippet"},
	"rating":         {"rating", "stars", "score", "rating.value"},
	"retrieval_date": {"retrieval_date", "retrieved_at", "retrievedAt", "scraped_at"},
	"relative_date":  {"relative_date", "relativeDate", "date", "published_at_relative"},
	"username":       {"username", "user_name", "author", "reviewer.name"},
	"user_reviews":   {"n_review_user", "user_review_count", "reviewer.review_count"},
	"user_url":       {"url_user", "user_profile_url", "reviewer.url"},
	"source_id":      {"id_review", "review_id", "id"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// firstAlias returns the first non-nil value for a named alias set.
func firstAlias(m map[string]any, key string) any {
	for _, p := range rawAliases[key] {
		if v := lookupAny(m, p); v != nil {
			return v
		}
	}
	return nil
}

// firstStr returns the first non-empty string (or stringified number) for an alias set.
func firstStr(m map[string]any, key string) string {
	for _, p := range rawAliases[key] {
		switch v := lookupAny(m, p).(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return ""
}

// getFloatFlexible: number from float64/int/string like "4,0" or "4 stars".
func getFloatFlexible(v any) *float64 {
	switch t := v.(type) {
	case float64:
		f := t
		return &f
	case float32:
		f := float64(t)
		return &f
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		if i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '/' }); i > 0 {
			s = s[:i]
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}

// getIntFlexible: int from float64/int/string like "1,204" or "Local Guide · 12 reviews".
func getIntFlexible(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case string:
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, t)
		if n, err := strconv.Atoi(digits); err == nil {
			return n
		}
	}
	return 0
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp accepts ISO-8601 strings (naive means UTC), epoch seconds and time.Time.
func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, domain.ErrNoRetrievedAt
		}
		return t, nil
	case float64:
		sec := int64(t)
		return time.Unix(sec, int64((t-float64(sec))*1e9)).UTC(), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case int:
		return time.Unix(int64(t), 0).UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, domain.ErrNoRetrievedAt
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrNoRetrievedAt, s)
	case nil:
		return time.Time{}, domain.ErrNoRetrievedAt
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", domain.ErrNoRetrievedAt, v)
	}
}

/********** normalizer **********/

// Normalizer maps raw collector records to NormalizedReview. Safe for concurrent use.
type Normalizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewNormalizer seeds the date-estimate jitter; seed 0 uses the clock.
func NewNormalizer(seed int64) *Normalizer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Normalizer{rng: rand.New(rand.NewSource(seed))}
}

// Normalize converts one record. Errors are *domain.NormalizationError.
func (n *Normalizer) Normalize(raw domain.RawReviewRecord) (domain.NormalizedReview, error) {
	return n.normalizeAt(0, raw)
}

func (n *Normalizer) normalizeAt(idx int, raw domain.RawReviewRecord) (out domain.NormalizedReview, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.NormalizationError{Index: idx, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if raw == nil {
		return out, &domain.NormalizationError{Index: idx, Err: errors.New("nil record")}
	}

	retrievedAt, err := parseTimestamp(firstAlias(raw, "retrieval_date"))
	if err != nil {
		return out, &domain.NormalizationError{Index: idx, Err: err}
	}

	phrase := firstStr(raw, "relative_date")
	reviewDate, code := reldate.Resolve(phrase, retrievedAt)

	out = domain.NormalizedReview{
		Source:               domain.SourceGoogle,
		Content:              firstStr(raw, "caption"),
		RetrievedAt:          retrievedAt,
		ReviewDate:           reviewDate,
		ReviewDateEstimate:   n.estimate(retrievedAt, reviewDate, code),
		TimePeriodCode:       code,
		RelativeDateOriginal: phrase,
		Username:             firstStr(raw, "username"),
		UserReviewCount:      getIntFlexible(firstAlias(raw, "user_reviews")),
		UserProfileURL:       firstStr(raw, "user_url"),
	}
	for _, t := range []time.Time{out.RetrievedAt, out.ReviewDate, out.ReviewDateEstimate} {
		if !storableDate(t) {
			return domain.NormalizedReview{}, &domain.NormalizationError{
				Index: idx,
				Err:   fmt.Errorf("%w: %q resolves to %s", domain.ErrDateRange, phrase, t.UTC().Format("2006-01-02")),
			}
		}
	}

	if f := getFloatFlexible(firstAlias(raw, "rating")); f != nil {
		if *f >= 0 && *f <= 5 {
			out.Rating = f
		} else {
			log.Debug().Float64("rating", *f).Int("index", idx).Msg("rating out of range, ignored")
		}
	}

	// SourceID: prefer the collector's id; else synthesize a stable hash.
	if s := firstStr(raw, "source_id"); s != "" {
		out.SourceID = s
	} else {
		sig := strings.Join([]string{out.Username, out.Content, phrase, out.UserProfileURL}, "|")
		sum := sha1.Sum([]byte(sig))
		out.SourceID = hex.EncodeToString(sum[:])
	}
	return out, nil
}

// storableDate reports whether t fits a DATETIME column and a JSON timestamp.
func storableDate(t time.Time) bool {
	y := t.UTC().Year()
	return y >= 1000 && y <= 9999
}

// estimate spreads a resolved date over its uncertainty window, never past retrieval.
func (n *Normalizer) estimate(retrievedAt, reviewDate time.Time, code int) time.Time {
	if code == reldate.CodeUnknown || code == reldate.CodeJustNow {
		return retrievedAt
	}
	w := reldate.JitterWindow(code)
	if w == 0 {
		return reviewDate
	}
	secs := int64(w / time.Second)
	n.mu.Lock()
	off := n.rng.Int63n(2*secs+1) - secs
	n.mu.Unlock()

	est := reviewDate.Add(time.Duration(off) * time.Second)
	if est.After(retrievedAt) {
		est = retrievedAt
	}
	return est
}

// NormalizeAll isolates failures per record and returns survivors plus the drop count.
func (n *Normalizer) NormalizeAll(raws []domain.RawReviewRecord) ([]domain.NormalizedReview, int) {
	out := make([]domain.NormalizedReview, 0, len(raws))
	dropped := 0
	for i, raw := range raws {
		nr, err := n.normalizeAt(i, raw)
		if err != nil {
			dropped++
			observability.ObserveItem("normalize", "dropped")
			log.Warn().Err(err).Int("index", i).Msg("raw review dropped")
			continue
		}
		observability.ObserveItem("normalize", "ok")
		out = append(out, nr)
	}
	return out, dropped
}
