package domain

import "time"

// SourceGoogle is the provenance tag of every review collected by this service.
const SourceGoogle = "Google"

// RawReviewRecord is one untyped review dict as produced by the collector.
type RawReviewRecord = map[string]any

// RawScrape is the only shape accepted from a collector driver.
type RawScrape struct {
	Reviews []RawReviewRecord `json:"reviews"`
}

type NormalizedReview struct {
	Source               string    `json:"source"`
	SourceID             string    `json:"source_id"`
	Content              string    `json:"content"`
	Rating               *float64  `json:"rating"`
	RetrievedAt          time.Time `json:"retrieved_at"`
	ReviewDate           time.Time `json:"review_date"`
	ReviewDateEstimate   time.Time `json:"review_date_estimate"`
	TimePeriodCode       int       `json:"time_period_code"`
	RelativeDateOriginal string    `json:"relative_date_original"`
	Username             string    `json:"username"`
	UserReviewCount      int       `json:"user_review_count"`
	UserProfileURL       string    `json:"user_profile_url"`
}

// Sentiment descriptions, bucketed from the score.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

type Sentiment struct {
	Score       float64 `json:"score"`
	Magnitude   float64 `json:"magnitude"`
	Description string  `json:"description"`
}

// Describe buckets a score with the fixed ±0.25 thresholds.
func Describe(score float64) string {
	switch {
	case score > 0.25:
		return SentimentPositive
	case score < -0.25:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Sentiment sources.
const (
	AnalyzerRemote = "remote"
	AnalyzerLocal  = "local"
)

type EnrichedReview struct {
	NormalizedReview
	Sentiment       *Sentiment `json:"sentiment"`
	Topics          []string   `json:"topics"`
	IsSuggestion    bool       `json:"is_suggestion"`
	SentimentSource string     `json:"sentiment_source"`
}

// Review is the stored entity.
type Review struct {
	ID                   int64     `json:"id"`
	BusinessID           int64     `json:"business_id"`
	SourceID             string    `json:"source_id,omitempty"`
	Source               string    `json:"source"`
	Content              string    `json:"content"`
	Rating               *float64  `json:"rating"`
	RetrievedAt          time.Time `json:"retrieved_at"`
	ReviewDate           time.Time `json:"review_date"`
	ReviewDateEstimate   time.Time `json:"review_date_estimate"`
	TimePeriodCode       int       `json:"time_period_code"`
	RelativeDateOriginal string    `json:"relative_date_original"`
	Username             string    `json:"username"`
	UserReviewCount      int       `json:"user_review_count"`
	UserProfileURL       string    `json:"user_profile_url,omitempty"`
	SentiScore           float64   `json:"senti_score"`
	SentimentMagnitude   float64   `json:"sentiment_magnitude"`
	SentimentDescription string    `json:"sentiment_description"`
	Topics               string    `json:"topics"` // comma-joined, at most 3
	IsSuggestion         bool      `json:"is_suggestion"`
}

type ScrapeResult struct {
	RunID        string             `json:"run_id"`
	URL          string             `json:"place_url"`
	TotalReviews int                `json:"total_reviews"`
	Dropped      int                `json:"dropped"`
	Reviews      []NormalizedReview `json:"reviews"`
	ScrapedAt    time.Time          `json:"scraped_at"`

	// DumpPath is where the backup of this result was written, if anywhere.
	DumpPath string `json:"-"`
}

// Entity is one named entity returned by an analyzer.
type Entity struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Salience float64 `json:"salience"`
}

// Analysis is the analyzer boundary: {score, magnitude, entities}.
type Analysis struct {
	Score     float64  `json:"score"`
	Magnitude float64  `json:"magnitude"`
	Entities  []Entity `json:"entities"`
}

type PersistResult struct {
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
}

type IngestionReport struct {
	RunID            string `json:"run_id"`
	URL              string `json:"url"`
	BusinessID       int64  `json:"business_id"`
	Collected        int    `json:"collected"`
	Normalized       int    `json:"normalized"`
	DroppedNormalize int    `json:"dropped_normalize"`
	Enriched         int    `json:"enriched"`
	DroppedEnrich    int    `json:"dropped_enrich"`
	Persisted        int    `json:"persisted"`
	FailedPersist    int    `json:"failed_persist"`
	Duplicates       int    `json:"duplicates"`
	DumpPath         string `json:"dump_path,omitempty"`
}
