package mysql

// Statements stay within the SQL subset MySQL and SQLite share so the
// repository can be exercised against an in-memory database.

const reviewColumns = "business_id, source_id, source, content, rating, retrieved_at, review_date, review_date_estimate, " +
	"time_period_code, relative_date_original, username, user_review_count, user_profile_url, " +
	"senti_score, sentiment_magnitude, sentiment_description, topics, is_suggestion"

const reviewPlaceholders = "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"

const reviewParams = 18

const insertReviewsPrefix = "INSERT INTO reviews (" + reviewColumns + ") VALUES "

const existingSourceIDsPrefix = "SELECT source_id FROM reviews WHERE business_id = ? AND source_id IN ("

const selectReviewsSQL = "SELECT id, " + reviewColumns + " FROM reviews WHERE business_id = ? ORDER BY %s LIMIT ?"

const countReviewsSQL = `SELECT COUNT(*) FROM reviews WHERE business_id = ?`

const insertRunSQL = `
INSERT INTO ingest_runs
  (run_id, business_id, url, outcome, collected, normalized, dropped_normalize,
   enriched, dropped_enrich, persisted, failed_persist, duplicates, dump_path, error)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// ORDER BY clauses by sort key; ties break on id for stable pages.
var orderBy = map[string]string{
	"-review_date": "review_date DESC, id DESC",
	"review_date":  "review_date ASC, id ASC",
	"-senti_score": "senti_score DESC, id DESC",
	"senti_score":  "senti_score ASC, id ASC",
	"-rating":      "rating DESC, id DESC",
}
