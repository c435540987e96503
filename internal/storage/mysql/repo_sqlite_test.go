package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"review_insights/internal/domain"
	mysqlrepo "review_insights/internal/storage/mysql"
)

const sqliteSchema = `
CREATE TABLE reviews (
  id                     INTEGER PRIMARY KEY AUTOINCREMENT,
  business_id            INTEGER  NOT NULL,
  source_id              TEXT     NULL,
  source                 TEXT     NOT NULL,
  content                TEXT     NOT NULL,
  rating                 REAL     NULL,
  retrieved_at           DATETIME NOT NULL,
  review_date            DATETIME NOT NULL,
  review_date_estimate   DATETIME NOT NULL,
  time_period_code       INTEGER  NOT NULL,
  relative_date_original TEXT     NOT NULL DEFAULT '',
  username               TEXT     NOT NULL DEFAULT '',
  user_review_count      INTEGER  NOT NULL DEFAULT 0,
  user_profile_url       TEXT     NOT NULL DEFAULT '',
  senti_score            REAL     NOT NULL CHECK (senti_score BETWEEN -1 AND 1),
  sentiment_magnitude    REAL     NOT NULL,
  sentiment_description  TEXT     NOT NULL,
  topics                 TEXT     NOT NULL DEFAULT '',
  is_suggestion          INTEGER  NOT NULL DEFAULT 0,
  UNIQUE (business_id, source_id)
);
CREATE TABLE ingest_runs (
  id                INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id            TEXT    NOT NULL DEFAULT '',
  business_id       INTEGER NOT NULL,
  url               TEXT    NOT NULL DEFAULT '',
  outcome           TEXT    NOT NULL,
  collected         INTEGER NOT NULL DEFAULT 0,
  normalized        INTEGER NOT NULL DEFAULT 0,
  dropped_normalize INTEGER NOT NULL DEFAULT 0,
  enriched          INTEGER NOT NULL DEFAULT 0,
  dropped_enrich    INTEGER NOT NULL DEFAULT 0,
  persisted         INTEGER NOT NULL DEFAULT 0,
  failed_persist    INTEGER NOT NULL DEFAULT 0,
  duplicates        INTEGER NOT NULL DEFAULT 0,
  dump_path         TEXT    NULL,
  error             TEXT    NULL
);
CREATE TRIGGER reviews_reject_boom BEFORE INSERT ON reviews
WHEN NEW.content = 'boom'
BEGIN
  SELECT RAISE(ABORT, 'constraint violation');
END;
`

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "reviews.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(sqliteSchema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db
}

func review(sourceID string, day int, score float64) domain.Review {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rating := 4.0
	return domain.Review{
		SourceID:             sourceID,
		Source:               domain.SourceGoogle,
		Content:              "review " + sourceID,
		Rating:               &rating,
		RetrievedAt:          base,
		ReviewDate:           base.AddDate(0, 0, -day),
		ReviewDateEstimate:   base.AddDate(0, 0, -day),
		TimePeriodCode:       day,
		RelativeDateOriginal: fmt.Sprintf("%d days ago", day),
		Username:             "user-" + sourceID,
		UserReviewCount:      day,
		SentiScore:           score,
		SentimentMagnitude:   0.5,
		SentimentDescription: domain.Describe(score),
		Topics:               "food, service",
		IsSuggestion:         day%2 == 0,
	}
}

func TestInsertBatch_StoresAll(t *testing.T) {
	db := openSQLite(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	var rs []domain.Review
	for i := 1; i <= 9; i++ {
		rs = append(rs, review(fmt.Sprintf("g-%d", i), i, 0.1*float64(i)-0.5))
	}
	skipped, err := repo.InsertBatch(ctx, 7, rs)
	if err != nil || skipped != 0 {
		t.Fatalf("skipped=%d err=%v", skipped, err)
	}
	n, err := repo.CountReviews(ctx, 7)
	if err != nil || n != 9 {
		t.Fatalf("count=%d err=%v", n, err)
	}
	if n, _ := repo.CountReviews(ctx, 8); n != 0 {
		t.Fatalf("other business count=%d", n)
	}

	page, err := repo.ListReviews(ctx, 7, domain.PageQuery{Limit: 3, Sort: "-review_date"})
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if len(page.Items) != 3 || page.Items[0].SourceID != "g-1" || page.Items[2].SourceID != "g-3" {
		t.Fatalf("unexpected page: %+v", page.Items)
	}
	got := page.Items[1]
	if got.BusinessID != 7 || got.Rating == nil || *got.Rating != 4 || !got.IsSuggestion || got.Topics != "food, service" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.ReviewDate.Equal(time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("review date %v", got.ReviewDate)
	}

	asc, err := repo.ListReviews(ctx, 7, domain.PageQuery{Limit: 1, Sort: "senti_score"})
	if err != nil || len(asc.Items) != 1 || asc.Items[0].SourceID != "g-1" {
		t.Fatalf("ascending score page: %+v err=%v", asc.Items, err)
	}
}

func TestInsertBatch_RollsBackWholeBatch(t *testing.T) {
	db := openSQLite(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	var rs []domain.Review
	for i := 1; i <= 10; i++ {
		rs = append(rs, review(fmt.Sprintf("g-%d", i), i, 0))
	}
	rs[5].Content = "boom"

	if _, err := repo.InsertBatch(ctx, 1, rs); err == nil {
		t.Fatal("expected insert error")
	}
	if n, _ := repo.CountReviews(ctx, 1); n != 0 {
		t.Fatalf("expected rollback, found %d rows", n)
	}
}

func TestInsertBatch_SkipsDuplicates(t *testing.T) {
	db := openSQLite(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	if _, err := repo.InsertBatch(ctx, 2, []domain.Review{review("a", 1, 0), review("b", 2, 0), review("c", 3, 0)}); err != nil {
		t.Fatal(err)
	}
	skipped, err := repo.InsertBatch(ctx, 2, []domain.Review{review("b", 2, 0), review("d", 4, 0), review("d", 4, 0)})
	if err != nil || skipped != 2 {
		t.Fatalf("skipped=%d err=%v", skipped, err)
	}
	if n, _ := repo.CountReviews(ctx, 2); n != 4 {
		t.Fatalf("count=%d", n)
	}

	// Same source id under another business is a different review.
	skipped, err = repo.InsertBatch(ctx, 3, []domain.Review{review("a", 1, 0)})
	if err != nil || skipped != 0 {
		t.Fatalf("skipped=%d err=%v", skipped, err)
	}
}

func TestLogRun(t *testing.T) {
	db := openSQLite(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	rep := domain.IngestionReport{RunID: "run-1", BusinessID: 4, URL: "https://maps.example/x", Collected: 3, Persisted: 2}
	if err := repo.LogRun(ctx, rep, "ok", nil); err != nil {
		t.Fatalf("LogRun: %v", err)
	}
	if err := repo.LogRun(ctx, rep, "commit_failed", fmt.Errorf("deadlock")); err != nil {
		t.Fatalf("LogRun: %v", err)
	}
	var n int
	var msg sql.NullString
	if err := db.QueryRow(`SELECT COUNT(*) FROM ingest_runs WHERE business_id = 4`).Scan(&n); err != nil || n != 2 {
		t.Fatalf("runs=%d err=%v", n, err)
	}
	if err := db.QueryRow(`SELECT error FROM ingest_runs WHERE outcome = 'commit_failed'`).Scan(&msg); err != nil || msg.String != "deadlock" {
		t.Fatalf("error column=%q err=%v", msg.String, err)
	}

	// long multibyte messages are cut on a rune boundary
	rep.RunID = "run-2"
	if err := repo.LogRun(ctx, rep, "enrich_failed", errors.New("x"+strings.Repeat("é", 700))); err != nil {
		t.Fatalf("LogRun: %v", err)
	}
	if err := db.QueryRow(`SELECT error FROM ingest_runs WHERE outcome = 'enrich_failed'`).Scan(&msg); err != nil {
		t.Fatal(err)
	}
	if len(msg.String) > 1000 || len(msg.String) < 998 || !utf8.ValidString(msg.String) {
		t.Fatalf("truncated error: %d bytes, valid=%v", len(msg.String), utf8.ValidString(msg.String))
	}
}
