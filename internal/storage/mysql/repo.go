package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"review_insights/internal/domain"
)

// insertChunk bounds rows per INSERT statement to stay below placeholder limits.
const insertChunk = 500

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func utc(t time.Time) time.Time { return t.UTC() }

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// InsertBatch writes all reviews of one business in a single transaction.
// Reviews whose SourceID is already stored for the business, or repeats
// within rs, are skipped and counted. Any error rolls back the whole batch.
func (r *Repo) InsertBatch(ctx context.Context, businessID int64, rs []domain.Review) (int, error) {
	if len(rs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := existingSourceIDs(ctx, tx, businessID, rs)
	if err != nil {
		return 0, err
	}

	fresh := make([]domain.Review, 0, len(rs))
	for _, rv := range rs {
		if rv.SourceID != "" {
			if _, dup := existing[rv.SourceID]; dup {
				continue
			}
			existing[rv.SourceID] = struct{}{}
		}
		fresh = append(fresh, rv)
	}

	for start := 0; start < len(fresh); start += insertChunk {
		end := min(start+insertChunk, len(fresh))
		if err := insertRows(ctx, tx, businessID, fresh[start:end]); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rs) - len(fresh), nil
}

func existingSourceIDs(ctx context.Context, tx *sql.Tx, businessID int64, rs []domain.Review) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	ids := make([]any, 0, len(rs)+1)
	ids = append(ids, businessID)
	for _, rv := range rs {
		if rv.SourceID != "" {
			ids = append(ids, rv.SourceID)
		}
	}
	for start := 1; start < len(ids); start += insertChunk {
		end := min(start+insertChunk, len(ids))
		args := append([]any{businessID}, ids[start:end]...)
		q := existingSourceIDsPrefix + strings.TrimSuffix(strings.Repeat("?,", end-start), ",") + ")"
		rows, err := tx.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("lookup existing reviews: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			out[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, businessID int64, rs []domain.Review) error {
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*reviewParams)
	for _, rv := range rs {
		values = append(values, reviewPlaceholders)
		args = append(args,
			businessID,
			valStr(rv.SourceID),
			rv.Source,
			rv.Content,
			valF64(rv.Rating),
			utc(rv.RetrievedAt),
			utc(rv.ReviewDate),
			utc(rv.ReviewDateEstimate),
			rv.TimePeriodCode,
			rv.RelativeDateOriginal,
			rv.Username,
			rv.UserReviewCount,
			rv.UserProfileURL,
			rv.SentiScore,
			rv.SentimentMagnitude,
			rv.SentimentDescription,
			rv.Topics,
			boolInt(rv.IsSuggestion),
		)
	}
	if _, err := tx.ExecContext(ctx, insertReviewsPrefix+strings.Join(values, ","), args...); err != nil {
		return fmt.Errorf("insert reviews: %w", err)
	}
	return nil
}

func (r *Repo) ListReviews(ctx context.Context, businessID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	order, ok := orderBy[pg.Sort]
	if !ok {
		order = orderBy["-review_date"]
	}
	limit := pg.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(selectReviewsSQL, order), businessID, limit)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	out := domain.ReviewsPage{Items: []domain.Review{}}
	for rows.Next() {
		var (
			rv       domain.Review
			sourceID sql.NullString
			rating   sql.NullFloat64
			sugg     int
		)
		if err := rows.Scan(
			&rv.ID, &rv.BusinessID, &sourceID, &rv.Source, &rv.Content, &rating,
			&rv.RetrievedAt, &rv.ReviewDate, &rv.ReviewDateEstimate,
			&rv.TimePeriodCode, &rv.RelativeDateOriginal, &rv.Username, &rv.UserReviewCount, &rv.UserProfileURL,
			&rv.SentiScore, &rv.SentimentMagnitude, &rv.SentimentDescription, &rv.Topics, &sugg,
		); err != nil {
			return domain.ReviewsPage{}, err
		}
		rv.SourceID = sourceID.String
		if rating.Valid {
			f := rating.Float64
			rv.Rating = &f
		}
		rv.IsSuggestion = sugg != 0
		out.Items = append(out.Items, rv)
	}
	return out, rows.Err()
}

func (r *Repo) CountReviews(ctx context.Context, businessID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countReviewsSQL, businessID).Scan(&n)
	return n, err
}

// LogRun records the outcome of one ingestion run.
func (r *Repo) LogRun(ctx context.Context, rep domain.IngestionReport, outcome string, runErr error) error {
	var msg any
	if runErr != nil {
		msg = truncate(runErr.Error(), 1000)
	}
	_, err := r.db.ExecContext(ctx, insertRunSQL,
		rep.RunID, rep.BusinessID, rep.URL, outcome,
		rep.Collected, rep.Normalized, rep.DroppedNormalize,
		rep.Enriched, rep.DroppedEnrich, rep.Persisted, rep.FailedPersist, rep.Duplicates,
		valStr(rep.DumpPath), msg,
	)
	return err
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
