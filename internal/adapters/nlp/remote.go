package nlp

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	language "google.golang.org/api/language/v1"
	"google.golang.org/api/option"

	"review_insights/internal/adapters/observability"
	"review_insights/internal/domain"
)

type RemoteConfig struct {
	APIKey   string
	Endpoint string // override for tests and regional endpoints
	Language string // empty lets the service detect it
	RPS      int
	Attempts int
}

// Remote calls documents:annotateText for sentiment and entities in one
// request, with client-side rate limiting and retries on 429/5xx.
type Remote struct {
	docs     *language.DocumentsService
	rl       *rate.Limiter
	lang     string
	attempts int
}

// ClientOptionsFromEnv returns credential options from
// GOOGLE_APPLICATION_CREDENTIALS_JSON or GOOGLE_APPLICATION_CREDENTIALS.
func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func NewRemote(ctx context.Context, cfg RemoteConfig, extra ...option.ClientOption) (*Remote, error) {
	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else {
		opts = append(opts, ClientOptionsFromEnv()...)
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := language.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("language client: %w", err)
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 4
	}
	return &Remote{
		docs:     svc.Documents,
		rl:       rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
		lang:     cfg.Language,
		attempts: cfg.Attempts,
	}, nil
}

func (r *Remote) Analyze(ctx context.Context, text string) (domain.Analysis, error) {
	if err := r.rl.Wait(ctx); err != nil {
		return domain.Analysis{}, err
	}
	req := &language.AnnotateTextRequest{
		Document: &language.Document{
			Content:  text,
			Type:     "PLAIN_TEXT",
			Language: r.lang,
		},
		Features: &language.AnnotateTextRequestFeatures{
			ExtractDocumentSentiment: true,
			ExtractEntities:          true,
		},
		EncodingType: "UTF8",
	}

	var lastErr error
	for i := 0; i < r.attempts; i++ {
		start := time.Now()
		resp, err := r.docs.AnnotateText(req).Context(ctx).Do()
		observability.ObserveExternal("nlp", "annotate_text", statusOf(err), time.Since(start))
		if err == nil {
			return toAnalysis(resp), nil
		}
		if ctx.Err() != nil {
			return domain.Analysis{}, ctx.Err()
		}
		lastErr = err

		wait, retry := retryDelay(err, i)
		if !retry || i == r.attempts-1 || !sleepCtx(ctx, wait) {
			break
		}
	}
	if ctx.Err() != nil {
		return domain.Analysis{}, ctx.Err()
	}
	return domain.Analysis{}, fmt.Errorf("annotate text: %w", lastErr)
}

func toAnalysis(resp *language.AnnotateTextResponse) domain.Analysis {
	var a domain.Analysis
	if s := resp.DocumentSentiment; s != nil {
		a.Score = s.Score
		a.Magnitude = s.Magnitude
	}
	for _, e := range resp.Entities {
		if e == nil {
			continue
		}
		a.Entities = append(a.Entities, domain.Entity{Name: e.Name, Type: e.Type, Salience: e.Salience})
	}
	return a
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return 0
}

// retryDelay retries 429 and transient 5xx (honoring Retry-After) and
// network errors; other API errors are final.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return backoff(attempt), true
	}
	switch ge.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		if d := retryAfter(ge.Header); d > 0 {
			return d, true
		}
		return backoff(attempt), true
	default:
		return 0, false
	}
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent/invalid.
func retryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
