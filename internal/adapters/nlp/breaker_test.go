package nlp

import (
	"context"
	"errors"
	"testing"
	"time"

	"review_insights/internal/domain"
)

type stubAnalyzer struct {
	err   error
	calls int
}

func (s *stubAnalyzer) Analyze(ctx context.Context, text string) (domain.Analysis, error) {
	s.calls++
	return domain.Analysis{Score: 0.5}, s.err
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	inner := &stubAnalyzer{err: errors.New("503")}
	b := NewBreaker(inner, 3, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.Analyze(ctx, "x"); err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("call %d: expected inner error, got %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state=%d, want open", b.State())
	}
	if _, err := b.Analyze(ctx, "x"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("inner called %d times while open", inner.calls)
	}

	// trial call fails: open again
	now = now.Add(2 * time.Minute)
	if _, err := b.Analyze(ctx, "x"); errors.Is(err, ErrCircuitOpen) || err == nil {
		t.Fatalf("expected trial failure, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state=%d after failed trial", b.State())
	}

	// trial call succeeds: closed
	now = now.Add(2 * time.Minute)
	inner.err = nil
	if _, err := b.Analyze(ctx, "x"); err != nil {
		t.Fatalf("trial: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state=%d after successful trial", b.State())
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	inner := &stubAnalyzer{}
	b := NewBreaker(inner, 2, time.Minute)
	ctx := context.Background()
	inner.err = errors.New("boom")
	_, _ = b.Analyze(ctx, "x")
	inner.err = nil
	_, _ = b.Analyze(ctx, "x")
	inner.err = errors.New("boom")
	_, _ = b.Analyze(ctx, "x")
	if b.State() != StateClosed {
		t.Fatal("non-consecutive failures opened the circuit")
	}
}
