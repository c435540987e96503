package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"review_insights/internal/app"
	"review_insights/internal/domain"
)

type pipelineFixture struct {
	drv   *fakeDriver
	store *fakeStore
	p     *app.Pipeline
}

func newPipeline(raws []domain.RawReviewRecord, an *fakeAnalyzer) pipelineFixture {
	drv := &fakeDriver{raw: domain.RawScrape{Reviews: raws}}
	store := &fakeStore{}
	c := app.NewCollector(&fakeFactory{drv: drv}, app.NewNormalizer(1), nil, nil, nil, app.CollectorConfig{})
	e := app.NewEnricher(remote(an), nil, fakeDetector{}, nil, app.EnricherConfig{OnError: app.OnErrorDrop, Workers: 2})
	return pipelineFixture{drv: drv, store: store, p: app.NewPipeline(c, e, app.NewPersister(store, nil))}
}

func TestRunIngestion_Report(t *testing.T) {
	raws := append(rawReviews(5), domain.RawReviewRecord{"caption": "missing date"})
	an := &fakeAnalyzer{fn: func(text string) (domain.Analysis, error) {
		if text == "review number c" {
			return domain.Analysis{}, errors.New("quota")
		}
		return domain.Analysis{Score: 0.7}, nil
	}}
	f := newPipeline(raws, an)

	rep, err := f.p.RunIngestion(context.Background(), "https://x", 9)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rep.Collected != 6 || rep.Normalized != 5 || rep.DroppedNormalize != 1 {
		t.Fatalf("collection counts: %+v", rep)
	}
	if rep.Enriched != 4 || rep.DroppedEnrich != 1 || rep.Persisted != 4 || rep.RunID == "" {
		t.Fatalf("enrichment counts: %+v", rep)
	}
	if len(f.store.rows) != 4 {
		t.Fatalf("stored %d rows", len(f.store.rows))
	}
	if app.Outcome(err) != app.OutcomeOK {
		t.Fatal("expected ok outcome")
	}
}

func TestRunIngestion_FatalErrors(t *testing.T) {
	f := newPipeline(rawReviews(3), constAnalyzer(0.1))
	f.store.err = errors.New("connection reset")
	rep, err := f.p.RunIngestion(context.Background(), "https://x", 9)
	var pe *domain.PersistenceCommitError
	if !errors.As(err, &pe) || rep.Persisted != 0 || rep.Enriched != 3 {
		t.Fatalf("err=%v rep=%+v", err, rep)
	}
	if app.Outcome(err) != app.OutcomeCommitFailed {
		t.Fatalf("outcome=%s", app.Outcome(err))
	}

	f = newPipeline(nil, constAnalyzer(0.1))
	f.drv.err = errors.New("captcha")
	_, err = f.p.RunIngestion(context.Background(), "https://x", 9)
	if app.Outcome(err) != app.OutcomeCollectionFailed {
		t.Fatalf("outcome=%s err=%v", app.Outcome(err), err)
	}

	if _, err := f.p.RunIngestion(context.Background(), "https://x", 0); !errors.Is(err, domain.ErrNoBusiness) {
		t.Fatalf("expected ErrNoBusiness, got %v", err)
	}
}

func TestRunFromDump(t *testing.T) {
	f := newPipeline(rawReviews(3), constAnalyzer(0.1))
	res, err := app.NewCollector(&fakeFactory{drv: f.drv}, app.NewNormalizer(1), nil, nil, nil, app.CollectorConfig{}).
		Collect(context.Background(), "https://x")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := json.Marshal(res)
	path := filepath.Join(t.TempDir(), "scrape.json")
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatal(err)
	}

	rep, err := f.p.RunFromDump(context.Background(), path, 4)
	if err != nil {
		t.Fatal(err)
	}
	if rep.RunID != res.RunID || rep.Persisted != 3 || rep.URL != "https://x" || rep.DumpPath != path {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if !f.store.rows[0].ReviewDate.Equal(res.Reviews[0].ReviewDate) {
		t.Fatal("review date lost in dump round trip")
	}

	if _, err := app.LoadDump(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing dump")
	}
}

func TestRunIngestion_RecordsRuns(t *testing.T) {
	runs := &fakeRunLog{}
	f := newPipeline(rawReviews(2), constAnalyzer(0.4))
	f.p.WithRunLog(runs)
	if _, err := f.p.RunIngestion(context.Background(), "https://x", 3); err != nil {
		t.Fatal(err)
	}
	f.drv.err = errors.New("blocked")
	_, _ = f.p.RunIngestion(context.Background(), "https://x", 3)
	_, _ = f.p.RunIngestion(context.Background(), "https://x", 0)

	want := []string{app.OutcomeOK, app.OutcomeCollectionFailed}
	if len(runs.outcomes) != len(want) {
		t.Fatalf("outcomes=%v", runs.outcomes)
	}
	for i := range want {
		if runs.outcomes[i] != want[i] {
			t.Fatalf("outcomes=%v want %v", runs.outcomes, want)
		}
	}
}
