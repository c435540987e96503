package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"review_insights/internal/adapters/observability"
	"review_insights/internal/domain"
)

// Run outcomes reported to callers and metrics.
const (
	OutcomeOK               = "ok"
	OutcomeCollectionFailed = "collection_failed"
	OutcomeCommitFailed     = "commit_failed"
	OutcomeInvalid          = "invalid"
)

// Pipeline chains collection, enrichment and persistence for one business.
type Pipeline struct {
	collector *Collector
	enricher  *Enricher
	persister *Persister
	runs      domain.RunLog
}

func NewPipeline(c *Collector, e *Enricher, p *Persister) *Pipeline {
	return &Pipeline{collector: c, enricher: e, persister: p}
}

// WithRunLog makes the pipeline record every run that reached the collector.
func (p *Pipeline) WithRunLog(l domain.RunLog) *Pipeline {
	p.runs = l
	return p
}

func (p *Pipeline) logRun(ctx context.Context, rep domain.IngestionReport, err error) {
	if p.runs == nil {
		return
	}
	if lerr := p.runs.LogRun(context.WithoutCancel(ctx), rep, Outcome(err), err); lerr != nil {
		log.Warn().Err(lerr).Str("run_id", rep.RunID).Msg("run log write failed")
	}
}

// RunIngestion collects, enriches and persists the reviews at url. Fatal
// errors are *domain.CollectionError and *domain.PersistenceCommitError;
// the report is filled as far as the run got.
func (p *Pipeline) RunIngestion(ctx context.Context, url string, businessID int64) (domain.IngestionReport, error) {
	rep := domain.IngestionReport{URL: url, BusinessID: businessID}
	if businessID <= 0 {
		observability.ObserveRun(OutcomeInvalid)
		return rep, domain.ErrNoBusiness
	}

	res, err := p.collector.Collect(ctx, url)
	if err != nil {
		observability.ObserveRun(OutcomeCollectionFailed)
		log.Error().Err(err).Str("url", url).Int64("business_id", businessID).Msg("collection failed")
		p.logRun(ctx, rep, err)
		return rep, err
	}
	return p.process(ctx, rep, res)
}

// RunFromDump replays enrichment and persistence from a backup file.
func (p *Pipeline) RunFromDump(ctx context.Context, path string, businessID int64) (domain.IngestionReport, error) {
	rep := domain.IngestionReport{BusinessID: businessID}
	if businessID <= 0 {
		observability.ObserveRun(OutcomeInvalid)
		return rep, domain.ErrNoBusiness
	}
	res, err := LoadDump(path)
	if err != nil {
		observability.ObserveRun(OutcomeCollectionFailed)
		return rep, err
	}
	res.DumpPath = path
	rep.URL = res.URL
	return p.process(ctx, rep, res)
}

func (p *Pipeline) process(ctx context.Context, rep domain.IngestionReport, res domain.ScrapeResult) (domain.IngestionReport, error) {
	rep.RunID = res.RunID
	rep.Collected = res.TotalReviews + res.Dropped
	rep.Normalized = res.TotalReviews
	rep.DroppedNormalize = res.Dropped
	rep.DumpPath = res.DumpPath

	// Every review is enriched before anything is written.
	enriched, dropped := p.enricher.EnrichAll(ctx, res.Reviews)
	rep.Enriched = len(enriched)
	rep.DroppedEnrich = dropped

	pr, err := p.persister.Persist(ctx, enriched, rep.BusinessID)
	rep.Persisted = pr.Succeeded
	rep.FailedPersist = pr.Failed
	rep.Duplicates = pr.Duplicates
	if err != nil {
		observability.ObserveRun(OutcomeCommitFailed)
		log.Error().Err(err).Str("run_id", rep.RunID).Int64("business_id", rep.BusinessID).Msg("persistence failed")
		p.logRun(ctx, rep, err)
		return rep, err
	}

	observability.ObserveRun(OutcomeOK)
	log.Info().
		Str("run_id", rep.RunID).
		Int64("business_id", rep.BusinessID).
		Int("persisted", rep.Persisted).
		Int("duplicates", rep.Duplicates).
		Int("dropped_enrich", rep.DroppedEnrich).
		Msg("ingestion finished")
	p.logRun(ctx, rep, nil)
	return rep, nil
}

// Outcome classifies a RunIngestion error for callers and metrics.
func Outcome(err error) string {
	var ce *domain.CollectionError
	var pe *domain.PersistenceCommitError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &ce):
		return OutcomeCollectionFailed
	case errors.As(err, &pe):
		return OutcomeCommitFailed
	default:
		return OutcomeInvalid
	}
}

// LoadDump reads a backup file written by the collector.
func LoadDump(path string) (domain.ScrapeResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.ScrapeResult{}, fmt.Errorf("read dump: %w", err)
	}
	var res domain.ScrapeResult
	if err := json.Unmarshal(b, &res); err != nil {
		return domain.ScrapeResult{}, fmt.Errorf("decode dump %s: %w", path, err)
	}
	if res.TotalReviews == 0 {
		res.TotalReviews = len(res.Reviews)
	}
	return res, nil
}
