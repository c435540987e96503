package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"review_insights/internal/adapters/observability"
	"review_insights/internal/app"
	"review_insights/internal/bootstrap"
	"review_insights/internal/shared"
)

func main() {
	fromDump := flag.String("from-dump", "", "replay enrichment and persistence from a backup file")
	business := flag.Int64("business", 0, "business id for -from-dump")
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.Serve()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Wire(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring failed")
	}
	defer deps.Close()

	// Kill the live browser as soon as a signal arrives.
	go func() {
		<-ctx.Done()
		if err := deps.Collector.Abort(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("collector abort failed")
		}
	}()

	if *fromDump != "" {
		rep, err := deps.Pipeline.RunFromDump(ctx, *fromDump, *business)
		if err != nil {
			log.Error().Err(err).Str("dump", *fromDump).Msg("replay failed")
			deps.Close()
			os.Exit(1)
		}
		log.Info().Int("persisted", rep.Persisted).Int("duplicates", rep.Duplicates).Msg("replay completed")
		return
	}

	if len(cfg.Targets) == 0 {
		log.Fatal().Msg("INGEST_TARGETS is empty")
	}
	log.Info().Int("targets", len(cfg.Targets)).Int("workers", cfg.Workers).Str("nlp", cfg.NLPMode).Msg("ingestor starting")

	// The collector serializes browser sessions; workers overlap enrichment
	// and persistence of one target with collection of the next.
	sem := semaphore.NewWeighted(int64(max(cfg.Workers, 1)))
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, t := range cfg.Targets {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("stopping before all targets were started")
			break
		}
		wg.Add(1)
		go func(t shared.Target) {
			defer wg.Done()
			defer sem.Release(1)

			rep, err := deps.Pipeline.RunIngestion(ctx, t.URL, t.BusinessID)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				log.Warn().Int64("business_id", t.BusinessID).Str("outcome", app.Outcome(err)).Err(err).Msg("ingest failed")
				return
			}
			log.Info().Int64("business_id", t.BusinessID).Int("persisted", rep.Persisted).Msg("ingest ok")
		}(t)
	}

	wg.Wait()
	log.Info().Int("failed", failed).Int("targets", len(cfg.Targets)).Msg("ingestion completed")
	if failed > 0 {
		deps.Close()
		os.Exit(1)
	}
}
