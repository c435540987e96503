package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	server "review_insights/internal/adapters/http_server"
	"review_insights/internal/adapters/observability"
	"review_insights/internal/bootstrap"
	"review_insights/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Wire(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring failed")
	}
	defer deps.Close()
	log.Info().Str("nlp", cfg.NLPMode).Msg("dependencies ready")

	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: deps.Queries, Ingest: deps.Pipeline, Suggest: deps.Detector})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := deps.Collector.Abort(sctx); err != nil {
			log.Warn().Err(err).Msg("collector abort failed")
		}
		return httpSrv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
