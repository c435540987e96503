// Package bootstrap wires adapters into the app layer for the binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"review_insights/internal/adapters/backup"
	"review_insights/internal/adapters/gmaps"
	"review_insights/internal/adapters/nlp"
	"review_insights/internal/adapters/procreap"
	redisad "review_insights/internal/adapters/redis"
	"review_insights/internal/app"
	"review_insights/internal/domain"
	"review_insights/internal/shared"
	mysqlrepo "review_insights/internal/storage/mysql"
	"review_insights/internal/suggest"
)

// Deps holds everything a binary needs after wiring.
type Deps struct {
	DB        *sql.DB
	Repo      *mysqlrepo.Repo
	Cache     domain.Cache
	Collector *app.Collector
	Pipeline  *app.Pipeline
	Queries   *app.QueryService
	Detector  domain.SuggestionDetector

	redis *redisad.Cache
}

func (d *Deps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(5 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// Redis connects when REDIS_ADDR is set. A nil result means no cache and no lock.
func Redis(ctx context.Context, cfg shared.Config) *redisad.Cache {
	if cfg.RedisAddr == "" {
		log.Info().Msg("redis disabled")
		return nil
	}
	c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; running without cache and lock")
		_ = c.Close()
		return nil
	}
	return c
}

// Analyzers returns the primary strategy and, in remote mode, the local fallback.
func Analyzers(ctx context.Context, cfg shared.Config) (app.Strategy, *app.Strategy, error) {
	local := app.Strategy{Name: domain.AnalyzerLocal, Analyzer: nlp.NewLocal()}
	if cfg.NLPMode == domain.AnalyzerLocal {
		return local, nil, nil
	}
	if cfg.NLPMode != domain.AnalyzerRemote {
		return app.Strategy{}, nil, fmt.Errorf("NLP_MODE %q: want remote or local", cfg.NLPMode)
	}
	remote, err := nlp.NewRemote(ctx, nlp.RemoteConfig{
		APIKey:   cfg.NLPAPIKey,
		Endpoint: cfg.NLPEndpoint,
		RPS:      cfg.NLPRPS,
	})
	if err != nil {
		return app.Strategy{}, nil, err
	}
	primary := app.Strategy{
		Name:     domain.AnalyzerRemote,
		Analyzer: nlp.NewBreaker(remote, cfg.NLPBreakerFailures, cfg.NLPBreakerReset),
	}
	return primary, &local, nil
}

// Patterns loads SUGGESTION_PATTERNS_PATH, or the built-in set when unset.
func Patterns(cfg shared.Config) (suggest.PatternSet, error) {
	if cfg.SuggestionPatternsPath == "" {
		return suggest.DefaultPatterns(), nil
	}
	return suggest.LoadPatternSet(cfg.SuggestionPatternsPath)
}

// Detector loads the trained model. Without one, detection falls back to
// pattern matching alone.
func Detector(cfg shared.Config) (domain.SuggestionDetector, error) {
	clf := suggest.NewClassifier(suggest.Config{})
	err := clf.LoadFile(cfg.SuggestionModelPath)
	if err == nil {
		log.Info().Str("path", cfg.SuggestionModelPath).Msg("suggestion model loaded")
		return clf.Detector(cfg.SuggestionThreshold), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	ps, perr := Patterns(cfg)
	if perr != nil {
		return nil, perr
	}
	log.Warn().Str("path", cfg.SuggestionModelPath).Int("patterns", ps.Len()).Msg("no suggestion model; using pattern matching")
	return suggest.PatternDetector{Set: ps}, nil
}

// Wire builds the full dependency graph from cfg.
func Wire(ctx context.Context, cfg shared.Config) (*Deps, error) {
	db, err := OpenDB(ctx, cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	d := &Deps{DB: db, Repo: mysqlrepo.New(db)}

	var locker domain.Locker
	if rc := Redis(ctx, cfg); rc != nil {
		d.redis = rc
		d.Cache = rc
		locker = redisad.NewLocker(rc.Client())
	}

	primary, fallback, err := Analyzers(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	det, err := Detector(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Detector = det

	factory := gmaps.NewFactory(gmaps.Config{
		Headless:   cfg.Headless,
		MaxScrolls: cfg.MaxScrolls,
		Timeout:    cfg.ScrapeTimeout,
	})
	d.Collector = app.NewCollector(factory, app.NewNormalizer(cfg.NormalizerSeed),
		procreap.New(cfg.ChromeNames), backup.NewWriter(cfg.BackupDir), locker, app.CollectorConfig{})

	enricher := app.NewEnricher(primary, fallback, det, d.Cache, app.EnricherConfig{
		OnError: cfg.NLPOnError,
		Workers: cfg.EnrichWorkers,
	})
	d.Pipeline = app.NewPipeline(d.Collector, enricher, app.NewPersister(d.Repo, d.Cache)).WithRunLog(d.Repo)
	d.Queries = app.NewQueryService(d.Repo, d.Cache, cfg.CacheTTL)
	return d, nil
}
