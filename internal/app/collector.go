package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"review_insights/internal/adapters/observability"
	"review_insights/internal/domain"
)

type CollectorConfig struct {
	// LockKey and LockTTL are used only when a Locker is configured.
	LockKey string
	LockTTL time.Duration
}

// Collector drives one browser session at a time and turns its output into
// normalized reviews. Reaper, dumps and locker are optional.
type Collector struct {
	factory domain.DriverFactory
	norm    *Normalizer
	reaper  domain.ProcessReaper
	dumps   domain.DumpWriter
	locker  domain.Locker
	cfg     CollectorConfig
	now     func() time.Time

	run sync.Mutex

	activeMu sync.Mutex
	active   domain.Driver
}

func NewCollector(f domain.DriverFactory, n *Normalizer, r domain.ProcessReaper, d domain.DumpWriter, l domain.Locker, cfg CollectorConfig) *Collector {
	if cfg.LockKey == "" {
		cfg.LockKey = "lock:collector"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Minute
	}
	return &Collector{factory: f, norm: n, reaper: r, dumps: d, locker: l, cfg: cfg, now: time.Now}
}

// Collect scrapes url. Failing to acquire or drive the browser returns a
// *domain.CollectionError and writes no dump; a failed dump is only logged.
func (c *Collector) Collect(ctx context.Context, url string) (domain.ScrapeResult, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return domain.ScrapeResult{}, &domain.CollectionError{URL: url, Err: errors.New("empty url")}
	}

	c.run.Lock()
	defer c.run.Unlock()

	if c.locker != nil {
		unlock, err := c.locker.Lock(ctx, c.cfg.LockKey, c.cfg.LockTTL)
		if err != nil {
			return domain.ScrapeResult{}, &domain.CollectionError{URL: url, Err: err}
		}
		defer unlock()
	}

	// Sweep only once we own the browser slot: our own live session would
	// otherwise look like an orphan.
	c.reap(ctx, "pre")

	raw, err := c.drive(ctx, url)
	c.reap(ctx, "post")
	if err != nil {
		return domain.ScrapeResult{}, &domain.CollectionError{URL: url, Err: err}
	}

	reviews, dropped := c.norm.NormalizeAll(raw.Reviews)
	res := domain.ScrapeResult{
		RunID:        uuid.NewString(),
		URL:          url,
		TotalReviews: len(reviews),
		Dropped:      dropped,
		Reviews:      reviews,
		ScrapedAt:    c.now().UTC(),
	}

	if c.dumps != nil {
		path, err := c.dumps.Write(res)
		if err != nil {
			log.Error().Err(err).Str("run_id", res.RunID).Msg("backup dump failed")
		} else {
			res.DumpPath = path
		}
	}

	log.Info().
		Str("run_id", res.RunID).
		Str("url", url).
		Int("collected", len(raw.Reviews)).
		Int("normalized", len(reviews)).
		Int("dropped", dropped).
		Msg("collection finished")
	return res, nil
}

// drive owns the driver for the duration of one fetch. Close runs on every
// exit path.
func (c *Collector) drive(ctx context.Context, url string) (domain.RawScrape, error) {
	start := time.Now()
	drv, err := c.factory.Acquire(ctx)
	if err != nil {
		observability.ObserveExternal("browser", "acquire", 0, time.Since(start))
		return domain.RawScrape{}, err
	}
	c.setActive(drv)
	defer func() {
		c.setActive(nil)
		if err := drv.Close(); err != nil {
			log.Warn().Err(err).Msg("driver close failed")
		}
	}()

	raw, err := drv.FetchReviews(ctx, url)
	status := 200
	if err != nil {
		status = 0
	}
	observability.ObserveExternal("browser", "fetch_reviews", status, time.Since(start))
	return raw, err
}

func (c *Collector) setActive(d domain.Driver) {
	c.activeMu.Lock()
	c.active = d
	c.activeMu.Unlock()
}

func (c *Collector) reap(ctx context.Context, phase string) {
	if c.reaper == nil {
		return
	}
	n, err := c.reaper.Reap(ctx)
	if err != nil {
		log.Warn().Err(err).Str("phase", phase).Msg("orphan sweep failed")
		return
	}
	if n > 0 {
		observability.ObserveReaped(n)
		log.Info().Int("killed", n).Str("phase", phase).Msg("orphan browser processes reaped")
	}
}

// Abort closes the active driver, if any, and sweeps leftover processes.
// It does not wait for the running Collect to return.
func (c *Collector) Abort(ctx context.Context) error {
	c.activeMu.Lock()
	drv := c.active
	c.activeMu.Unlock()

	var err error
	if drv != nil {
		err = drv.Close()
	}
	c.reap(ctx, "abort")
	return err
}
