package gmaps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"review_insights/internal/domain"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

type Config struct {
	Headless   bool
	MaxScrolls int
	Timeout    time.Duration
	// ScrollPause is the wait between feed scrolls.
	ScrollPause time.Duration
}

// Factory starts a fresh Chrome per acquisition.
type Factory struct {
	cfg Config
	now func() time.Time
}

func NewFactory(cfg Config) *Factory {
	if cfg.MaxScrolls <= 0 {
		cfg.MaxScrolls = 200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.ScrollPause <= 0 {
		cfg.ScrollPause = 1200 * time.Millisecond
	}
	return &Factory{cfg: cfg, now: time.Now}
}

func (f *Factory) Acquire(ctx context.Context) (domain.Driver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.UserAgent(userAgent),
	)
	// The browser outlives the Acquire call; Close ends it.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start Chrome now so acquisition failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &Driver{
		cfg: f.cfg, now: f.now, ctx: browserCtx,
		cancel: func() { cancelBrowser(); cancelAlloc() },
	}, nil
}

// Driver is one live Chrome session.
type Driver struct {
	cfg    Config
	now    func() time.Time
	ctx    context.Context
	cancel func()
	once   sync.Once
}

func (d *Driver) FetchReviews(ctx context.Context, url string) (domain.RawScrape, error) {
	runCtx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
	defer cancel()
	// caller cancellation also stops the browser tasks
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(withEnglish(url)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.Evaluate(consentScript, nil).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var opened bool
			return chromedp.Evaluate(openReviewsScript, &opened).Do(ctx)
		}),
		chromedp.WaitVisible(`div.jftiEf`, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error { return d.scroll(ctx) }),
		chromedp.Evaluate(expandScript, nil),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML(`body`, &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		if ctx.Err() != nil {
			return domain.RawScrape{}, ctx.Err()
		}
		return domain.RawScrape{}, err
	}

	reviews, err := ParseReviews(strings.NewReader(html), d.now())
	if err != nil {
		return domain.RawScrape{}, fmt.Errorf("parse reviews: %w", err)
	}
	if len(reviews) == 0 {
		log.Warn().Str("url", url).Msg("no reviews found on page")
	}
	return domain.RawScrape{Reviews: reviews}, nil
}

// scroll pages the review feed until its card count stops growing.
func (d *Driver) scroll(ctx context.Context) error {
	last, stable := -1, 0
	for i := 0; i < d.cfg.MaxScrolls; i++ {
		var n int
		if err := chromedp.Evaluate(scrollScript, &n).Do(ctx); err != nil {
			return err
		}
		if n == last {
			stable++
			if stable >= 3 {
				return nil
			}
		} else {
			stable = 0
		}
		last = n
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.cfg.ScrollPause):
		}
	}
	log.Debug().Int("cards", last).Msg("scroll limit reached")
	return nil
}

func (d *Driver) Close() error {
	if d == nil {
		return errors.New("nil driver")
	}
	d.once.Do(d.cancel)
	return nil
}

func withEnglish(url string) string {
	if strings.Contains(url, "hl=") {
		return url
	}
	if strings.Contains(url, "?") {
		return url + "&hl=en"
	}
	return url + "?hl=en"
}

const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'button[aria-label="Alles akzeptieren"]',
    'form[action*="consent"] button'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})();`

const openReviewsScript = `(function () {
  const tab = Array.from(document.querySelectorAll('button[role="tab"]'))
    .find(b => /reviews/i.test(b.getAttribute('aria-label') || b.textContent));
  if (tab) {
    tab.click();
    return true;
  }
  return false;
})();`

const scrollScript = `(function () {
  const card = document.querySelector('div.jftiEf');
  let feed = card ? card.closest('div.m6QErb[tabindex]') || card.parentElement : null;
  if (feed) {
    feed.scrollBy(0, feed.scrollHeight);
  }
  return document.querySelectorAll('div.jftiEf[data-review-id]').length;
})();`

const expandScript = `(function () {
  document.querySelectorAll('button.w8nwRe').forEach(b => b.click());
  return true;
})();`
