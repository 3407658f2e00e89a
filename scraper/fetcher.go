package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"realestate-scraper/config"
	"realestate-scraper/models"
	"realestate-scraper/utils"
)

// Fetcher retrieves a batch of URLs concurrently. It never retries and
// never drops a URL: every input yields exactly one RawDocument.
type Fetcher struct {
	getter      Getter
	render      Getter
	profile     *config.Profile
	rateLimitMs int
	logger      *utils.Logger
	now         func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithRenderer routes sources whose schema sets render: true to g.
func WithRenderer(g Getter) FetcherOption {
	return func(f *Fetcher) { f.render = g }
}

// WithProfile lets the fetcher attach locale hints and pick the renderer.
func WithProfile(p *config.Profile) FetcherOption {
	return func(f *Fetcher) { f.profile = p }
}

// WithRateLimit sets the minimum interval between request starts.
func WithRateLimit(ms int) FetcherOption {
	return func(f *Fetcher) { f.rateLimitMs = ms }
}

// WithFetchClock sets the clock used for RetrievedAt.
func WithFetchClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher creates a Fetcher over getter.
func NewFetcher(getter Getter, logger *utils.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{getter: getter, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll deduplicates urls and fetches each at most once with at most
// maxConcurrency requests in flight. Results follow first-occurrence input
// order. Cancelling ctx aborts in-flight requests; those and any not yet
// started are reported with a timeout status.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, maxConcurrency int, timeout time.Duration) []models.RawDocument {
	seen := utils.NewURLSet()
	unique := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u != "" && seen.Add(u) {
			unique = append(unique, u)
		}
	}

	f.logger.Info("[fetcher] Fetching %d URLs (%d duplicates skipped), concurrency %d",
		len(unique), len(urls)-len(unique), maxConcurrency)

	results := make([]models.RawDocument, len(unique))
	pool := utils.NewWorkerPool(maxConcurrency, f.rateLimitMs)
	for i, u := range unique {
		err := pool.Submit(ctx, func(ctx context.Context) {
			results[i] = f.fetchOne(ctx, u, timeout)
		})
		if err != nil {
			results[i] = f.failed(u, models.FetchTimeout, "cancelled before start: "+err.Error())
		}
	}
	pool.Wait()

	ok := 0
	for i := range results {
		if results[i].OK() {
			ok++
		}
	}
	f.logger.Info("[fetcher] Done: %d ok, %d failed", ok, len(results)-ok)
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, url string, timeout time.Duration) models.RawDocument {
	if ctx.Err() != nil {
		return f.failed(url, models.FetchTimeout, "cancelled before start: "+ctx.Err().Error())
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	getter, locale := f.route(url)
	start := time.Now()
	page, err := getter.Get(ctx, url)
	if err != nil {
		status := classify(err)
		f.logger.Warn("[fetcher] %s failed after %s: %s", url, time.Since(start).Round(time.Millisecond), status)
		doc := f.failed(url, status, err.Error())
		doc.LocaleHint = locale
		return doc
	}

	doc := models.RawDocument{
		SourceURL:   url,
		LocaleHint:  locale,
		RetrievedAt: f.now(),
		StatusCode:  page.StatusCode,
	}
	if blocked, kind := DetectBlock(page.StatusCode, page.Header, page.Body); blocked {
		doc.Blocked = true
		doc.Error = string(kind)
	}
	if page.StatusCode < 200 || page.StatusCode > 299 {
		doc.Status = models.FetchHTTPError
		if doc.Error == "" {
			doc.Error = http.StatusText(page.StatusCode)
		}
		f.logger.Warn("[fetcher] %s returned HTTP %d", url, page.StatusCode)
		return doc
	}

	doc.Status = models.FetchOK
	doc.Content = string(page.Body)
	if doc.Blocked {
		f.logger.Warn("[fetcher] %s looks like an anti-bot page (%s)", url, doc.Error)
	} else {
		f.logger.Debug("[fetcher] %s ok (%d bytes)", url, len(page.Body))
	}
	return doc
}

// route picks the Getter and locale hint for url from the source schema.
func (f *Fetcher) route(url string) (Getter, string) {
	if f.profile == nil {
		return f.getter, ""
	}
	schema := f.profile.SourceFor(url)
	if schema == nil {
		return f.getter, ""
	}
	if schema.Render && f.render != nil {
		return f.render, schema.Locale
	}
	return f.getter, schema.Locale
}

func (f *Fetcher) failed(url string, status models.FetchStatus, reason string) models.RawDocument {
	return models.RawDocument{
		SourceURL:   url,
		RetrievedAt: f.now(),
		Status:      status,
		Error:       reason,
	}
}

// classify maps a transport error onto a fetch status. Deadlines and
// cancellation both count as timeouts.
func classify(err error) models.FetchStatus {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.FetchTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return models.FetchTimeout
	}
	return models.FetchNetworkError
}
