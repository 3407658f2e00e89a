package scraper

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"realestate-scraper/utils"
)

// renderSettle is how long a rendered page is given to run its scripts.
const renderSettle = 3 * time.Second

// BrowserGetter renders pages in headless Chrome for sources whose
// content only exists after JavaScript runs. Each Get opens its own tab.
type BrowserGetter struct {
	browserCtx context.Context
	cancel     context.CancelFunc
	logger     *utils.Logger
}

// NewBrowserGetter starts a headless browser. chromeBin may be empty, in
// which case the usual install locations are searched.
func NewBrowserGetter(chromeBin, userAgent string, logger *utils.Logger) (*BrowserGetter, error) {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	if chromeBin == "" {
		return nil, eris.New("scraper: no chrome binary found")
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
		chromedp.ExecPath(chromeBin),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}

	// The first Run launches the browser; later tabs share it.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, eris.Wrap(err, "scraper: start browser")
	}
	return &BrowserGetter{browserCtx: browserCtx, cancel: cancel, logger: logger}, nil
}

// Get implements Getter.
func (b *BrowserGetter) Get(ctx context.Context, url string) (*Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err == nil {
		err = chromedp.Run(tabCtx,
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(renderSettle),
			// Feeds load more posts as they scroll.
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
			chromedp.Sleep(renderSettle/3),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(renderSettle/3),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
	}
	if ctx.Err() != nil {
		return nil, eris.Wrapf(ctx.Err(), "scraper: render %s", url)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: render %s", url)
	}

	status := 200
	if resp != nil && resp.Status != 0 {
		status = int(resp.Status)
	}
	b.logger.Debug("[browser] Rendered %s (%d bytes)", url, len(html))
	return &Page{StatusCode: status, Body: []byte(html)}, nil
}

// Close shuts the browser down.
func (b *BrowserGetter) Close() {
	b.cancel()
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
