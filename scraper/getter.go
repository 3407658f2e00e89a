// Package scraper retrieves listing documents. A Fetcher fans a URL batch
// out over a bounded worker pool and records every outcome as data.
package scraper

import (
	"context"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
)

// maxBodyBytes caps how much of a response is kept.
const maxBodyBytes = 8 << 20

// Page is one raw HTTP-level response.
type Page struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Getter retrieves one URL. Implementations must honor ctx cancellation
// and return a non-nil Page whenever the server answered.
type Getter interface {
	Get(ctx context.Context, url string) (*Page, error)
}

// HTTPGetter is the plain net/http Getter.
type HTTPGetter struct {
	client    *http.Client
	userAgent string
}

// NewHTTPGetter builds a Getter that sends userAgent on every request.
// Deadlines come from the request context, not the client.
func NewHTTPGetter(userAgent string) *HTTPGetter {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	transport.ResponseHeaderTimeout = 0
	return &HTTPGetter{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return eris.New("scraper: too many redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
	}
}

// Get implements Getter.
func (g *HTTPGetter) Get(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: build request for %s", url)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "he-IL,he;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: get %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: read body of %s", url)
	}
	return &Page{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// GetterFunc adapts a function to Getter.
type GetterFunc func(ctx context.Context, url string) (*Page, error)

// Get implements Getter.
func (f GetterFunc) Get(ctx context.Context, url string) (*Page, error) {
	return f(ctx, url)
}
