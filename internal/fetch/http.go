package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

// HTTPFetcher is the no-browser strategy: it downloads the page body
// without executing scripts. Lazy-loaded images stay in their deferred
// attributes, which the extraction engine reads directly.
type HTTPFetcher struct {
	userAgent string
	timeout   time.Duration
	transport http.RoundTripper
	logger    *slog.Logger
}

type HTTPOption func(*HTTPFetcher)

// WithTransport overrides the HTTP transport, used by tests to stub
// responses.
func WithTransport(rt http.RoundTripper) HTTPOption {
	return func(f *HTTPFetcher) { f.transport = rt }
}

func NewHTTPFetcher(userAgent string, timeout time.Duration, logger *slog.Logger, opts ...HTTPOption) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &HTTPFetcher{
		userAgent: userAgent,
		timeout:   timeout,
		logger:    logger.With("component", "http_fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) FetchRendered(ctx context.Context, rawURL string) (string, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(f.timeout)
	if f.transport != nil {
		c.WithTransport(f.transport)
	}

	var (
		html     string
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if err := ctx.Err(); err != nil {
			r.Abort()
			fetchErr = err
		}
	})

	c.OnResponse(func(r *colly.Response) {
		html = string(r.Body)
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &StatusError{StatusCode: r.StatusCode, URL: rawURL}
			return
		}
		fetchErr = err
	})

	start := time.Now()
	if err := c.Visit(rawURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		return "", fmt.Errorf("http fetch: %w", fetchErr)
	}

	f.logger.Debug("page fetched",
		"url", rawURL,
		"bytes", len(html),
		"elapsed", time.Since(start),
	)
	return html, nil
}

func (f *HTTPFetcher) Close() error { return nil }
