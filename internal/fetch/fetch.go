// Package fetch defines the page-fetch seam between the scraping pipeline
// and whatever obtains rendered HTML. Two strategies implement it: the
// headless-browser session in internal/browser and the plain-HTTP fetcher
// in this package. The strategy is selected via configuration.
package fetch

import (
	"context"
	"fmt"
)

// PageFetcher obtains the rendered HTML of a page.
type PageFetcher interface {
	FetchRendered(ctx context.Context, url string) (string, error)
	Close() error
}

// StatusError reports a non-success HTTP response during a fetch.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}
