package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/pricescout/kakaku-scraper/internal/extractor"
	"github.com/pricescout/kakaku-scraper/internal/fetch"
	"github.com/pricescout/kakaku-scraper/internal/models"
)

// Classify maps a raw pipeline error to the structured taxonomy attached
// to degraded search results. Unrecognized errors land in UNKNOWN_ERROR.
func Classify(err error) models.ScrapingError {
	if err == nil {
		return models.NewScrapingError(models.CodeUnknown, "no error", false)
	}

	var scrapingErr models.ScrapingError
	if errors.As(err, &scrapingErr) {
		return scrapingErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewScrapingError(models.CodeTimeout, err.Error(), true)
	}
	if errors.Is(err, context.Canceled) {
		return models.NewScrapingError(models.CodeTimeout, err.Error(), false)
	}

	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusForbidden || statusErr.StatusCode == http.StatusTooManyRequests {
			return models.NewScrapingError(models.CodeAccess, err.Error(), false)
		}
		return models.NewScrapingError(models.CodeNetwork, err.Error(), statusErr.StatusCode >= 500)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return models.NewScrapingError(models.CodeTimeout, err.Error(), true)
		}
		return models.NewScrapingError(models.CodeNetwork, err.Error(), true)
	}

	if errors.Is(err, extractor.ErrNoListings) {
		return models.NewScrapingError(models.CodeParsing, err.Error(), false)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return models.NewScrapingError(models.CodeTimeout, err.Error(), true)
	case strings.Contains(msg, "browser"), strings.Contains(msg, "playwright"), strings.Contains(msg, "page"):
		return models.NewScrapingError(models.CodeBrowser, err.Error(), true)
	case strings.Contains(msg, "connection"), strings.Contains(msg, "dns"), strings.Contains(msg, "network"):
		return models.NewScrapingError(models.CodeNetwork, err.Error(), true)
	case strings.Contains(msg, "parse"), strings.Contains(msg, "selector"):
		return models.NewScrapingError(models.CodeParsing, err.Error(), false)
	}

	return models.NewScrapingError(models.CodeUnknown, err.Error(), false)
}
