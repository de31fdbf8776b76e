// Package scraper assembles the search pipeline: courtesy checks, rate
// limiting, page fetching, extraction, and fallback degradation. Its
// external contract is deliberate: given valid filters, Search always
// returns a well-formed result, substituting labeled fallback data when
// the live path fails.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/pricescout/kakaku-scraper/internal/config"
	"github.com/pricescout/kakaku-scraper/internal/extractor"
	"github.com/pricescout/kakaku-scraper/internal/fetch"
	"github.com/pricescout/kakaku-scraper/internal/models"
	"github.com/pricescout/kakaku-scraper/internal/popularity"
	"github.com/pricescout/kakaku-scraper/internal/ratelimit"
	"github.com/pricescout/kakaku-scraper/internal/robots"
)

// ErrInvalidProductID rejects detail lookups whose id can never have been
// produced by the pipeline.
var ErrInvalidProductID = errors.New("invalid product id")

// Elapsed-time thresholds for the performance bucket in SearchInfo.
const (
	fastThreshold   = 6 * time.Second
	normalThreshold = 10 * time.Second
)

type Service struct {
	cfg       config.ScraperConfig
	fetcher   fetch.PageFetcher
	limiter   *ratelimit.Limiter
	robots    *robots.Checker
	keywords  popularity.Tracker
	listing   *extractor.ListingExtractor
	detail    *extractor.DetailExtractor
	generator *extractor.Generator
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time

	totalSearches    atomic.Int64
	fallbackSearches atomic.Int64
	totalDetails     atomic.Int64
}

// Snapshot is the counter block served by the stats endpoint.
type Snapshot struct {
	TotalSearches    int64 `json:"totalSearches"`
	FallbackSearches int64 `json:"fallbackSearches"`
	TotalDetails     int64 `json:"totalDetails"`
}

// NewService wires the pipeline. robotsChecker and keywords may be nil;
// the corresponding step is then skipped.
func NewService(
	cfg config.ScraperConfig,
	fetcher fetch.PageFetcher,
	limiter *ratelimit.Limiter,
	robotsChecker *robots.Checker,
	keywords popularity.Tracker,
	metrics *Metrics,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	images := extractor.NewImageRules(cfg.ImageCDNHosts, cfg.ItemBaseURL)
	return &Service{
		cfg:       cfg,
		fetcher:   fetcher,
		limiter:   limiter,
		robots:    robotsChecker,
		keywords:  keywords,
		listing:   extractor.NewListingExtractor(cfg.ListingSelectors, images, cfg.ItemBaseURL, logger),
		detail:    extractor.NewDetailExtractor(images, cfg.ItemBaseURL, logger),
		generator: extractor.NewGenerator(cfg.FallbackCount, cfg.ItemBaseURL),
		metrics:   metrics,
		logger:    logger.With("component", "scraper"),
		now:       time.Now,
	}
}

// Search runs the full pipeline for the given filters. It returns an error
// only when the filters themselves are invalid; every scraping failure
// degrades to fallback products with diagnostics attached.
func (s *Service) Search(ctx context.Context, filters models.SearchFilters) (*models.SearchResult, error) {
	if err := filters.Normalize(); err != nil {
		return nil, err
	}

	started := s.now()
	s.totalSearches.Add(1)
	if s.keywords != nil {
		s.keywords.Record(ctx, filters.Keyword)
	}

	searchURL := fmt.Sprintf("%s/%s/", s.cfg.SearchBaseURL, url.PathEscape(filters.Keyword))
	result := &models.SearchResult{}

	products, warnings, scrapeErr := s.scrapeListings(ctx, searchURL, filters)
	result.Warnings = warnings
	source := models.SourceKakaku

	if scrapeErr != nil {
		classified := Classify(scrapeErr)
		s.logger.Warn("live extraction failed, serving fallback",
			"keyword", filters.Keyword,
			"code", classified.Code,
			"error", scrapeErr,
		)
		result.Errors = append(result.Errors, classified)
		result.Warnings = append(result.Warnings, "結果はサンプルデータです")
		products = extractor.ApplyFilters(s.generator.Listings(filters.Keyword, 0), filters)
		source = models.SourceFallback
		s.fallbackSearches.Add(1)
		s.metrics.ObserveFallback(classified.Code)
	}

	elapsed := s.now().Sub(started)
	imageRate := imageSuccessRate(products)

	result.Products = products
	result.SearchInfo = models.SearchInfo{
		Keyword:          filters.Keyword,
		TotalFound:       len(products),
		SearchTimeMs:     elapsed.Milliseconds(),
		Source:           source,
		ImageSuccessRate: imageRate,
		Performance:      performanceBucket(elapsed),
	}

	s.metrics.ObserveSearch(string(source), elapsed.Seconds(), len(products), imageRate)
	s.logger.Info("search completed",
		"keyword", filters.Keyword,
		"products", len(products),
		"source", source,
		"elapsedMs", elapsed.Milliseconds(),
		"imageSuccessRate", imageRate,
	)
	return result, nil
}

func (s *Service) scrapeListings(ctx context.Context, searchURL string, filters models.SearchFilters) ([]models.Product, []string, error) {
	var warnings []string

	domain, err := domainOf(searchURL)
	if err != nil {
		return nil, warnings, err
	}

	warnings = append(warnings, s.applyCourtesy(ctx, searchURL, domain)...)

	permit, err := s.limiter.Acquire(ctx, domain)
	if err != nil {
		return nil, warnings, err
	}
	defer permit.Release()

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	html, err := s.fetcher.FetchRendered(fetchCtx, searchURL)
	if err != nil {
		return nil, warnings, err
	}

	products, err := s.listing.Extract(html, filters)
	if err != nil {
		return nil, warnings, err
	}
	return products, warnings, nil
}

// ProductDetail fetches and parses a single product page. An id the
// pipeline could never emit is the only hard error; scraping failures
// degrade to a deterministic synthetic record.
func (s *Service) ProductDetail(ctx context.Context, productID string) (*models.ProductDetail, []string, error) {
	if !extractor.ValidProductID(productID) {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidProductID, productID)
	}
	s.totalDetails.Add(1)

	detail, warnings, err := s.scrapeDetail(ctx, productID)
	if err != nil {
		classified := Classify(err)
		s.logger.Warn("detail extraction failed, serving fallback",
			"productId", productID,
			"code", classified.Code,
			"error", err,
		)
		s.metrics.ObserveDetail("fallback")
		s.metrics.ObserveFallback(classified.Code)
		warnings = append(warnings, "結果はサンプルデータです")
		return s.generator.Detail(productID), warnings, nil
	}

	s.metrics.ObserveDetail("live")
	return detail, warnings, nil
}

func (s *Service) scrapeDetail(ctx context.Context, productID string) (*models.ProductDetail, []string, error) {
	var warnings []string

	itemURL := fmt.Sprintf("%s/item/%s/", s.cfg.ItemBaseURL, productID)
	domain, err := domainOf(itemURL)
	if err != nil {
		return nil, warnings, err
	}

	warnings = append(warnings, s.applyCourtesy(ctx, itemURL, domain)...)

	permit, err := s.limiter.Acquire(ctx, domain)
	if err != nil {
		return nil, warnings, err
	}
	defer permit.Release()

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	html, err := s.fetcher.FetchRendered(fetchCtx, itemURL)
	if err != nil {
		return nil, warnings, err
	}

	detail, err := s.detail.Extract(html, productID)
	if err != nil {
		return nil, warnings, err
	}
	return detail, warnings, nil
}

// applyCourtesy consults robots.txt for the target URL. The policy is
// advisory: a disallowed path only produces a warning, and a crawl-delay
// raises the limiter's delay floor for the domain.
func (s *Service) applyCourtesy(ctx context.Context, rawURL, domain string) []string {
	if s.robots == nil {
		return nil
	}

	policy, err := s.robots.Check(ctx, rawURL)
	if err != nil {
		s.logger.Warn("robots check failed", "url", rawURL, "error", err)
		return nil
	}

	var warnings []string
	if u, err := url.Parse(rawURL); err == nil && !policy.Allowed(u.Path) {
		s.logger.Warn("path disallowed by robots.txt", "url", rawURL)
		warnings = append(warnings, fmt.Sprintf("robots.txt disallows %s", u.Path))
	}
	if policy.CrawlDelay > 0 {
		s.limiter.SetMinDelay(domain, policy.CrawlDelay)
	}
	return warnings
}

// Close releases the underlying fetcher.
func (s *Service) Close() error {
	return s.fetcher.Close()
}

// LimiterStats exposes the rate limiter snapshot for the stats endpoint.
func (s *Service) LimiterStats() map[string]ratelimit.Stats {
	return s.limiter.AllStats()
}

// Stats returns the service's request counters.
func (s *Service) Stats() Snapshot {
	return Snapshot{
		TotalSearches:    s.totalSearches.Load(),
		FallbackSearches: s.fallbackSearches.Load(),
		TotalDetails:     s.totalDetails.Load(),
	}
}

func domainOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return u.Host, nil
}

func imageSuccessRate(products []models.Product) float64 {
	if len(products) == 0 {
		return 0
	}
	withImage := 0
	for _, p := range products {
		if p.ImageURL != "" {
			withImage++
		}
	}
	return float64(withImage) / float64(len(products))
}

func performanceBucket(elapsed time.Duration) string {
	switch {
	case elapsed < fastThreshold:
		return models.PerformanceFast
	case elapsed < normalThreshold:
		return models.PerformanceNormal
	default:
		return models.PerformanceSlow
	}
}
