// Package extractor turns raw HTML into typed records. Extraction is
// defensive throughout: every field tries an ordered list of selector
// candidates, malformed elements are dropped individually, and a parse
// that yields nothing is a soft failure the assembler answers with
// fallback data.
package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricescout/kakaku-scraper/internal/models"
)

// ErrNoListings signals that non-empty HTML produced zero valid records, a
// soft failure that defers to the fallback generator.
var ErrNoListings = errors.New("no valid listing elements extracted")

var (
	nonDigitPattern  = regexp.MustCompile(`[^\d]`)
	productIDPattern = regexp.MustCompile(`/item/([^/]+)/`)
	// Structured ids look like K0001234567 or J0000038168; synthetic ids
	// carry the scrape_ prefix.
	validIDPattern = regexp.MustCompile(`^K\d{10}$|^[A-Z]\d{7,}$|^scrape_\d+_\d+$`)
)

// ExtractProductID pulls the structured identifier out of an item link
// path, if present.
func ExtractProductID(productURL string) string {
	m := productIDPattern.FindStringSubmatch(productURL)
	if len(m) == 2 {
		return m[1]
	}
	return ""
}

// ValidProductID reports whether id has a shape the pipeline ever emits.
func ValidProductID(id string) bool {
	return validIDPattern.MatchString(id)
}

type ListingExtractor struct {
	containers []string
	images     *ImageRules
	siteBase   string
	logger     *slog.Logger
	now        func() time.Time
}

// NewListingExtractor builds the engine. containerSelectors overrides the
// default candidate list when non-empty.
func NewListingExtractor(containerSelectors []string, images *ImageRules, siteBase string, logger *slog.Logger) *ListingExtractor {
	if len(containerSelectors) == 0 {
		containerSelectors = defaultListingSelectors
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingExtractor{
		containers: containerSelectors,
		images:     images,
		siteBase:   strings.TrimSuffix(siteBase, "/"),
		logger:     logger.With("component", "listing_extractor"),
		now:        time.Now,
	}
}

// Extract parses search-result HTML into validated products. It returns
// ErrNoListings when nothing valid could be extracted from non-empty input.
func (e *ListingExtractor) Extract(html string, filters models.SearchFilters) ([]models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var elements *goquery.Selection
	for _, selector := range e.containers {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			elements = sel
			e.logger.Debug("listing container matched", "selector", selector, "count", sel.Length())
			break
		}
	}
	if elements == nil {
		return nil, ErrNoListings
	}

	scrapedAt := e.now()
	var products []models.Product
	elements.EachWithBreak(func(index int, el *goquery.Selection) bool {
		product, err := e.extractOne(el, index, scrapedAt)
		if err != nil {
			e.logger.Debug("listing element skipped", "index", index, "reason", err)
			return true
		}
		if !product.Valid() {
			e.logger.Debug("listing element failed validation", "index", index, "name", product.Name)
			return true
		}
		products = append(products, *product)
		return true
	})

	if len(products) == 0 {
		return nil, ErrNoListings
	}

	return ApplyFilters(products, filters), nil
}

func (e *ListingExtractor) extractOne(el *goquery.Selection, index int, scrapedAt time.Time) (*models.Product, error) {
	var name, href string
	for _, selector := range listingNameSelectors {
		node := el.Find(selector).First()
		if text := strings.TrimSpace(node.Text()); text != "" {
			name = text
			if h, ok := node.Attr("href"); ok {
				href = h
			}
			break
		}
	}
	if name == "" {
		return nil, errors.New("no product name")
	}

	price := 0
	for _, selector := range listingPriceSelectors {
		text := strings.TrimSpace(el.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if parsed := ParsePrice(text); parsed > 0 {
			price = parsed
			break
		}
	}
	if price <= 0 {
		return nil, errors.New("no parseable price")
	}

	productURL := href
	if productURL != "" && !strings.HasPrefix(productURL, "http") {
		productURL = e.siteBase + productURL
	}

	id := ExtractProductID(productURL)
	if id == "" {
		id = fmt.Sprintf("scrape_%d_%d", scrapedAt.UnixMilli(), index)
	}

	imageURL := e.extractImage(el, id)

	maker := ""
	for _, selector := range listingMakerSelectors {
		if text := strings.TrimSpace(el.Find(selector).First().Text()); text != "" {
			maker = text
			break
		}
	}
	shop := "価格.com"
	if maker != "" {
		shop = fmt.Sprintf("価格.com (%s)", maker)
	}

	var rating *float64
	for _, selector := range listingRatingSelectors {
		text := strings.TrimSpace(el.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if value, err := strconv.ParseFloat(text, 64); err == nil {
			rating = &value
			break
		}
	}

	return &models.Product{
		ID:         id,
		Name:       models.TruncateName(name),
		Price:      price,
		Shop:       shop,
		Rating:     rating,
		ImageURL:   imageURL,
		ProductURL: productURL,
		ScrapedAt:  scrapedAt,
		Source:     models.SourceKakaku,
	}, nil
}

// extractImage tries the deferred-source attribute first, then rendered
// sources, then an id-derived CDN guess for structured ids.
func (e *ListingExtractor) extractImage(el *goquery.Selection, id string) string {
	if dataSrc, ok := el.Find("img[data-src]").First().Attr("data-src"); ok {
		if e.images.Valid(dataSrc) {
			return e.images.Normalize(dataSrc)
		}
	}

	for _, selector := range listingImageSelectors {
		if src, ok := el.Find(selector).First().Attr("src"); ok {
			if e.images.Valid(src) {
				return e.images.Normalize(src)
			}
		}
	}

	if strings.HasPrefix(id, "K") || strings.HasPrefix(id, "J") {
		return fmt.Sprintf("https://img1.kakaku.k-img.com/images/productimage/l/%s.jpg", id)
	}
	return ""
}

// ParsePrice strips every non-digit rune and parses what remains.
func ParsePrice(text string) int {
	digits := nonDigitPattern.ReplaceAllString(text, "")
	if digits == "" {
		return 0
	}
	price, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return price
}

// ApplyFilters applies the price bounds, sort order, and result cap from
// the caller-supplied filters.
func ApplyFilters(products []models.Product, filters models.SearchFilters) []models.Product {
	filtered := products[:0:0]
	for _, p := range products {
		if filters.MinPrice > 0 && p.Price < filters.MinPrice {
			continue
		}
		if filters.MaxPrice > 0 && p.Price > filters.MaxPrice {
			continue
		}
		filtered = append(filtered, p)
	}

	sortProducts(filtered, filters.SortBy)

	if filters.MaxResults > 0 && len(filtered) > filters.MaxResults {
		filtered = filtered[:filters.MaxResults]
	}
	return filtered
}

func sortProducts(products []models.Product, order models.SortBy) {
	less := func(a, b models.Product) bool { return a.Price < b.Price }
	switch order {
	case models.SortPriceDesc:
		less = func(a, b models.Product) bool { return a.Price > b.Price }
	case models.SortNameAsc:
		less = func(a, b models.Product) bool { return a.Name < b.Name }
	case models.SortRatingDesc:
		less = func(a, b models.Product) bool {
			ar, br := 0.0, 0.0
			if a.Rating != nil {
				ar = *a.Rating
			}
			if b.Rating != nil {
				br = *b.Rating
			}
			return ar > br
		}
	}

	// Insertion sort keeps encounter order for equal keys.
	for i := 1; i < len(products); i++ {
		for j := i; j > 0 && less(products[j], products[j-1]); j-- {
			products[j-1], products[j] = products[j], products[j-1]
		}
	}
}
