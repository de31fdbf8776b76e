package extractor

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricescout/kakaku-scraper/internal/models"
)

var (
	priceRangePattern = regexp.MustCompile(`¥([\d,]+)～¥([\d,]+)`)
	storeCountPattern = regexp.MustCompile(`\((\d+)店舗\)`)
	makerSpecPattern  = regexp.MustCompile(`メーカー[：:]\s*(\S+)`)
)

// DetailExtractor parses a single product page. Every sub-extraction is
// independently best-effort with its own selector fallback chain; a
// missing section leaves its field zero rather than failing the page.
type DetailExtractor struct {
	images   *ImageRules
	siteBase string
	logger   *slog.Logger
	now      func() time.Time
}

func NewDetailExtractor(images *ImageRules, siteBase string, logger *slog.Logger) *DetailExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailExtractor{
		images:   images,
		siteBase: strings.TrimSuffix(siteBase, "/"),
		logger:   logger.With("component", "detail_extractor"),
		now:      time.Now,
	}
}

// Extract parses a product detail page into a ProductDetail keyed by
// productID. It fails only when the document yields neither a name nor a
// price, in which case the caller substitutes the deterministic mock.
func (e *DetailExtractor) Extract(html, productID string) (*models.ProductDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	name := e.extractName(doc)
	priceRange := e.extractPriceRange(doc)
	stores := e.extractStores(doc, productID)

	if name == "" && priceRange.Min == 0 && len(stores) == 0 {
		return nil, fmt.Errorf("detail page for %s yielded no content", productID)
	}
	if name == "" {
		name = "商品名不明"
	}

	shop := "価格.com"
	if len(stores) > 0 {
		shop = stores[0].Name
	}

	makerName, makerURL := e.extractMaker(doc)

	detail := &models.ProductDetail{
		Product: models.Product{
			ID:         productID,
			Name:       models.TruncateName(name),
			Price:      priceRange.Min,
			Shop:       shop,
			ImageURL:   e.extractImage(doc),
			ProductURL: fmt.Sprintf("%s/item/%s/", e.siteBase, productID),
			ScrapedAt:  e.now(),
			Source:     models.SourceKakaku,
		},
		Maker:           makerName,
		MakerProductURL: makerURL,
		PriceRange:      priceRange,
		Stores:          stores,
		Review:          e.extractReview(doc),
		Rankings:        e.extractRankings(doc),
	}

	return detail, nil
}

func (e *DetailExtractor) extractName(doc *goquery.Document) string {
	for _, selector := range detailNameSelectors {
		name := strings.TrimSpace(doc.Find(selector).First().Text())
		if len([]rune(name)) > models.MinNameLength {
			return name
		}
	}
	return ""
}

func (e *DetailExtractor) extractImage(doc *goquery.Document) string {
	for _, selector := range detailImageSelectors {
		if src, ok := doc.Find(selector).First().Attr("src"); ok {
			if e.images.Valid(src) {
				return e.images.Normalize(src)
			}
		}
	}
	return ""
}

// extractPriceRange parses the `¥min～¥max (N店舗)` block. Max defaults to
// min and the store count to 1 when the pattern is partial.
func (e *DetailExtractor) extractPriceRange(doc *goquery.Document) models.PriceRange {
	min := 0
	for _, selector := range detailPriceSelectors {
		if parsed := ParsePrice(doc.Find(selector).First().Text()); parsed > 0 {
			min = parsed
			break
		}
	}

	rangeText := ""
	for _, selector := range detailPriceRangeSelectors {
		if text := doc.Find(selector).Text(); strings.TrimSpace(text) != "" {
			rangeText = text
			break
		}
	}

	max := min
	if m := priceRangePattern.FindStringSubmatch(rangeText); len(m) == 3 {
		low := ParsePrice(m[1])
		high := ParsePrice(m[2])
		if min == 0 {
			min = low
		}
		if high > 0 {
			max = high
		}
	}
	if max < min {
		max = min
	}

	storeCount := 1
	if m := storeCountPattern.FindStringSubmatch(rangeText); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			storeCount = n
		}
	}

	return models.PriceRange{Min: min, Max: max, StoreCount: storeCount}
}

// extractMaker reads the product spec table first, falling back to the
// dedicated maker element.
func (e *DetailExtractor) extractMaker(doc *goquery.Document) (name, url string) {
	specText := doc.Find("#specBox").Text()
	if m := makerSpecPattern.FindStringSubmatch(specText); len(m) == 2 {
		name = m[1]
	}
	if name == "" {
		for _, selector := range detailMakerSelectors {
			if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
				name = text
				break
			}
		}
	}

	for _, selector := range detailMakerURLSelectors {
		if href, ok := doc.Find(selector).First().Attr("href"); ok && href != "" {
			url = href
			break
		}
	}
	return name, url
}

func (e *DetailExtractor) extractReview(doc *goquery.Document) *models.Review {
	ratingText := ""
	for _, selector := range detailRatingSelectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			ratingText = text
			break
		}
	}
	if ratingText == "" {
		return nil
	}

	rating, err := strconv.ParseFloat(ratingText, 64)
	if err != nil {
		return nil
	}

	count := 0
	for _, selector := range detailReviewCountSelectors {
		if parsed := ParsePrice(doc.Find(selector).First().Text()); parsed > 0 {
			count = parsed
			break
		}
	}

	return &models.Review{AverageRating: rating, ReviewCount: count}
}

func (e *DetailExtractor) extractRankings(doc *goquery.Document) []models.Ranking {
	var rankings []models.Ranking
	for _, selector := range detailRankingSelectors {
		doc.Find(selector).Each(func(_ int, el *goquery.Selection) {
			link := el.Find("a").First()
			categoryName := strings.TrimSpace(link.Text())
			rank := ParsePrice(el.Find(".rankNum, .rank").First().Text())
			if categoryName == "" || rank <= 0 {
				return
			}
			categoryURL, _ := link.Attr("href")
			rankings = append(rankings, models.Ranking{
				CategoryName: categoryName,
				CategoryURL:  categoryURL,
				Rank:         rank,
			})
		})
		if len(rankings) > 0 {
			break
		}
	}
	return rankings
}

// extractStores walks the store comparison table. Rows lacking a valid
// price or shop name are skipped; one malformed row never aborts the rest.
// The result is sorted ascending by price with ranks reassigned.
func (e *DetailExtractor) extractStores(doc *goquery.Document, productID string) []models.Store {
	var rows *goquery.Selection
	for _, selector := range detailStoreRowSelectors {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			rows = sel
			break
		}
	}
	if rows == nil {
		return nil
	}

	var stores []models.Store
	rows.Each(func(index int, row *goquery.Selection) {
		price := ParsePrice(row.Find(".p-PTPrice_price, .priceTxt, .price").First().Text())
		name := strings.TrimSpace(row.Find(".p-PTShopData_name_link, .storeName a, .shopName").First().Text())
		if price <= 0 || name == "" {
			return
		}

		shippingText := strings.TrimSpace(row.Find(".p-PTShipping_btn, .shipping").First().Text())
		isFree := strings.Contains(shippingText, "無料") || strings.Contains(strings.ToLower(shippingText), "free")
		shippingCost := 500
		if isFree {
			shippingCost = 0
		}

		stockText := strings.TrimSpace(row.Find(".p-PTStock, .stock").First().Text())
		available := strings.Contains(stockText, "○") || !strings.Contains(stockText, "×")

		location := strings.Trim(strings.TrimSpace(row.Find(".p-PTShopData_name_area_btn").Text()), "()（）")
		years := ParsePrice(row.Find(".p-PTShopData_year_btn").Text())
		storeRating := ParsePrice(row.Find(".p-PTShopData_gauge_level_btn_num").Text())

		productURL, _ := row.Find(`a[href*="forwarder"], .shopLink a`).First().Attr("href")

		stores = append(stores, models.Store{
			ID:    fmt.Sprintf("%s_%d", productID, index),
			Name:  name,
			Price: price,
			Shipping: models.Shipping{
				Cost:        shippingCost,
				IsFree:      isFree,
				Description: shippingText,
			},
			Stock: models.Stock{
				Available:      available,
				Description:    stockText,
				HasStorePickup: row.Find(".p-PTStock_sub_link").Length() > 0,
			},
			PaymentMethods: models.PaymentMethods{
				CreditCard:     row.Find(`[class*="card"], [class*="credit"]`).Length() > 0,
				CashOnDelivery: row.Find(`[class*="cash"], [class*="cod"]`).Length() > 0,
				BankTransfer:   row.Find(`[class*="transfer"], [class*="bank"]`).Length() > 0,
				Convenience:    row.Find(`[class*="cvs"], [class*="convenience"]`).Length() > 0,
			},
			StoreInfo: models.StoreInfo{
				Location:        location,
				YearsInBusiness: years,
				Rating:          storeRating,
			},
			ProductURL:           productURL,
			HasWarrantyExtension: row.Find(".warranty, .p-PTWarranty").Length() > 0,
		})
	})

	models.SortStoresByPrice(stores)
	return stores
}
