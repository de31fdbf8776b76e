package extractor

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/pricescout/kakaku-scraper/internal/models"
)

// sampleImageURLs are real CDN paths reused round-robin so fallback
// records render with plausible product imagery.
var sampleImageURLs = []string{
	"https://img1.kakaku.k-img.com/images/productimage/l/J0000038168.jpg",
	"https://img1.kakaku.k-img.com/images/productimage/l/J0000040001.jpg",
	"https://img1.kakaku.k-img.com/images/productimage/l/J0000035000.jpg",
}

var sampleMakers = []string{"パナソニック", "ソニー", "シャープ", "東芝"}

var sampleStoreNames = []string{
	"ECカレント", "ノジマオンライン", "コジマネット", "ヤマダウェブコム", "ビックカメラ.com",
}

// Generator produces synthetic records when live extraction fails. Its
// output is clearly labeled through Source and the shop string so callers
// never mistake it for live data.
type Generator struct {
	count    int
	siteBase string
	now      func() time.Time
}

func NewGenerator(count int, siteBase string) *Generator {
	if count <= 0 {
		count = 8
	}
	return &Generator{count: count, siteBase: siteBase, now: time.Now}
}

// Listings returns n synthetic products for the keyword, or the configured
// default count when n is not positive. Every record passes Valid.
func (g *Generator) Listings(keyword string, n int) []models.Product {
	if n <= 0 {
		n = g.count
	}
	scrapedAt := g.now()
	seed := stableSeed(keyword)
	rng := rand.New(rand.NewSource(seed))

	products := make([]models.Product, 0, n)
	for i := 0; i < n; i++ {
		price := 9800 + rng.Intn(90)*1000 + i*500
		rating := float64(30+rng.Intn(21)) / 10
		maker := sampleMakers[i%len(sampleMakers)]
		products = append(products, models.Product{
			ID:         fmt.Sprintf("scrape_%d_%d", scrapedAt.UnixMilli(), i),
			Name:       fmt.Sprintf("%s 人気モデル %d", keyword, i+1),
			Price:      price,
			Shop:       fmt.Sprintf("価格.com (%s) [サンプル]", maker),
			Rating:     &rating,
			ImageURL:   sampleImageURLs[i%len(sampleImageURLs)],
			ProductURL: fmt.Sprintf("%s/search_results/%s/", g.siteBase, keyword),
			ScrapedAt:  scrapedAt,
			Source:     models.SourceFallback,
		})
	}
	return products
}

// Detail returns a deterministic synthetic detail record for productID.
// The same id always yields the same prices and stores.
func (g *Generator) Detail(productID string) *models.ProductDetail {
	rng := rand.New(rand.NewSource(stableSeed(productID)))
	scrapedAt := g.now()

	basePrice := 15000 + rng.Intn(85)*1000
	storeCount := 5
	stores := make([]models.Store, 0, storeCount)
	for i := 0; i < storeCount; i++ {
		price := basePrice + rng.Intn(8000)
		isFree := rng.Intn(2) == 0
		cost := 550
		if isFree {
			cost = 0
		}
		desc := "送料無料"
		if !isFree {
			desc = fmt.Sprintf("送料%d円", cost)
		}
		stores = append(stores, models.Store{
			ID:    fmt.Sprintf("%s_%d", productID, i),
			Name:  sampleStoreNames[i%len(sampleStoreNames)],
			Price: price,
			Shipping: models.Shipping{
				Cost:        cost,
				IsFree:      isFree,
				Description: desc,
			},
			Stock: models.Stock{
				Available:   true,
				Description: "○ 在庫あり",
			},
			PaymentMethods: models.PaymentMethods{
				CreditCard:     true,
				CashOnDelivery: rng.Intn(2) == 0,
				BankTransfer:   true,
				Convenience:    rng.Intn(2) == 0,
			},
			StoreInfo: models.StoreInfo{
				Location:        "東京",
				YearsInBusiness: 5 + rng.Intn(20),
				Rating:          3 + rng.Intn(3),
			},
			ProductURL: fmt.Sprintf("%s/item/%s/", g.siteBase, productID),
		})
	}
	models.SortStoresByPrice(stores)

	min := stores[0].Price
	max := stores[len(stores)-1].Price
	rating := float64(35+rng.Intn(13)) / 10
	imageIndex := int(stableSeed(productID)&0x7fffffff) % len(sampleImageURLs)

	return &models.ProductDetail{
		Product: models.Product{
			ID:         productID,
			Name:       fmt.Sprintf("サンプル製品 %s", productID),
			Price:      min,
			Shop:       stores[0].Name,
			ImageURL:   sampleImageURLs[imageIndex],
			ProductURL: fmt.Sprintf("%s/item/%s/", g.siteBase, productID),
			ScrapedAt:  scrapedAt,
			Source:     models.SourceFallback,
		},
		Maker:      sampleMakers[int(stableSeed(productID)&0x7fffffff)%len(sampleMakers)],
		PriceRange: models.PriceRange{Min: min, Max: max, StoreCount: storeCount},
		Stores:     stores,
		Review: &models.Review{
			AverageRating: rating,
			ReviewCount:   10 + rng.Intn(300),
		},
	}
}

func stableSeed(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
