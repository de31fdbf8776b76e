package extractor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/kakaku-scraper/internal/models"
)

const listingFixture = `
<html><body>
<div class="c-list1_cell p-resultItem">
  <p class="p-item_name"><a href="/item/K0001234567/">ノートパソコン Aモデル 16GB</a></p>
  <p class="p-item_price"><em class="p-item_priceNum">128,000</em>円</p>
  <p class="p-item_maker">パナソニック</p>
  <img class="p-item_visual_entity" src="https://img1.kakaku.k-img.com/images/productimage/l/K0001234567.jpg">
</div>
<div class="c-list1_cell p-resultItem">
  <p class="p-item_name"><a href="/item/J0000038168/">ノートパソコン Bモデル 8GB</a></p>
  <p class="p-item_price"><em class="p-item_priceNum">89,800</em>円</p>
  <p class="p-item_maker">ソニー</p>
  <img class="p-item_visual_entity" src="//img1.kakaku.k-img.com/images/productimage/m/J0000038168.jpg">
</div>
<div class="c-list1_cell p-resultItem">
  <p class="p-item_name"><a href="/item/K0009999999/">ノートパソコン Cモデル</a></p>
  <p class="p-item_maker">シャープ</p>
</div>
<div class="c-list1_cell p-resultItem">
  <p class="p-item_name"><a href="/item/K0008888888/">PC</a></p>
  <p class="p-item_price"><em class="p-item_priceNum">55,000</em>円</p>
</div>
</body></html>`

func newTestListingExtractor() *ListingExtractor {
	images := NewImageRules([]string{"kakaku.k-img.com"}, "https://kakaku.com")
	return NewListingExtractor(nil, images, "https://kakaku.com", nil)
}

func TestExtractDropsMalformedElementsIndividually(t *testing.T) {
	e := newTestListingExtractor()

	products, err := e.Extract(listingFixture, models.SearchFilters{MaxResults: 30})
	require.NoError(t, err)

	// Four elements: one has no price, one has a 2-rune name. Both go.
	require.Len(t, products, 2)
	for _, p := range products {
		assert.True(t, p.Valid())
		assert.Equal(t, models.SourceKakaku, p.Source)
	}
}

func TestExtractPopulatesFields(t *testing.T) {
	e := newTestListingExtractor()

	products, err := e.Extract(listingFixture, models.SearchFilters{MaxResults: 30, SortBy: models.SortPriceDesc})
	require.NoError(t, err)
	require.Len(t, products, 2)

	first := products[0]
	assert.Equal(t, "K0001234567", first.ID)
	assert.Equal(t, "ノートパソコン Aモデル 16GB", first.Name)
	assert.Equal(t, 128000, first.Price)
	assert.Equal(t, "価格.com (パナソニック)", first.Shop)
	assert.Equal(t, "https://kakaku.com/item/K0001234567/", first.ProductURL)
	assert.Equal(t, "https://img1.kakaku.k-img.com/images/productimage/l/K0001234567.jpg", first.ImageURL)

	second := products[1]
	assert.Equal(t, "J0000038168", second.ID)
	// Protocol-relative medium-resolution source is rewritten.
	assert.Equal(t, "https://img1.kakaku.k-img.com/images/productimage/l/J0000038168.jpg", second.ImageURL)
}

func TestExtractIsIdempotent(t *testing.T) {
	e := newTestListingExtractor()
	e.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	filters := models.SearchFilters{MaxResults: 30}
	first, err := e.Extract(listingFixture, filters)
	require.NoError(t, err)
	second, err := e.Extract(listingFixture, filters)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractReturnsErrNoListingsOnGarbage(t *testing.T) {
	e := newTestListingExtractor()

	_, err := e.Extract("<html><body><p>not a results page</p></body></html>", models.SearchFilters{})
	assert.ErrorIs(t, err, ErrNoListings)
}

func TestExtractSynthesizesIDWhenLinkMissing(t *testing.T) {
	e := newTestListingExtractor()
	html := `<div class="p-resultItem">
	  <p class="p-item_name">リンクなし製品モデル</p>
	  <p class="p-item_price"><em class="p-item_priceNum">12,800</em></p>
	</div>`

	products, err := e.Extract(html, models.SearchFilters{MaxResults: 30})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Regexp(t, `^scrape_\d+_\d+$`, products[0].ID)
	assert.True(t, ValidProductID(products[0].ID))
}

func TestParsePrice(t *testing.T) {
	assert.Equal(t, 128000, ParsePrice("¥128,000"))
	assert.Equal(t, 998, ParsePrice("998円"))
	assert.Equal(t, 0, ParsePrice("価格情報なし"))
	assert.Equal(t, 0, ParsePrice(""))
}

func TestExtractProductID(t *testing.T) {
	assert.Equal(t, "K0001234567", ExtractProductID("https://kakaku.com/item/K0001234567/"))
	assert.Equal(t, "", ExtractProductID("https://kakaku.com/search_results/pc/"))
}

func TestValidProductID(t *testing.T) {
	assert.True(t, ValidProductID("K0001234567"))
	assert.True(t, ValidProductID("J0000038168"))
	assert.True(t, ValidProductID("scrape_1717243200000_3"))
	assert.False(t, ValidProductID("K123"))
	assert.False(t, ValidProductID("../../etc/passwd"))
	assert.False(t, ValidProductID(""))
}

func TestApplyFiltersPriceBoundsAndCap(t *testing.T) {
	products := []models.Product{
		{Name: "製品その1", Price: 1000, Shop: "a"},
		{Name: "製品その2", Price: 5000, Shop: "a"},
		{Name: "製品その3", Price: 9000, Shop: "a"},
	}

	out := ApplyFilters(products, models.SearchFilters{MinPrice: 2000, MaxPrice: 8000, MaxResults: 10})
	require.Len(t, out, 1)
	assert.Equal(t, 5000, out[0].Price)

	out = ApplyFilters(products, models.SearchFilters{MaxResults: 2})
	assert.Len(t, out, 2)
}

func TestApplyFiltersSortIsStable(t *testing.T) {
	products := []models.Product{
		{ID: "a", Name: "同価格その1", Price: 5000, Shop: "s"},
		{ID: "b", Name: "同価格その2", Price: 5000, Shop: "s"},
		{ID: "c", Name: "安価な製品", Price: 1000, Shop: "s"},
	}

	out := ApplyFilters(products, models.SearchFilters{SortBy: models.SortPriceAsc, MaxResults: 10})
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
	assert.Equal(t, "b", out[2].ID)
}

func TestApplyFiltersSortOrders(t *testing.T) {
	r1, r2 := 4.5, 3.0
	products := []models.Product{
		{ID: "a", Name: "ベータ機種", Price: 9000, Rating: &r2, Shop: "s"},
		{ID: "b", Name: "アルファ機種", Price: 3000, Rating: &r1, Shop: "s"},
		{ID: "c", Name: "ガンマ機種", Price: 6000, Shop: "s"},
	}

	desc := ApplyFilters(products, models.SearchFilters{SortBy: models.SortPriceDesc, MaxResults: 10})
	assert.Equal(t, []int{9000, 6000, 3000}, []int{desc[0].Price, desc[1].Price, desc[2].Price})

	byRating := ApplyFilters(products, models.SearchFilters{SortBy: models.SortRatingDesc, MaxResults: 10})
	assert.Equal(t, "b", byRating[0].ID)
	assert.Equal(t, "a", byRating[1].ID)
	assert.Equal(t, "c", byRating[2].ID)

	byName := ApplyFilters(products, models.SearchFilters{SortBy: models.SortNameAsc, MaxResults: 10})
	assert.Equal(t, "b", byName[0].ID)
}
