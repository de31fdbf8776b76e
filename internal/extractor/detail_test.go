package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailFixture = `
<html><body>
<div id="productAll">
  <h1 itemprop="name">テスト製品 X1000 プレミアムモデル</h1>
  <div id="imgBox"><img itemprop="image" src="https://img1.kakaku.k-img.com/images/productimage/m/K0001234567.jpg"></div>
  <p class="priceTxt">¥10,000</p>
  <div class="subInfoObj4">¥10,000～¥25,000 (8店舗)</div>
  <div id="specBox">型番: X1000 メーカー：テストメーカー 発売日: 2025年</div>
  <div id="makerInfo"><a href="https://maker.example.com/x1000">メーカー製品ページ</a></div>
  <span itemprop="ratingValue">4.35</span>
  <span itemprop="reviewCount">127</span>
  <div id="rankCate"><ul>
    <li><a href="/ranking/cat1/">家電カテゴリ</a><span class="rankNum">3</span></li>
  </ul></div>
  <table>
    <tr class="p-priceTable_row">
      <td><span class="p-PTPrice_price">¥12,500</span></td>
      <td><a class="p-PTShopData_name_link">ストアB</a></td>
      <td><span class="p-PTShipping_btn">無料</span></td>
      <td><span class="p-PTStock">○ 在庫あり</span></td>
    </tr>
    <tr class="p-priceTable_row">
      <td><span class="p-PTPrice_price">¥10,000</span></td>
      <td><a class="p-PTShopData_name_link">ストアA</a></td>
      <td><span class="p-PTShipping_btn">送料550円</span></td>
      <td><span class="p-PTStock">× お取り寄せ</span></td>
    </tr>
    <tr class="p-priceTable_row">
      <td><span class="p-PTPrice_price"></span></td>
      <td><a class="p-PTShopData_name_link">壊れた行</a></td>
    </tr>
  </table>
</div>
</body></html>`

func newTestDetailExtractor() *DetailExtractor {
	images := NewImageRules([]string{"kakaku.k-img.com"}, "https://kakaku.com")
	return NewDetailExtractor(images, "https://kakaku.com", nil)
}

func TestDetailExtract(t *testing.T) {
	e := newTestDetailExtractor()

	detail, err := e.Extract(detailFixture, "K0001234567")
	require.NoError(t, err)

	assert.Equal(t, "K0001234567", detail.ID)
	assert.Equal(t, "テスト製品 X1000 プレミアムモデル", detail.Name)
	assert.Equal(t, "https://kakaku.com/item/K0001234567/", detail.ProductURL)
	assert.Equal(t, "https://img1.kakaku.k-img.com/images/productimage/l/K0001234567.jpg", detail.ImageURL)

	assert.Equal(t, 10000, detail.PriceRange.Min)
	assert.Equal(t, 25000, detail.PriceRange.Max)
	assert.Equal(t, 8, detail.PriceRange.StoreCount)
	assert.Equal(t, 10000, detail.Price)

	assert.Equal(t, "テストメーカー", detail.Maker)
	assert.Equal(t, "https://maker.example.com/x1000", detail.MakerProductURL)

	require.NotNil(t, detail.Review)
	assert.InDelta(t, 4.35, detail.Review.AverageRating, 0.001)
	assert.Equal(t, 127, detail.Review.ReviewCount)

	require.Len(t, detail.Rankings, 1)
	assert.Equal(t, "家電カテゴリ", detail.Rankings[0].CategoryName)
	assert.Equal(t, 3, detail.Rankings[0].Rank)
}

func TestDetailExtractStoresSortedByPrice(t *testing.T) {
	e := newTestDetailExtractor()

	detail, err := e.Extract(detailFixture, "K0001234567")
	require.NoError(t, err)

	// The priceless row is dropped; remaining rows sort ascending.
	require.Len(t, detail.Stores, 2)
	assert.Equal(t, "ストアA", detail.Stores[0].Name)
	assert.Equal(t, 10000, detail.Stores[0].Price)
	assert.Equal(t, 1, detail.Stores[0].Rank)
	assert.Equal(t, "ストアB", detail.Stores[1].Name)
	assert.Equal(t, 2, detail.Stores[1].Rank)

	// Cheapest store sets the headline shop.
	assert.Equal(t, "ストアA", detail.Shop)

	assert.False(t, detail.Stores[0].Shipping.IsFree)
	assert.True(t, detail.Stores[1].Shipping.IsFree)
	assert.Equal(t, 0, detail.Stores[1].Shipping.Cost)

	assert.False(t, detail.Stores[0].Stock.Available)
	assert.True(t, detail.Stores[1].Stock.Available)

	assert.Equal(t, "K0001234567_1", detail.Stores[0].ID)
	assert.Equal(t, "K0001234567_0", detail.Stores[1].ID)
}

func TestDetailExtractPartialPriceRange(t *testing.T) {
	e := newTestDetailExtractor()
	html := `<div id="productAll">
	  <h1>レンジ表記なしの製品</h1>
	  <p class="priceTxt">¥42,000</p>
	</div>`

	detail, err := e.Extract(html, "K0009999999")
	require.NoError(t, err)
	assert.Equal(t, 42000, detail.PriceRange.Min)
	assert.Equal(t, 42000, detail.PriceRange.Max, "max defaults to min")
	assert.Equal(t, 1, detail.PriceRange.StoreCount)
}

func TestDetailExtractEmptyPageFails(t *testing.T) {
	e := newTestDetailExtractor()

	_, err := e.Extract("<html><body><p>404</p></body></html>", "K0001234567")
	assert.Error(t, err)
}
