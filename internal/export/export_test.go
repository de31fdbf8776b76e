package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/kakaku-scraper/internal/models"
)

func sampleProducts() []models.Product {
	rating := 4.5
	return []models.Product{
		{
			ID:         "K0001234567",
			Name:       "テスト製品, カンマ入り",
			Price:      128000,
			Shop:       "価格.com (パナソニック)",
			Rating:     &rating,
			ImageURL:   "https://img1.kakaku.k-img.com/images/productimage/l/K0001234567.jpg",
			ProductURL: "https://kakaku.com/item/K0001234567/",
			ScrapedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Source:     models.SourceKakaku,
		},
		{
			ID:         "scrape_1717243200000_0",
			Name:       "評価なし製品",
			Price:      9800,
			Shop:       "価格.com",
			ProductURL: "https://kakaku.com/search_results/test/",
			ScrapedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Source:     models.SourceFallback,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleProducts()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"id", "name", "price", "shop", "rating", "image_url", "product_url", "scraped_at", "source",
	}, records[0])

	assert.Equal(t, "K0001234567", records[1][0])
	assert.Equal(t, "テスト製品, カンマ入り", records[1][1], "commas survive quoting")
	assert.Equal(t, "128000", records[1][2])
	assert.Equal(t, "4.50", records[1][4])
	assert.Equal(t, "2025-06-01T12:00:00Z", records[1][7])
	assert.Equal(t, "kakaku", records[1][8])

	assert.Equal(t, "", records[2][4], "missing rating renders empty")
	assert.Equal(t, "fallback", records[2][8])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1, "header only")
}

func TestWriteJSON(t *testing.T) {
	result := &models.SearchResult{
		Products: sampleProducts(),
		SearchInfo: models.SearchInfo{
			Keyword:    "テスト",
			TotalFound: 2,
			Source:     models.SourceKakaku,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, result))

	var decoded models.SearchResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Products, 2)
	assert.Equal(t, "テスト", decoded.SearchInfo.Keyword)
	assert.Contains(t, buf.String(), "https://kakaku.com/item/K0001234567/", "URLs are not HTML-escaped")
}
