// Package export serializes search results for download. CSV targets
// spreadsheet imports; JSON is the result envelope verbatim.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pricescout/kakaku-scraper/internal/models"
)

var csvHeader = []string{
	"id", "name", "price", "shop", "rating", "image_url", "product_url", "scraped_at", "source",
}

// WriteCSV renders products as UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, products []models.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range products {
		rating := ""
		if p.Rating != nil {
			rating = strconv.FormatFloat(*p.Rating, 'f', 2, 64)
		}
		record := []string{
			p.ID,
			p.Name,
			strconv.Itoa(p.Price),
			p.Shop,
			rating,
			p.ImageURL,
			p.ProductURL,
			p.ScrapedAt.Format(time.RFC3339),
			string(p.Source),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON renders the full search result, indented for direct download.
func WriteJSON(w io.Writer, result *models.SearchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
