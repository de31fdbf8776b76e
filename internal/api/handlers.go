// Package api exposes the scraping pipeline over HTTP. Responses use a
// uniform envelope; degraded results ship with HTTP 200 because fallback
// data is a successful answer from the caller's point of view.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pricescout/kakaku-scraper/internal/export"
	"github.com/pricescout/kakaku-scraper/internal/models"
	"github.com/pricescout/kakaku-scraper/internal/popularity"
	"github.com/pricescout/kakaku-scraper/internal/ratelimit"
	"github.com/pricescout/kakaku-scraper/internal/scraper"
)

// Searcher is the pipeline surface the handlers need.
type Searcher interface {
	Search(ctx context.Context, filters models.SearchFilters) (*models.SearchResult, error)
	ProductDetail(ctx context.Context, productID string) (*models.ProductDetail, []string, error)
	LimiterStats() map[string]ratelimit.Stats
	Stats() scraper.Snapshot
}

type Handlers struct {
	scraper   Searcher
	keywords  popularity.Tracker
	logger    *slog.Logger
	startedAt time.Time
}

func NewHandlers(svc Searcher, keywords popularity.Tracker, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		scraper:   svc,
		keywords:  keywords,
		logger:    logger.With("component", "api"),
		startedAt: time.Now(),
	}
}

// envelope is the uniform response shape for every JSON endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// detailResponse wraps a product detail with the pipeline's warnings.
type detailResponse struct {
	Product  *models.ProductDetail `json:"product"`
	Warnings []string              `json:"warnings,omitempty"`
}

// Search handles GET /api/v1/search.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFromQuery(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	searchID := uuid.NewString()
	result, err := h.scraper.Search(r.Context(), filters)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Info("search served",
		"searchId", searchID,
		"keyword", filters.Keyword,
		"products", len(result.Products),
		"source", result.SearchInfo.Source,
	)

	w.Header().Set("X-Search-Id", searchID)
	w.Header().Set("X-Search-Time-Ms", strconv.FormatInt(result.SearchInfo.SearchTimeMs, 10))
	w.Header().Set("X-Image-Success-Rate", strconv.FormatFloat(result.SearchInfo.ImageSuccessRate, 'f', 2, 64))
	h.respondJSON(w, http.StatusOK, envelope{Success: true, Data: result})
}

// GetProduct handles GET /api/v1/products/{productID}.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	detail, warnings, err := h.scraper.ProductDetail(r.Context(), productID)
	if err != nil {
		if errors.Is(err, scraper.ErrInvalidProductID) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("product detail failed", "productId", productID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "product lookup failed")
		return
	}

	h.respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    detailResponse{Product: detail, Warnings: warnings},
	})
}

// ExportSearch handles GET /api/v1/search/export. The format parameter
// selects csv (default) or json.
func (h *Handlers) ExportSearch(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFromQuery(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	result, err := h.scraper.Search(r.Context(), filters)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename := fmt.Sprintf("pricescout_%s_%s.%s",
		filters.Keyword, time.Now().Format("20060102_150405"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = export.WriteCSV(w, result.Products)
	case "json":
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		err = export.WriteJSON(w, result)
	}
	if err != nil {
		h.logger.Error("export write failed", "format", format, "error", err)
	}
}

// PopularKeywords handles GET /api/v1/keywords/popular.
func (h *Handlers) PopularKeywords(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			h.respondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	var keywords []popularity.KeywordCount
	if h.keywords != nil {
		keywords = h.keywords.Top(r.Context(), limit)
	}
	if keywords == nil {
		keywords = []popularity.KeywordCount{}
	}
	h.respondJSON(w, http.StatusOK, envelope{Success: true, Data: keywords})
}

// Stats handles GET /api/v1/stats.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
		"scraper":       h.scraper.Stats(),
		"rateLimiter":   h.scraper.LimiterStats(),
	}
	h.respondJSON(w, http.StatusOK, envelope{Success: true, Data: stats})
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func filtersFromQuery(r *http.Request) (models.SearchFilters, error) {
	q := r.URL.Query()
	filters := models.SearchFilters{
		Keyword: q.Get("keyword"),
		SortBy:  models.SortBy(q.Get("sortBy")),
	}

	for name, target := range map[string]*int{
		"maxResults": &filters.MaxResults,
		"minPrice":   &filters.MinPrice,
		"maxPrice":   &filters.MaxPrice,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return filters, fmt.Errorf("%s must be an integer", name)
		}
		*target = parsed
	}
	return filters, nil
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, envelope{Success: false, Error: message})
}
