package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register mounts every endpoint on the router. Middleware and CORS stay
// with the caller so tests can mount bare routes.
func (h *Handlers) Register(r chi.Router, metrics http.Handler) {
	r.Get("/health", h.Health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", h.Search)
		r.Get("/search/export", h.ExportSearch)
		r.Get("/products/{productID}", h.GetProduct)
		r.Get("/keywords/popular", h.PopularKeywords)
		r.Get("/stats", h.Stats)
	})
}
