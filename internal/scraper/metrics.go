package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's instrumentation on a dedicated registry so
// tests can construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	searchesTotal    *prometheus.CounterVec
	searchDuration   prometheus.Histogram
	productsTotal    prometheus.Counter
	fallbacksTotal   *prometheus.CounterVec
	detailsTotal     *prometheus.CounterVec
	imageSuccessRate prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricescout_searches_total",
			Help: "Search requests by outcome.",
		}, []string{"result"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricescout_search_duration_seconds",
			Help:    "Wall-clock duration of search requests.",
			Buckets: []float64{0.5, 1, 2, 4, 6, 10, 20, 30},
		}),
		productsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricescout_products_extracted_total",
			Help: "Products returned to callers, live and fallback.",
		}),
		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricescout_fallbacks_total",
			Help: "Fallback activations by cause.",
		}, []string{"cause"}),
		detailsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricescout_detail_requests_total",
			Help: "Product detail requests by outcome.",
		}, []string{"result"}),
		imageSuccessRate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricescout_image_success_rate",
			Help:    "Fraction of returned products carrying a usable image URL.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}

	m.registry.MustRegister(
		m.searchesTotal,
		m.searchDuration,
		m.productsTotal,
		m.fallbacksTotal,
		m.detailsTotal,
		m.imageSuccessRate,
	)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveSearch(result string, seconds float64, products int, imageRate float64) {
	m.searchesTotal.WithLabelValues(result).Inc()
	m.searchDuration.Observe(seconds)
	m.productsTotal.Add(float64(products))
	m.imageSuccessRate.Observe(imageRate)
}

func (m *Metrics) ObserveFallback(cause string) {
	m.fallbacksTotal.WithLabelValues(cause).Inc()
}

func (m *Metrics) ObserveDetail(result string) {
	m.detailsTotal.WithLabelValues(result).Inc()
}
