// Package metrics defines the Prometheus metric collectors used by the
// recommendation service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for RecommendationsTotal.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	RecommendationsTotal   *prometheus.CounterVec
	RecommendationLatency  prometheus.Histogram
	RecommendationsCount   prometheus.Histogram
	CatalogTitles          prometheus.Gauge
	DatasetLoadDuration    prometheus.Gauge
	AnalyticsEventsDropped prometheus.Counter
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RecommendationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recommendations_total",
				Help: "Total recommendation queries by outcome (found, not_found, error).",
			},
			[]string{"outcome"},
		),
		RecommendationLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recommendation_latency_seconds",
				Help:    "Time spent ranking a single recommendation query.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
			},
		),
		RecommendationsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recommendation_results_count",
				Help:    "Number of titles returned per recommendation query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CatalogTitles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_titles",
				Help: "Number of titles in the loaded catalog.",
			},
		),
		DatasetLoadDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dataset_load_duration_seconds",
				Help: "Time taken to load the catalog and similarity matrix at startup.",
			},
		),
		AnalyticsEventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Analytics events dropped because the collector buffer was full.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RecommendationsTotal,
		m.RecommendationLatency,
		m.RecommendationsCount,
		m.CatalogTitles,
		m.DatasetLoadDuration,
		m.AnalyticsEventsDropped,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
