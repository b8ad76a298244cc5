// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	BuildsTotal          *prometheus.CounterVec
	BuildDuration        prometheus.Histogram
	BuildsInFlight       prometheus.Gauge
	FetchPagesTotal      *prometheus.CounterVec
	ArticlesFetched      prometheus.Gauge
	ArticlesQualified    prometheus.Gauge
	CacheEntries         prometheus.Gauge
	CacheReadsTotal      *prometheus.CounterVec
	RebuildsRejected     prometheus.Counter
}

// New creates all collectors and registers them with reg.
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 30, 120},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_builds_total",
				Help: "Analysis builds by outcome (built, fresh, kept_stale, failed).",
			},
			[]string{"outcome"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "analysis_build_duration_seconds",
				Help:    "Wall time of analysis builds that reached the fetch stage.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		BuildsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analysis_builds_in_flight",
				Help: "Number of analysis builds currently running (0 or 1).",
			},
		),
		FetchPagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiita_fetch_pages_total",
				Help: "Content platform page requests by status (ok, short, error).",
			},
			[]string{"status"},
		),
		ArticlesFetched: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analysis_articles_fetched",
				Help: "Articles fetched by the most recent build.",
			},
		),
		ArticlesQualified: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analysis_articles_qualified",
				Help: "Articles passing the likes and stocks filters in the most recent build.",
			},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analysis_cache_entries",
				Help: "Number of word entries in the most recently written artifact.",
			},
		),
		CacheReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_cache_reads_total",
				Help: "Artifact reads by result (hit, not_ready, error).",
			},
			[]string{"result"},
		),
		RebuildsRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analysis_rebuilds_rate_limited_total",
				Help: "Forced rebuild requests rejected by the rate limiter.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.BuildsTotal,
		m.BuildDuration,
		m.BuildsInFlight,
		m.FetchPagesTotal,
		m.ArticlesFetched,
		m.ArticlesQualified,
		m.CacheEntries,
		m.CacheReadsTotal,
		m.RebuildsRejected,
	)

	return m
}

// NewUnregistered returns collectors attached to a private registry. Used by
// tests and one-shot commands that never expose a scrape endpoint.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the Prometheus scrape HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
