// Package metrics defines the Prometheus collectors shared by the
// scholar-search services. Every metric is prefixed with "scholar_".
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scholar"

// Metrics holds the collectors. Each service registers the full set and
// only moves the ones it owns; the rest stay at zero.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount prometheus.Histogram

	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec

	ArtifactReloadsTotal *prometheus.CounterVec
	ArtifactDocuments    prometheus.Gauge
	ArtifactVocabulary   prometheus.Gauge

	IndexBuildsTotal   *prometheus.CounterVec
	IndexBuildDuration prometheus.Histogram

	PublicationsIngested *prometheus.CounterVec
}

// New registers the collectors with reg, or with the default registerer
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	counter := func(subsystem, name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help})
	}
	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help})
	}

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: gauge("http", "requests_in_flight", "HTTP requests being served."),

		SearchQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Search requests by outcome (ok, no_results, awaiting_input, error).",
		}, []string{"result_type"}),
		SearchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "latency_seconds",
			Help:      "Search latency split by cache hit or miss.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"cache_status"}),
		SearchResultsCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "matching_publications",
			Help:      "Publications matching a query before pagination.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		}),

		CacheHitsTotal:   counter("cache", "hits_total", "Search responses served from Redis."),
		CacheMissesTotal: counter("cache", "misses_total", "Search requests that had to be ranked."),
		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "breaker_state",
			Help:      "Cache circuit breaker state (0=closed, 1=open, 2=half-open).",
		}, []string{"name"}),

		ArtifactReloadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "artifact",
			Name:      "loads_total",
			Help:      "Index artifact loads by format or error.",
		}, []string{"status"}),
		ArtifactDocuments:  gauge("artifact", "documents", "Publications in the served index."),
		ArtifactVocabulary: gauge("artifact", "vocabulary_terms", "Distinct terms in the served index."),

		IndexBuildsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "builds_total",
			Help:      "Index rebuilds by status.",
		}, []string{"status"}),
		IndexBuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "build_duration_seconds",
			Help:      "Rebuild wall time including the artifact write.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),

		PublicationsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "publications_total",
			Help:      "Crawled publications by outcome (accepted, duplicate).",
		}, []string{"outcome"}),
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
