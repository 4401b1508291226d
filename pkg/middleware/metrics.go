// Package middleware provides the HTTP middleware shared by the services:
// request IDs, Prometheus metrics, CORS and request timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/metrics"
)

// routes are the paths served by the searcher, ingestion and analytics
// services. Anything else is reported as "other" so scanners hitting random
// URLs cannot grow the label set.
var routes = map[string]struct{}{
	"/api/v1/search":           {},
	"/api/v1/index/reload":     {},
	"/api/v1/index/stats":      {},
	"/api/v1/cache/stats":      {},
	"/api/v1/cache/invalidate": {},
	"/api/v1/publications":     {},
	"/api/v1/analytics":        {},
	"/health/live":             {},
	"/health/ready":            {},
}

// Metrics records request count and latency per method, route and status,
// plus the in-flight gauge.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routeLabel(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }

func routeLabel(path string) string {
	path = strings.TrimSuffix(path, "/")
	if _, ok := routes[path]; ok {
		return path
	}
	return "other"
}
