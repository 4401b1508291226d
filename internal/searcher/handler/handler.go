package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/tracing"
)

type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan, opts executor.Options) (*executor.SearchResult, error)
	Normalize(opts executor.Options) (executor.Options, error)
}

// Tracker receives analytics events.
type Tracker interface {
	Track(key string, event any)
}

type Handler struct {
	executor  SearchExecutor
	store     *store.Store
	cache     *cache.QueryCache
	collector Tracker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates the search API handler. queryCache, collector and m may be nil.
func New(exec SearchExecutor, st *store.Store, queryCache *cache.QueryCache, collector Tracker, m *metrics.Metrics) *Handler {
	return &Handler{
		executor:  exec,
		store:     st,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "search", middleware.GetRequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	q := r.URL.Query()
	query := q.Get("q")
	opts, err := parseOptions(q.Get("limit"), q.Get("offset"), q.Get("sort"))
	if err == nil {
		opts, err = h.executor.Normalize(opts)
	}
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	_, parseSpan := tracing.StartChildSpan(ctx, "parse")
	plan := parser.Parse(query)
	parseSpan.SetAttr("terms", len(plan.Terms))
	parseSpan.End()
	var result *executor.SearchResult
	cacheHit := false
	cacheStatus := "bypass"

	snap := h.store.Current()
	if h.cache != nil && snap != nil && !plan.Empty {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, snap.Artifact.Fingerprint(), plan, opts, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, plan, opts)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = h.executor.Execute(ctx, plan, opts)
	}
	latency := time.Since(start)
	span.SetAttr("cache", cacheStatus)

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.observe("error", cacheStatus, latency, -1)
		h.track(ctx, analytics.SearchEvent{
			Type:      analytics.EventSearchError,
			Query:     query,
			Terms:     plan.Terms,
			LatencyMs: latency.Milliseconds(),
		})
		h.writeAppError(w, err)
		return
	}

	log.Info("search completed",
		"query", query,
		"status", result.Status,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.observe(result.Status, cacheStatus, latency, result.TotalHits)
	h.track(ctx, analytics.SearchEvent{
		Type:      analytics.SearchEventType(result.Status, result.TotalHits),
		Query:     query,
		Terms:     plan.Terms,
		TotalHits: result.TotalHits,
		Returned:  len(result.Results),
		Sort:      result.Sort,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
	})
	h.writeJSON(w, http.StatusOK, result)
}

// Reload re-reads the artifact from disk. It is the only way, besides
// SIGHUP and the index.complete event, to replace the served artifact.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Reload(r.Context())
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshotStats(snap))
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Current()
	if snap == nil {
		h.writeAppError(w, apperrors.New(apperrors.ErrArtifactNotFound, http.StatusServiceUnavailable, "no index loaded"))
		return
	}
	h.writeJSON(w, http.StatusOK, snapshotStats(snap))
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	breaker := h.cache.BreakerStats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":             hits,
		"misses":           misses,
		"total":            total,
		"hit_rate":         fmt.Sprintf("%.1f%%", hitRate),
		"breaker":          breaker.State.String(),
		"breaker_failures": breaker.ConsecutiveFailures,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func snapshotStats(snap *store.Snapshot) map[string]any {
	return map[string]any{
		"generation":  snap.Generation,
		"fingerprint": snap.Artifact.Fingerprint(),
		"format":      snap.Format,
		"documents":   snap.Artifact.Len(),
		"vocabulary":  snap.Artifact.VocabularySize(),
		"built_at":    snap.Artifact.BuiltAt,
		"loaded_at":   snap.LoadedAt.UTC().Format(time.RFC3339),
	}
}

func parseOptions(limit, offset, sort string) (executor.Options, error) {
	opts := executor.Options{Sort: sort}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		opts.Limit = n
	}
	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "offset must be a non-negative integer")
		}
		opts.Offset = n
	}
	return opts, nil
}

func (h *Handler) observe(status, cacheStatus string, latency time.Duration, hits int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(status).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	if hits >= 0 {
		h.metrics.SearchResultsCount.Observe(float64(hits))
	}
}

func (h *Handler) track(ctx context.Context, event analytics.SearchEvent) {
	if h.collector == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RequestID = middleware.GetRequestID(ctx)
	h.collector.Track(string(event.Type), event)
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "search failed"
	}
	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
