package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const maxTop = 10

// Handler serves the aggregated search analytics.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
}

// Stats returns the current AggregatedStats. The optional top parameter
// (1 to maxTop) shortens the top and zero-result query lists.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := maxTop
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTop {
			h.write(w, http.StatusBadRequest, map[string]string{"error": "top must be an integer between 1 and 10"})
			return
		}
		top = n
	}
	stats := h.aggregator.Stats()
	stats.TopQueries = truncate(stats.TopQueries, top)
	stats.ZeroResultQueries = truncate(stats.ZeroResultQueries, top)
	w.Header().Set("Cache-Control", "no-store")
	h.write(w, http.StatusOK, stats)
}

func truncate(counts []QueryCount, n int) []QueryCount {
	if len(counts) > n {
		return counts[:n]
	}
	return counts
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
