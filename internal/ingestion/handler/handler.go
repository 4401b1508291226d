package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/logger"
)

// maxBodyBytes bounds a request of MaxDocuments publications with
// full-size abstracts.
const maxBodyBytes = 64 << 20

// Ingester stores validated publications.
type Ingester interface {
	Ingest(ctx context.Context, docs []index.Document) (*ingestion.IngestResponse, error)
}

type Handler struct {
	ingester Ingester
	logger   *slog.Logger
}

func New(ing Ingester) *Handler {
	return &Handler{
		ingester: ing,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/publications", h.Ingest)
}

// Ingest accepts one publication or an array of them. It answers 201 when
// at least one was stored and 409 when every publication was a duplicate.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apperrors.Write(w, apperrors.ErrPayloadTooLarge)
			return
		}
		apperrors.Write(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid JSON body"))
		return
	}
	if err := validator.ValidateDocuments(req.Documents); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		apperrors.Write(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, err.Error()))
		return
	}

	resp, err := h.ingester.Ingest(ctx, req.Documents)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"error", err,
			"documents", len(req.Documents),
			"status_code", statusCode,
		)
		apperrors.Write(w, err)
		return
	}
	log.Info("publications ingested",
		"accepted", resp.Accepted,
		"duplicates", resp.Duplicates,
	)
	if resp.Accepted == 0 {
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":      apperrors.ErrPublicationExists.Error(),
			"accepted":   resp.Accepted,
			"duplicates": resp.Duplicates,
			"total":      resp.Total,
		})
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
