package middleware

import (
	"context"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/logger"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

// RequestID reuses an incoming X-Request-Id or mints a UUID, stores it on the
// request context for logger.FromContext, and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		ctx := logger.WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the ID assigned by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	return logger.RequestID(ctx)
}
