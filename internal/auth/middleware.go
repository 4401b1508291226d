// Package auth guards the ingestion API with crawler API keys and per-key
// rate limits.
package auth

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/auth/ratelimit"
	apperrors "github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/logger"
)

type contextKey string

const keyContextKey contextKey = "crawler_key"

// Validator is satisfied by *apikey.Store.
type Validator interface {
	Validate(ctx context.Context, rawKey string) (*apikey.Key, error)
}

// RequireKey rejects requests without a valid key with 401 and requests
// over the key's rate limit with 429. limiter may be nil. Health endpoints
// are exempt.
func RequireKey(v Validator, limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			raw := extractKey(r)
			if raw == "" {
				apperrors.Write(w, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "missing api key"))
				return
			}

			key, err := v.Validate(r.Context(), raw)
			switch {
			case errors.Is(err, apikey.ErrInvalidKey):
				apperrors.Write(w, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "invalid api key"))
				return
			case errors.Is(err, apikey.ErrExpiredKey):
				apperrors.Write(w, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "expired api key"))
				return
			case err != nil:
				logger.FromContext(r.Context()).Error("api key validation failed", "error", err)
				apperrors.Write(w, err)
				return
			}

			if limiter != nil && !limiter.Allow(key.ID, key.RateLimit) {
				retry := int(math.Ceil(limiter.RetryAfter(key.RateLimit).Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				apperrors.Write(w, apperrors.ErrRateLimited)
				return
			}

			ctx := context.WithValue(r.Context(), keyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyFromContext returns the key RequireKey accepted, or nil.
func KeyFromContext(ctx context.Context) *apikey.Key {
	k, _ := ctx.Value(keyContextKey).(*apikey.Key)
	return k
}

// extractKey reads the key from Authorization: Bearer, then X-API-Key.
func extractKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.Header.Get("X-API-Key")
}
