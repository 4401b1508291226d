package middleware

import (
	"net/http"
	"slices"
	"strings"
)

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	corsHeaders = strings.Join([]string{"Content-Type", "Authorization", "X-API-Key", RequestIDHeader}, ", ")
)

// CORS lets browsers on the listed origins call the API. "*" allows any
// origin. Preflight requests from allowed origins are answered with 204.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := slices.Contains(origins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !(allowAll || slices.Contains(origins, origin)) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
