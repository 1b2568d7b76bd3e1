package ratelimit

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-course-server/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Middleware rejects requests over the key's budget with 429.
func (l *Limiter) Middleware(key func(*http.Request) string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if l.Allow(k) {
				next(w, r)
				return
			}
			metrics.RateLimited.WithLabelValues(r.URL.Path).Inc()
			log.Warn().Str("key", k).Str("path", r.URL.Path).Msg("rate limited")

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"message": "Too many requests",
			})
		}
	}
}
