package middleware

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/amekkawi/arq-console/internal/ratelimit"
	"github.com/go-chi/chi/v5"
)

// RateLimit returns middleware that rate-limits requests per key. The key is
// the route's clientId parameter when present, otherwise the remote IP. When
// the rate limit is exceeded, it responds with a 429 Too Many Requests status
// and a JSON error body.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(limitKey(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func limitKey(r *http.Request) string {
	if clientID := chi.URLParam(r, "clientId"); clientID != "" {
		return "client:" + clientID
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If RemoteAddr has no port, use it as-is.
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}
