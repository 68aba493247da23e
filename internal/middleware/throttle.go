package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// ThrottleConfig holds in-process throttle settings for unauthenticated
// endpoints. This is a per-instance backstop in front of the shared
// cache-backed limiter, so brute-force traffic is cut before it touches
// the store.
type ThrottleConfig struct {
	RequestsPerMinute int
}

// DefaultAuthThrottle returns the default throttle for auth endpoints
// (5 requests per minute per IP)
func DefaultAuthThrottle() ThrottleConfig {
	return ThrottleConfig{
		RequestsPerMinute: 5,
	}
}

// ThrottleByIP creates a middleware that throttles requests by client IP
func ThrottleByIP(config ThrottleConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limit_exceeded","message":"Rate limit exceeded"}`))
		}),
	)
}
