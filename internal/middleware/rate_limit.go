package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jacobwhite/taskdeck/internal/auth"
	"github.com/jacobwhite/taskdeck/internal/cache"
	pkghttp "github.com/jacobwhite/taskdeck/pkg/http"
)

// RateLimitPolicy configures a fixed-window quota for a route group.
// KeyFunc and Bypass are optional per-route overrides.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration

	// KeyFunc overrides identity derivation for this policy.
	KeyFunc func(r *http.Request) string
	// Bypass skips rate limiting for matching requests.
	Bypass func(r *http.Request) bool
}

// RateLimiter enforces fixed-window quotas using the cache's atomic
// increment. The limiter's correctness rests entirely on that increment
// being atomic under concurrent callers.
type RateLimiter struct {
	cache  *cache.Cache
	logger *slog.Logger

	// now is swapped in tests to control window boundaries.
	now func() time.Time
}

func NewRateLimiter(c *cache.Cache, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		cache:  c,
		logger: logger,
		now:    time.Now,
	}
}

// Limit returns a middleware enforcing the policy. Infrastructure errors
// from the cache fail open: a broken cache must not block legitimate
// traffic. Logical rejections (quota exhausted) still fail closed.
func (rl *RateLimiter) Limit(policy RateLimitPolicy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if policy.Bypass != nil && policy.Bypass(r) {
				next.ServeHTTP(w, r)
				return
			}

			identity := rl.identityFor(r, policy)
			now := rl.now()
			windowStart := now.Truncate(policy.Window)
			key := fmt.Sprintf("%s:%d", identity, windowStart.UnixMilli())
			reset := windowStart.Add(policy.Window)

			var count int64
			if err := rl.cache.Get(r.Context(), cache.NamespaceRateLimit, key, &count); err != nil {
				count = 0 // miss and infrastructure errors both read as zero
			}

			if count >= int64(policy.Limit) {
				retryAfter := time.Duration(0)
				if d := reset.Sub(now); d > 0 {
					retryAfter = d
				}
				writeRateLimitHeaders(w, policy, 0, reset)
				w.Header().Set("Retry-After", strconv.Itoa(int(ceilSeconds(retryAfter))))
				pkghttp.WriteRateLimited(w, policy.Limit, policy.Window, retryAfter)
				return
			}

			n, err := rl.cache.Increment(r.Context(), cache.NamespaceRateLimit, key, 1)
			if err != nil {
				rl.logger.Error("rate limit increment failed, allowing request",
					slog.String("identity", identity),
					slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			// First increment in this window bounds the key's lifetime.
			if n == 1 {
				ttl := time.Duration(ceilSeconds(policy.Window)) * time.Second
				if _, err := rl.cache.Expire(r.Context(), cache.NamespaceRateLimit, key, ttl); err != nil {
					rl.logger.Warn("failed to set rate limit window TTL", slog.Any("error", err))
				}
			}

			remaining := int64(policy.Limit) - n
			if remaining < 0 {
				remaining = 0
			}
			writeRateLimitHeaders(w, policy, remaining, reset)

			next.ServeHTTP(w, r)
		})
	}
}

// identityFor prefers the authenticated identity over the network one.
func (rl *RateLimiter) identityFor(r *http.Request, policy RateLimitPolicy) string {
	if policy.KeyFunc != nil {
		return policy.KeyFunc(r)
	}
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		return "user:" + claims.UserID
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr upstream of us.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeRateLimitHeaders(w http.ResponseWriter, policy RateLimitPolicy, remaining int64, reset time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}

func ceilSeconds(d time.Duration) int64 {
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	return int64(secs)
}
