package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/backend-storefront/internal/common"
)

// KeyFunc derives the rate limit bucket key from a request.
type KeyFunc func(r *http.Request) string

// IPKey buckets requests by the caller's IP address.
func IPKey(prefix string) KeyFunc {
	return func(r *http.Request) string {
		return fmt.Sprintf("%s:%s", prefix, common.ClientIP(r))
	}
}

// Middleware rejects requests over the limit with a 429 and standard headers.
func Middleware(l Limiter, key KeyFunc, window time.Duration, max int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Client == nil || max <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			allowed, remaining, reset, err := l.Allow(r.Context(), key(r), window, max)
			if err != nil {
				// fail open: a degraded Redis must not take checkout down
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !allowed {
				retryAfter := time.Until(reset).Seconds()
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter)))
				common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
