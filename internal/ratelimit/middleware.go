package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// KeyFunc derives the throttling key of a request. An empty key means the request is not throttled.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests over the limit with 429 and sets X-RateLimit-* headers on every response.
func Middleware(l Limiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" || l == nil {
				next.ServeHTTP(w, r)
				return
			}
			d := l.Allow(r.Context(), k)
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if !d.Allowed {
				retry := int(time.Until(d.ResetAt).Seconds() + 0.999)
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
