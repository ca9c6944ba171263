// Package ratelimit throttles API callers per requester. The shared limiter counts fixed windows in
// Redis; a process-local token bucket takes over when Redis is not configured or unreachable.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or rejects one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// LocalLimiter is a per-key token bucket allowing limit requests per window with a burst of limit.
type LocalLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	every   rate.Limit
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLocal returns a LocalLimiter. A non-positive limit is treated as 1 and a non-positive window as one minute.
func NewLocal(limit int, window time.Duration) *LocalLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LocalLimiter{
		limit:   limit,
		window:  window,
		every:   rate.Limit(float64(limit) / window.Seconds()),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) Decision {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.lim.AllowN(now, 1)

	remaining := int(b.lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	reset := now
	if missing := float64(l.limit) - b.lim.TokensAt(now); missing > 0 {
		reset = now.Add(time.Duration(missing / float64(l.every) * float64(time.Second)))
	}
	return Decision{
		Allowed:   allowed,
		Count:     l.limit - remaining,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   reset.UTC(),
	}
}

// evict drops buckets idle for longer than a full window; such buckets have refilled completely.
func (l *LocalLimiter) evict(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.window {
			delete(l.buckets, k)
		}
	}
}

// Len reports the number of tracked keys.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
