package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

var windowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

const redisTimeout = 2 * time.Second

// RedisLimiter counts requests per key in fixed windows shared by every replica.
type RedisLimiter struct {
	client   redis.Scripter
	limit    int
	window   time.Duration
	prefix   string
	fallback Limiter
}

// NewRedis returns a RedisLimiter. When fallback is nil a LocalLimiter with the same limit is used.
func NewRedis(client redis.Scripter, limit int, window time.Duration, fallback Limiter) *RedisLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if fallback == nil {
		fallback = NewLocal(limit, window)
	}
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "boardling:rl:", fallback: fallback}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	if l.client == nil {
		return l.fallback.Allow(ctx, key)
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	res, err := windowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) < 2 {
		if err != nil {
			log.Printf("ratelimit: redis unavailable, using local limiter: %v", err)
		}
		return l.fallback.Allow(ctx, key)
	}
	count, ttl := int(res[0]), res[1]
	if ttl < 0 {
		ttl = l.window.Milliseconds()
	}
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.limit,
		Count:     count,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   time.Now().UTC().Add(time.Duration(ttl) * time.Millisecond),
	}
}
