package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "tenantwire:ratelimit"

// RedisWindowRateLimiter shares fixed windows between instances through
// redis counters. While redis is unreachable it answers from a local
// window so a cache outage does not take the API down.
type RedisWindowRateLimiter struct {
	client   *redis.Client
	limit    int
	size     time.Duration
	timeout  time.Duration
	now      func() time.Time
	fallback *FixedWindowRateLimiter
}

func NewRedisWindowRateLimiter(client *redis.Client, limit int, size time.Duration) *RedisWindowRateLimiter {
	if size <= 0 {
		size = time.Second
	}
	return &RedisWindowRateLimiter{
		client:   client,
		limit:    limit,
		size:     size,
		timeout:  250 * time.Millisecond,
		now:      time.Now,
		fallback: NewFixedWindowRateLimiter(limit, size),
	}
}

func (rl *RedisWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.now()
	windowKey, resetAt := rl.windowKey(key, now)

	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, rl.size*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return rl.fallback.Allow(key)
	}

	if incr.Val() > int64(rl.limit) {
		return false, resetAt.Sub(now)
	}
	return true, 0
}

func (rl *RedisWindowRateLimiter) Remaining(key string) int {
	windowKey, _ := rl.windowKey(key, rl.now())

	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	count, err := rl.client.Get(ctx, windowKey).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return rl.limit
	case err != nil:
		return rl.fallback.Remaining(key)
	}
	return max(rl.limit-count, 0)
}

func (rl *RedisWindowRateLimiter) Limit() int {
	return rl.limit
}

func (rl *RedisWindowRateLimiter) Close() {
	rl.fallback.Close()
}

func (rl *RedisWindowRateLimiter) windowKey(key string, now time.Time) (string, time.Time) {
	n := now.UnixNano() / int64(rl.size)
	resetAt := time.Unix(0, (n+1)*int64(rl.size))
	return fmt.Sprintf("%s:%s:%d", redisPrefix, key, n), resetAt
}
