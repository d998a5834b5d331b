package ratelimiter

import (
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisWindowRateLimiter_WindowKey(t *testing.T) {
	rl := NewRedisWindowRateLimiter(nil, 5, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	key, resetAt := rl.windowKey("c1", now)

	assert.Equal(t, "tenantwire:ratelimit:c1:"+itoa(now.UnixNano()/int64(time.Minute)), key)
	assert.True(t, resetAt.Equal(time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)))

	sameWindow, _ := rl.windowKey("c1", now.Add(29*time.Second))
	nextWindow, _ := rl.windowKey("c1", now.Add(30*time.Second))
	assert.Equal(t, key, sameWindow)
	assert.NotEqual(t, key, nextWindow)
}

func TestRedisWindowRateLimiter_FallsBackWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	rl := NewRedisWindowRateLimiter(client, 2, time.Minute)
	defer rl.Close()

	allow, _ := rl.Allow("c1")
	assert.True(t, allow)
	allow, _ = rl.Allow("c1")
	assert.True(t, allow)
	allow, retryAfter := rl.Allow("c1")
	assert.False(t, allow)
	assert.Positive(t, retryAfter)

	assert.Equal(t, 0, rl.Remaining("c1"))
	assert.Equal(t, 2, rl.Limit())
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
