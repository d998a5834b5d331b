package ratelimiter

import (
	"sync"
	"time"
)

type FixedWindowRateLimiter struct {
	counts      sync.Map // string -> *window
	limit       int
	size        time.Duration
	now         func() time.Time
	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type window struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

func NewFixedWindowRateLimiter(limit int, size time.Duration) *FixedWindowRateLimiter {
	if size <= 0 {
		size = time.Second
	}
	rl := &FixedWindowRateLimiter{
		limit:       limit,
		size:        size,
		now:         time.Now,
		cleanupTick: time.NewTicker(size),
		done:        make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// Allow counts one event for key. When the window is exhausted it returns
// false and the time left until the window resets.
func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.now()
	w := rl.window(key)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = now.Truncate(rl.size).Add(rl.size)
	}

	if w.count >= rl.limit {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

func (rl *FixedWindowRateLimiter) Remaining(key string) int {
	val, ok := rl.counts.Load(key)
	if !ok {
		return rl.limit
	}
	w := val.(*window)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !rl.now().Before(w.resetAt) {
		return rl.limit
	}
	return max(rl.limit-w.count, 0)
}

func (rl *FixedWindowRateLimiter) Limit() int {
	return rl.limit
}

func (rl *FixedWindowRateLimiter) window(key string) *window {
	val, _ := rl.counts.LoadOrStore(key, &window{})
	return val.(*window)
}

func (rl *FixedWindowRateLimiter) startCleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) cleanup() {
	now := rl.now()
	rl.counts.Range(func(key, value any) bool {
		w := value.(*window)
		w.mu.Lock()
		expired := !now.Before(w.resetAt)
		w.mu.Unlock()
		if expired {
			rl.counts.Delete(key)
		}
		return true
	})
}

func (rl *FixedWindowRateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
