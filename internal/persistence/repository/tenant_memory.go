package repository

import (
	"context"
	"sync"
	"time"
)

type tenantCacheEntry struct {
	tenantID   string
	expiresAt  time.Time
	lastAccess time.Time
}

type memoryTenantCache struct {
	entries  map[string]*tenantCacheEntry // actorID -> entry
	capacity uint
	ttl      time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewMemoryTenantCache is the in-process TenantCache used when redis is not
// configured. The least recently used entry is evicted at capacity.
func NewMemoryTenantCache(ttl time.Duration, capacity uint) TenantCache {
	if capacity == 0 {
		capacity = 10000
	}
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	return &memoryTenantCache{
		entries:  make(map[string]*tenantCacheEntry),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *memoryTenantCache) Get(_ context.Context, actorID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[actorID]
	if !ok {
		return "", false
	}

	now := c.now()
	if !now.Before(entry.expiresAt) {
		delete(c.entries, actorID)
		return "", false
	}

	entry.lastAccess = now
	return entry.tenantID, true
}

func (c *memoryTenantCache) Set(_ context.Context, actorID, tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[actorID]; !exists {
		c.evictExpired(now)
		c.enforceCapacity()
	}

	c.entries[actorID] = &tenantCacheEntry{
		tenantID:   tenantID,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
	}
}

func (c *memoryTenantCache) Invalidate(_ context.Context, actorID string) error {
	c.mu.Lock()
	delete(c.entries, actorID)
	c.mu.Unlock()
	return nil
}

func (c *memoryTenantCache) evictExpired(now time.Time) {
	for id, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
}

// enforceCapacity makes room for one more entry.
func (c *memoryTenantCache) enforceCapacity() {
	for uint(len(c.entries)) >= c.capacity {
		var (
			oldestID   string
			oldestTime time.Time
		)
		for id, entry := range c.entries {
			if oldestID == "" || entry.lastAccess.Before(oldestTime) {
				oldestID, oldestTime = id, entry.lastAccess
			}
		}
		delete(c.entries, oldestID)
	}
}
