package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/redis/go-redis/v9"
)

const tenantKeyPrefix = "tenantwire:tenant:"

// TenantCache stores actor -> tenant resolutions. Implementations never fail
// a lookup: a broken cache behaves like a miss.
type TenantCache interface {
	Get(ctx context.Context, actorID string) (string, bool)
	Set(ctx context.Context, actorID, tenantID string)
	Invalidate(ctx context.Context, actorID string) error
}

type cachedTenantLookup struct {
	cache TenantCache
	next  domain.TenantLookup
}

// NewCachedTenantLookup reads through cache before asking next. Failed
// lookups are not cached.
func NewCachedTenantLookup(cache TenantCache, next domain.TenantLookup) domain.TenantLookup {
	return &cachedTenantLookup{cache: cache, next: next}
}

func (l *cachedTenantLookup) Lookup(ctx context.Context, actorID string) (string, error) {
	if tenantID, ok := l.cache.Get(ctx, actorID); ok {
		return tenantID, nil
	}

	tenantID, err := l.next.Lookup(ctx, actorID)
	if err != nil {
		return "", err
	}
	if tenantID != "" {
		l.cache.Set(ctx, actorID, tenantID)
	}

	return tenantID, nil
}

type redisTenantCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTenantCache(client *redis.Client, ttl time.Duration) TenantCache {
	return &redisTenantCache{client: client, ttl: ttl}
}

func (c *redisTenantCache) Get(ctx context.Context, actorID string) (string, bool) {
	tenantID, err := c.client.Get(ctx, tenantKeyPrefix+actorID).Result()
	if err != nil || tenantID == "" {
		return "", false
	}
	return tenantID, true
}

func (c *redisTenantCache) Set(ctx context.Context, actorID, tenantID string) {
	_ = c.client.Set(ctx, tenantKeyPrefix+actorID, tenantID, c.ttl).Err()
}

func (c *redisTenantCache) Invalidate(ctx context.Context, actorID string) error {
	err := c.client.Del(ctx, tenantKeyPrefix+actorID).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
