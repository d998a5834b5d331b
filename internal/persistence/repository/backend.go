package repository

import (
	"context"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/persistence/db"
)

const (
	SinkPostgres = "postgres"
	SinkMongo    = "mongo"
	SinkMemory   = "memory"
)

// Backend hands out audit stores and tenant lookups bound to the executor of
// the current call. Mongo and memory sinks ignore the executor.
type Backend struct {
	sink          string
	mongoAudit    domain.AuditRepository
	memoryAudit   domain.AuditRepository
	tenantCache   TenantCache
	staticTenants map[string]string
}

type BackendOption func(*Backend)

func WithMongoAudit(repo domain.AuditRepository) BackendOption {
	return func(b *Backend) { b.mongoAudit = repo }
}

func WithMemoryAudit(repo domain.AuditRepository) BackendOption {
	return func(b *Backend) { b.memoryAudit = repo }
}

func WithTenantCache(cache TenantCache) BackendOption {
	return func(b *Backend) { b.tenantCache = cache }
}

// WithStaticTenants answers lookups from a fixed map when no executor is
// available.
func WithStaticTenants(tenants map[string]string) BackendOption {
	return func(b *Backend) { b.staticTenants = tenants }
}

func NewBackend(sink string, opts ...BackendOption) *Backend {
	b := &Backend{sink: sink}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) AuditStore(exec db.QueryExecutor) domain.AuditRepository {
	switch b.sink {
	case SinkMongo:
		return b.mongoAudit
	case SinkMemory:
		return b.memoryAudit
	}

	if exec == nil {
		return nil
	}
	return NewAuditRepository(exec)
}

func (b *Backend) TenantLookup(exec db.QueryExecutor) domain.TenantLookup {
	var lookup domain.TenantLookup
	switch {
	case exec != nil:
		lookup = NewTenantDirectory(exec)
	case b.staticTenants != nil:
		lookup = staticTenantLookup(b.staticTenants)
	default:
		return nil
	}

	if b.tenantCache != nil {
		return NewCachedTenantLookup(b.tenantCache, lookup)
	}
	return lookup
}

func (b *Backend) InvalidateTenant(ctx context.Context, actorID string) error {
	if b.tenantCache == nil {
		return nil
	}
	return b.tenantCache.Invalidate(ctx, actorID)
}

func staticTenantLookup(tenants map[string]string) domain.TenantLookupFunc {
	return func(_ context.Context, actorID string) (string, error) {
		tenantID, ok := tenants[actorID]
		if !ok {
			return "", domain.ErrTenantNotFound
		}
		return tenantID, nil
	}
}
