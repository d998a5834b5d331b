package changefeed

import (
	"context"
	"sync"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/persistence/db"
)

type fakeStore struct {
	mu      sync.Mutex
	records []domain.AuditRecord
	err     error
	panics  bool
}

func (s *fakeStore) Append(_ context.Context, rec *domain.AuditRecord) error {
	if s.panics {
		panic("store exploded")
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.records = append(s.records, *rec)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) ListByPartition(context.Context, domain.AuditFilter) ([]domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditRecord(nil), s.records...), nil
}

func (s *fakeStore) all() []domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditRecord(nil), s.records...)
}

type fakeLookup struct {
	mu      sync.Mutex
	tenants map[string]string
	err     error
	calls   int
}

func (l *fakeLookup) Lookup(_ context.Context, actorID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return "", l.err
	}
	tenant, ok := l.tenants[actorID]
	if !ok {
		return "", domain.ErrTenantNotFound
	}
	return tenant, nil
}

func (l *fakeLookup) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type emitted struct {
	partition string
	evt       domain.ChangeEvent
}

type fakeConn struct {
	mu     sync.Mutex
	events []emitted
	err    error
	block  chan struct{}
}

func (c *fakeConn) Emit(_ context.Context, partition string, evt domain.ChangeEvent) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, emitted{partition: partition, evt: evt})
	return c.err
}

func (c *fakeConn) all() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.events...)
}

// fakeBackend records the executor each call was bound to.
type fakeBackend struct {
	store  domain.AuditRepository
	lookup domain.TenantLookup

	mu    sync.Mutex
	execs []db.QueryExecutor
}

func (b *fakeBackend) AuditStore(exec db.QueryExecutor) domain.AuditRepository {
	b.mu.Lock()
	b.execs = append(b.execs, exec)
	b.mu.Unlock()
	return b.store
}

func (b *fakeBackend) TenantLookup(db.QueryExecutor) domain.TenantLookup {
	return b.lookup
}

func (b *fakeBackend) boundExecs() []db.QueryExecutor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]db.QueryExecutor(nil), b.execs...)
}
