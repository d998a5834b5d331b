package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/hilthontt/tenantwire/internal/domain"
)

// Oldest records of a partition are evicted when capacity is exceeded.
type memoryAuditRepository struct {
	records  map[string][]domain.AuditRecord // partition -> records, oldest first
	capacity uint
	mu       sync.RWMutex
}

func NewMemoryAuditRepository(capacity uint) domain.AuditRepository {
	if capacity == 0 {
		capacity = 1000
	}
	return &memoryAuditRepository{
		records:  make(map[string][]domain.AuditRecord),
		capacity: capacity,
	}
}

func (r *memoryAuditRepository) Append(ctx context.Context, rec *domain.AuditRecord) error {
	if rec == nil || rec.ID == "" {
		return domain.ErrInvalidInput
	}
	if rec.PartitionKey == "" {
		return domain.ErrEmptyPartition
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	partitionRecords := append(r.records[rec.PartitionKey], *rec)

	if len(partitionRecords) > int(r.capacity) {
		excess := len(partitionRecords) - int(r.capacity)
		partitionRecords = partitionRecords[excess:]
	}

	r.records[rec.PartitionKey] = partitionRecords

	return nil
}

func (r *memoryAuditRepository) ListByPartition(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	if filter.PartitionKey == "" {
		return nil, domain.ErrEmptyPartition
	}

	r.mu.RLock()
	stored := r.records[filter.PartitionKey]
	matched := make([]domain.AuditRecord, 0, len(stored))
	for _, rec := range stored {
		if matchesFilter(rec, filter) {
			matched = append(matched, rec)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if limit := clampLimit(filter.Limit); uint64(len(matched)) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func matchesFilter(rec domain.AuditRecord, filter domain.AuditFilter) bool {
	if filter.EntityType != "" && rec.EntityType != filter.EntityType {
		return false
	}
	if filter.EntityID != "" && rec.EntityID != filter.EntityID {
		return false
	}
	if filter.ActorID != "" && rec.ActorID != filter.ActorID {
		return false
	}
	return filter.Before.Admits(rec)
}
