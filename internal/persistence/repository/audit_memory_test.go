package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryRecord(id, partition string, ts time.Time) *domain.AuditRecord {
	return &domain.AuditRecord{
		ID:           id,
		ActorID:      "u1",
		Action:       domain.ActionUpdate,
		EntityType:   "order",
		EntityID:     "o" + id,
		PartitionKey: partition,
		Timestamp:    ts,
	}
}

func TestMemoryAuditRepository_ListsNewestFirstPerPartition(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuditRepository(10)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, newMemoryRecord("1", "t1", base)))
	require.NoError(t, repo.Append(ctx, newMemoryRecord("2", "t2", base.Add(time.Minute))))
	require.NoError(t, repo.Append(ctx, newMemoryRecord("3", "t1", base.Add(2*time.Minute))))

	records, err := repo.ListByPartition(ctx, domain.AuditFilter{PartitionKey: "t1"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "3", records[0].ID)
	assert.Equal(t, "1", records[1].ID)

	for _, rec := range records {
		assert.Equal(t, "t1", rec.PartitionKey)
	}
}

func TestMemoryAuditRepository_EvictsOldestAtCapacity(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuditRepository(3)
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(ctx, newMemoryRecord(fmt.Sprint(i), "t1", base.Add(time.Duration(i)*time.Second))))
	}

	records, err := repo.ListByPartition(ctx, domain.AuditFilter{PartitionKey: "t1"})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "4", records[0].ID)
	assert.Equal(t, "2", records[2].ID)
}

func TestMemoryAuditRepository_Filters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuditRepository(0)
	base := time.Now().UTC()

	first := newMemoryRecord("1", "t1", base)
	second := newMemoryRecord("2", "t1", base.Add(time.Second))
	second.ActorID = "u2"
	second.EntityType = "member"

	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))

	tests := []struct {
		name   string
		filter domain.AuditFilter
		want   []string
	}{
		{name: "entity type", filter: domain.AuditFilter{PartitionKey: "t1", EntityType: "member"}, want: []string{"2"}},
		{name: "entity id", filter: domain.AuditFilter{PartitionKey: "t1", EntityID: "o1"}, want: []string{"1"}},
		{name: "actor", filter: domain.AuditFilter{PartitionKey: "t1", ActorID: "u1"}, want: []string{"1"}},
		{name: "before timestamp", filter: domain.AuditFilter{PartitionKey: "t1", Before: domain.AuditCursor{Timestamp: base.Add(time.Second)}}, want: []string{"1"}},
		{name: "before cursor", filter: domain.AuditFilter{PartitionKey: "t1", Before: domain.AuditCursor{Timestamp: base.Add(time.Second), ID: "2"}}, want: []string{"1"}},
		{name: "limit", filter: domain.AuditFilter{PartitionKey: "t1", Limit: 1}, want: []string{"2"}},
		{name: "unknown partition", filter: domain.AuditFilter{PartitionKey: "t9"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := repo.ListByPartition(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(records))
			for _, rec := range records {
				ids = append(ids, rec.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMemoryAuditRepository_RejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuditRepository(1)

	assert.ErrorIs(t, repo.Append(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, repo.Append(ctx, &domain.AuditRecord{ID: "1"}), domain.ErrEmptyPartition)

	_, err := repo.ListByPartition(ctx, domain.AuditFilter{})
	assert.ErrorIs(t, err, domain.ErrEmptyPartition)
}

func TestMemoryAuditRepository_PagesThroughTiedTimestamps(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuditRepository(0)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "c", "b", "d"} {
		require.NoError(t, repo.Append(ctx, newMemoryRecord(id, "t1", ts)))
	}
	require.NoError(t, repo.Append(ctx, newMemoryRecord("z", "t1", ts.Add(-time.Second))))

	var (
		seen   []string
		cursor domain.AuditCursor
	)
	for {
		page, err := repo.ListByPartition(ctx, domain.AuditFilter{PartitionKey: "t1", Before: cursor, Limit: 2})
		require.NoError(t, err)
		for _, rec := range page {
			seen = append(seen, rec.ID)
		}
		if len(page) < 2 {
			break
		}
		last := page[len(page)-1]
		cursor = domain.AuditCursor{Timestamp: last.Timestamp, ID: last.ID}
	}

	assert.Equal(t, []string{"d", "c", "b", "a", "z"}, seen)
}
