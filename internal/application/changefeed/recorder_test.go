package changefeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(now time.Time) *Recorder {
	r := NewRecorder()
	r.now = func() time.Time { return now }
	r.newID = func() string { return "a1" }
	return r
}

func TestRecorder_Record(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.FixedZone("CET", 3600))

	t.Run("stamps id and utc timestamp", func(t *testing.T) {
		store := &fakeStore{}
		rec := &domain.AuditRecord{ActorID: "u1", PartitionKey: "t1", Timestamp: time.Unix(0, 0)}

		require.NoError(t, newTestRecorder(now).Record(context.Background(), store, rec))

		records := store.all()
		require.Len(t, records, 1)
		assert.Equal(t, "a1", records[0].ID)
		assert.Equal(t, now.UTC(), records[0].Timestamp)
		assert.Equal(t, time.UTC, records[0].Timestamp.Location())
	})

	t.Run("default id is a uuid", func(t *testing.T) {
		store := &fakeStore{}
		rec := &domain.AuditRecord{ActorID: "u1", PartitionKey: "t1"}

		require.NoError(t, NewRecorder().Record(context.Background(), store, rec))
		assert.Len(t, rec.ID, 36)
	})

	failures := []struct {
		name  string
		store domain.AuditRepository
		rec   *domain.AuditRecord
		cause error
	}{
		{name: "nil record", store: &fakeStore{}, rec: nil, cause: domain.ErrInvalidInput},
		{name: "empty partition", store: &fakeStore{}, rec: &domain.AuditRecord{ActorID: "u1"}, cause: domain.ErrEmptyPartition},
		{name: "no store", store: nil, rec: &domain.AuditRecord{ActorID: "u1", PartitionKey: "t1"}, cause: domain.ErrNoStore},
		{name: "store error", store: &fakeStore{err: errors.New("disk full")}, rec: &domain.AuditRecord{ActorID: "u1", PartitionKey: "t1"}},
		{name: "store panic", store: &fakeStore{panics: true}, rec: &domain.AuditRecord{ActorID: "u1", PartitionKey: "t1"}},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			assert.NotPanics(t, func() {
				err = newTestRecorder(now).Record(context.Background(), tt.store, tt.rec)
			})

			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.PersistenceFailure))
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}
