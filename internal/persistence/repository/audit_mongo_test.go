package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoAuditRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("append", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := NewMongoAuditRepository(mt.DB).Append(context.Background(), newMemoryRecord("a1", "t1", ts))
		assert.NoError(mt, err)
	})

	mt.Run("append duplicate id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := NewMongoAuditRepository(mt.DB).Append(context.Background(), newMemoryRecord("a1", "t1", ts))
		assert.ErrorContains(mt, err, "duplicate key")
	})

	mt.Run("append without partition", func(mt *mtest.T) {
		err := NewMongoAuditRepository(mt.DB).Append(context.Background(), newMemoryRecord("a1", "", ts))
		assert.ErrorIs(mt, err, domain.ErrEmptyPartition)
	})

	mt.Run("list by partition", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".audit_logs"
		first := mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "a2"},
				{Key: "actor_id", Value: "u1"},
				{Key: "action", Value: "UPDATE"},
				{Key: "entity_type", Value: "order"},
				{Key: "entity_id", Value: "o42"},
				{Key: "partition_key", Value: "t1"},
				{Key: "timestamp", Value: primitive.NewDateTimeFromTime(ts)},
			},
			bson.D{
				{Key: "_id", Value: "a1"},
				{Key: "actor_id", Value: "u2"},
				{Key: "action", Value: "CREATE"},
				{Key: "entity_type", Value: "order"},
				{Key: "entity_id", Value: "o42"},
				{Key: "partition_key", Value: "t1"},
				{Key: "timestamp", Value: primitive.NewDateTimeFromTime(ts.Add(-time.Hour))},
			},
		)
		mt.AddMockResponses(first)

		records, err := NewMongoAuditRepository(mt.DB).ListByPartition(context.Background(), domain.AuditFilter{
			PartitionKey: "t1",
			EntityType:   "order",
		})
		require.NoError(mt, err)
		require.Len(mt, records, 2)
		assert.Equal(mt, "a2", records[0].ID)
		assert.Equal(mt, domain.ActionUpdate, records[0].Action)
		assert.True(mt, ts.Equal(records[0].Timestamp))
		assert.Equal(mt, "u2", records[1].ActorID)
	})

	mt.Run("list after cursor", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".audit_logs", mtest.FirstBatch))

		records, err := NewMongoAuditRepository(mt.DB).ListByPartition(context.Background(), domain.AuditFilter{
			PartitionKey: "t1",
			Before:       domain.AuditCursor{Timestamp: ts, ID: "a2"},
		})
		require.NoError(mt, err)
		assert.Empty(mt, records)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		branches, ok := started.Command.Lookup("filter", "$or").ArrayOK()
		require.True(mt, ok)
		values, err := branches.Values()
		require.NoError(mt, err)
		assert.Len(mt, values, 2)
		assert.Equal(mt, "a2", values[1].Document().Lookup("_id", "$lt").StringValue())
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := NewMongoAuditRepository(mt.DB).EnsureIndexes(context.Background(), 30*24*time.Hour)
		assert.NoError(mt, err)
	})
}
