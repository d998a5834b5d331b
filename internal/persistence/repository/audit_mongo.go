package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoAuditRepository struct {
	db *mongo.Database
}

func NewMongoAuditRepository(database *mongo.Database) *MongoAuditRepository {
	return &MongoAuditRepository{db: database}
}

func (r *MongoAuditRepository) collection() *mongo.Collection {
	return r.db.Collection(db.AuditLogsCollection)
}

func (r *MongoAuditRepository) Append(ctx context.Context, rec *domain.AuditRecord) error {
	if rec == nil || rec.ID == "" {
		return domain.ErrInvalidInput
	}
	if rec.PartitionKey == "" {
		return domain.ErrEmptyPartition
	}

	if _, err := r.collection().InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("audit record %s: %w", rec.ID, err)
	}
	return nil
}

func (r *MongoAuditRepository) ListByPartition(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	if filter.PartitionKey == "" {
		return nil, domain.ErrEmptyPartition
	}

	query := bson.M{"partition_key": filter.PartitionKey}
	if filter.EntityType != "" {
		query["entity_type"] = filter.EntityType
	}
	if filter.EntityID != "" {
		query["entity_id"] = filter.EntityID
	}
	if filter.ActorID != "" {
		query["actor_id"] = filter.ActorID
	}
	switch cursor := filter.Before; {
	case cursor.IsZero():
	case cursor.ID == "":
		query["timestamp"] = bson.M{"$lt": cursor.Timestamp}
	default:
		query["$or"] = bson.A{
			bson.M{"timestamp": bson.M{"$lt": cursor.Timestamp}},
			bson.M{"timestamp": cursor.Timestamp, "_id": bson.M{"$lt": cursor.ID}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(clampLimit(filter.Limit)))

	cursor, err := r.collection().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("audit records %s: %w", filter.PartitionKey, err)
	}
	defer cursor.Close(ctx)

	records := make([]domain.AuditRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode audit records %s: %w", filter.PartitionKey, err)
	}

	return records, nil
}

// EnsureIndexes creates the partition listing index and a TTL index that
// expires records after retention.
func (r *MongoAuditRepository) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "partition_key", Value: 1},
				{Key: "timestamp", Value: -1},
				{Key: "_id", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "partition_key", Value: 1},
				{Key: "entity_type", Value: 1},
				{Key: "entity_id", Value: 1},
			},
		},
	}

	if retention > 0 {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
		})
	}

	_, err := r.collection().Indexes().CreateMany(ctx, indexes)
	return err
}
