package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/persistence/db"
)

const (
	auditLogsTable = "audit_logs"

	defaultListLimit uint64 = 50
	maxListLimit     uint64 = 500
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var auditColumns = []string{
	"id::text", "actor_id", "action", "entity_type", "entity_id",
	"details", "previous_state", "changes", "partition_key", "created_at",
}

// AuditRepository writes to audit_logs through whatever executor it was
// bound to, so the insert can join a caller's transaction.
type AuditRepository struct {
	exec db.QueryExecutor
}

func NewAuditRepository(exec db.QueryExecutor) *AuditRepository {
	return &AuditRepository{exec: exec}
}

func (r *AuditRepository) Append(ctx context.Context, rec *domain.AuditRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("audit record: %w", domain.ErrInvalidInput)
	}
	if rec.PartitionKey == "" {
		return fmt.Errorf("audit record %s: %w", rec.ID, domain.ErrEmptyPartition)
	}

	previous, err := marshalJSON(rec.PreviousState)
	if err != nil {
		return fmt.Errorf("audit record %s marshal previous state: %w", rec.ID, err)
	}
	changes, err := marshalJSON(rec.Changes)
	if err != nil {
		return fmt.Errorf("audit record %s marshal changes: %w", rec.ID, err)
	}

	query, args, err := psql.Insert(auditLogsTable).
		Columns("id", "actor_id", "action", "entity_type", "entity_id",
			"details", "previous_state", "changes", "partition_key", "created_at").
		Values(rec.ID, rec.ActorID, string(rec.Action), rec.EntityType, rec.EntityID,
			rec.Details, previous, changes, rec.PartitionKey, rec.Timestamp).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := r.exec.Exec(ctx, query, args...); err != nil {
		return mapError(err, "audit_record", rec.ID, nil)
	}

	return nil
}

func (r *AuditRepository) ListByPartition(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	if filter.PartitionKey == "" {
		return nil, domain.ErrEmptyPartition
	}

	q := psql.Select(auditColumns...).
		From(auditLogsTable).
		Where(sq.Eq{"partition_key": filter.PartitionKey})

	if filter.EntityType != "" {
		q = q.Where(sq.Eq{"entity_type": filter.EntityType})
	}
	if filter.EntityID != "" {
		q = q.Where(sq.Eq{"entity_id": filter.EntityID})
	}
	if filter.ActorID != "" {
		q = q.Where(sq.Eq{"actor_id": filter.ActorID})
	}
	switch cursor := filter.Before; {
	case cursor.IsZero():
	case cursor.ID == "":
		q = q.Where(sq.Lt{"created_at": cursor.Timestamp})
	default:
		q = q.Where(sq.Expr("(created_at, id) < (?, ?::uuid)", cursor.Timestamp, cursor.ID))
	}

	query, args, err := q.OrderBy("created_at DESC", "id DESC").
		Limit(clampLimit(filter.Limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit select: %w", err)
	}

	rows, err := r.exec.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "audit_records", filter.PartitionKey, nil)
	}
	defer rows.Close()

	records := make([]domain.AuditRecord, 0)
	for rows.Next() {
		var (
			rec      domain.AuditRecord
			action   string
			previous []byte
			changes  []byte
			created  time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.ActorID, &action, &rec.EntityType, &rec.EntityID,
			&rec.Details, &previous, &changes, &rec.PartitionKey, &created); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}

		rec.Action = domain.Action(action)
		rec.Timestamp = created.UTC()
		if rec.PreviousState, err = unmarshalJSON(previous); err != nil {
			return nil, fmt.Errorf("audit record %s previous state: %w", rec.ID, err)
		}
		if rec.Changes, err = unmarshalJSON(changes); err != nil {
			return nil, fmt.Errorf("audit record %s changes: %w", rec.ID, err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "audit_records", filter.PartitionKey, nil)
	}

	return records, nil
}

func clampLimit(limit uint64) uint64 {
	switch {
	case limit == 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

func unmarshalJSON(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
