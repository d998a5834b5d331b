package domain

import (
	"context"
	"time"
)

type Action string

const (
	ActionCreate       Action = "CREATE"
	ActionUpdate       Action = "UPDATE"
	ActionDelete       Action = "DELETE"
	ActionStatusChange Action = "STATUS_CHANGE"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionStatusChange:
		return true
	}
	return false
}

// AuditRecord is immutable once written.
type AuditRecord struct {
	ID            string    `bson:"_id" json:"id"`
	ActorID       string    `bson:"actor_id" json:"actorId"`
	Action        Action    `bson:"action" json:"action"`
	EntityType    string    `bson:"entity_type" json:"entityType"`
	EntityID      string    `bson:"entity_id" json:"entityId"`
	Details       string    `bson:"details,omitempty" json:"details,omitempty"`
	PreviousState any       `bson:"previous_state,omitempty" json:"previousState,omitempty"`
	Changes       any       `bson:"changes,omitempty" json:"changes,omitempty"`
	PartitionKey  string    `bson:"partition_key" json:"partitionKey"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
}

// ChangeEvent is the live payload sent to a partition. Full detail stays in
// the AuditRecord.
type ChangeEvent struct {
	Action     Action    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	ActorID    string    `json:"actorId"`
	Timestamp  time.Time `json:"timestamp"`
	Changes    any       `json:"changes,omitempty"`
}

func NewChangeEvent(rec *AuditRecord) ChangeEvent {
	return ChangeEvent{
		Action:     rec.Action,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		ActorID:    rec.ActorID,
		Timestamp:  rec.Timestamp,
		Changes:    rec.Changes,
	}
}

// AuditCursor is a position in the (timestamp DESC, id DESC) listing order.
// A cursor without an ID only bounds the timestamp.
type AuditCursor struct {
	Timestamp time.Time
	ID        string
}

func (c AuditCursor) IsZero() bool {
	return c.Timestamp.IsZero()
}

// Admits reports whether rec lies strictly past c in listing order.
func (c AuditCursor) Admits(rec AuditRecord) bool {
	if c.IsZero() {
		return true
	}
	if rec.Timestamp.Equal(c.Timestamp) {
		return c.ID != "" && rec.ID < c.ID
	}
	return rec.Timestamp.Before(c.Timestamp)
}

type AuditFilter struct {
	PartitionKey string
	EntityType   string
	EntityID     string
	ActorID      string
	Before       AuditCursor
	Limit        uint64
}

type AuditRepository interface {
	Append(ctx context.Context, rec *AuditRecord) error
	ListByPartition(ctx context.Context, filter AuditFilter) ([]AuditRecord, error)
}
