package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChangeEventOmitsDetailAndPreviousState(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &AuditRecord{
		ID:            "a1",
		ActorID:       "u1",
		Action:        ActionUpdate,
		EntityType:    "order",
		EntityID:      "o42",
		Details:       "approved by manager",
		PreviousState: map[string]any{"status": "PENDING"},
		Changes:       map[string]any{"status": "APPROVED"},
		PartitionKey:  "t1",
		Timestamp:     ts,
	}

	evt := NewChangeEvent(rec)

	raw, err := json.Marshal(evt)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))

	assert.Equal(t, "UPDATE", payload["action"])
	assert.Equal(t, "order", payload["entityType"])
	assert.Equal(t, "o42", payload["entityId"])
	assert.Equal(t, "u1", payload["actorId"])
	assert.Equal(t, map[string]any{"status": "APPROVED"}, payload["changes"])
	assert.NotContains(t, payload, "details")
	assert.NotContains(t, payload, "previousState")
	assert.NotContains(t, payload, "partitionKey")
}

func TestAuditErrorKinds(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("wrapped: %w", NewAuditError(PersistenceFailure, "t1", cause))

	assert.True(t, IsKind(err, PersistenceFailure))
	assert.False(t, IsKind(err, BroadcastFailure))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "partition t1")

	joined := errors.Join(NewAuditError(LookupFailure, "u1", ErrTenantNotFound), NewAuditError(BroadcastFailure, "u1", cause))
	assert.True(t, IsKind(joined, LookupFailure))
	assert.True(t, IsKind(joined, BroadcastFailure))
	assert.ErrorIs(t, joined, ErrTenantNotFound)
}

func TestAuditErrorsFlattensJoinedErrors(t *testing.T) {
	err := errors.Join(
		NewAuditError(PersistenceFailure, "t1", errors.New("insert failed")),
		fmt.Errorf("emit: %w", NewAuditError(BroadcastFailure, "t1", errors.New("closed"))),
	)

	found := AuditErrors(err)
	require.Len(t, found, 2)
	assert.Equal(t, PersistenceFailure, found[0].Kind)
	assert.Equal(t, BroadcastFailure, found[1].Kind)
	assert.Nil(t, AuditErrors(nil))
}

func TestActionValid(t *testing.T) {
	for _, a := range []Action{ActionCreate, ActionUpdate, ActionDelete, ActionStatusChange} {
		assert.True(t, a.Valid(), a)
	}
	assert.False(t, Action("update").Valid())
	assert.False(t, Action("").Valid())
}
