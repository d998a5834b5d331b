package ws

import (
	"context"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
)

// ChangeEmitter delivers change events to the connections of this instance.
type ChangeEmitter struct {
	registry *Registry
}

func NewChangeEmitter(registry *Registry) *ChangeEmitter {
	return &ChangeEmitter{registry: registry}
}

func (e *ChangeEmitter) Emit(_ context.Context, partition string, evt domain.ChangeEvent) error {
	delivered := e.registry.Emit(partition, NewDataChanged(partition, evt))

	e.registry.logger.Debug(logging.WebSocket, logging.Partition, "data-changed emitted", map[logging.ExtraKey]any{
		logging.PartitionKey: partition,
		logging.EntityType:   evt.EntityType,
		logging.Delivered:    delivered,
	})
	return nil
}
