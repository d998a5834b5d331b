package changefeed

import (
	"context"
	"fmt"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
)

// ConnectionLayer delivers a change to the live connections of a partition.
// Delivery is at-most-once and never acknowledged.
type ConnectionLayer interface {
	Emit(ctx context.Context, partition string, evt domain.ChangeEvent) error
}

type Broadcaster struct {
	logger logging.Logger
}

func NewBroadcaster(logger logging.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// Broadcast is a no-op when conn is nil.
func (b *Broadcaster) Broadcast(ctx context.Context, conn ConnectionLayer, partition string, evt domain.ChangeEvent) (err error) {
	extra := map[logging.ExtraKey]any{
		logging.PartitionKey: partition,
		logging.EntityType:   evt.EntityType,
		logging.ActorID:      evt.ActorID,
	}

	if conn == nil {
		b.logger.Debug(logging.Audit, logging.Broadcast, "no connection layer, broadcast skipped", extra)
		return nil
	}

	b.logger.Info(logging.Audit, logging.Broadcast, "emitting data-changed", extra)

	defer func() {
		if p := recover(); p != nil {
			err = domain.NewAuditError(domain.BroadcastFailure, partition, fmt.Errorf("connection layer panic: %v", p))
		}
	}()

	if err := conn.Emit(ctx, partition, evt); err != nil {
		return domain.NewAuditError(domain.BroadcastFailure, partition, err)
	}

	return nil
}
