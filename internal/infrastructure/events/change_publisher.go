package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/infrastructure/contracts"
)

type Publisher interface {
	PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error
}

// ChangePublisher is the connection layer of a multi-instance deployment:
// every instance receives the change and emits it to its own connections.
type ChangePublisher struct {
	publisher Publisher
}

func NewChangePublisher(publisher Publisher) *ChangePublisher {
	return &ChangePublisher{publisher: publisher}
}

func (p *ChangePublisher) Emit(ctx context.Context, partition string, evt domain.ChangeEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	return p.publisher.PublishMessage(ctx, contracts.EventDataChanged, contracts.AmqpMessage{
		Partition: partition,
		Data:      data,
	})
}
