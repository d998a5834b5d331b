package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/tenantwire/internal/application/changefeed"
	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/infrastructure/contracts"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"github.com/hilthontt/tenantwire/internal/infrastructure/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
)

var errMissingPartition = errors.New("change message without partition")

const (
	minResubscribeDelay = time.Second
	maxResubscribeDelay = 30 * time.Second
)

type Consumer interface {
	DeclareInstanceQueue(messageTypes []string) (string, error)
	ConsumeMessages(ctx context.Context, queueName string, handler messaging.MessageHandler) (<-chan error, error)
	Reconnect() error
}

// ChangeConsumer feeds changes published by any instance into the local
// connection layer.
type ChangeConsumer struct {
	consumer Consumer
	local    changefeed.ConnectionLayer
	logger   logging.Logger
	minDelay time.Duration
	maxDelay time.Duration
}

func NewChangeConsumer(consumer Consumer, local changefeed.ConnectionLayer, logger logging.Logger) *ChangeConsumer {
	return &ChangeConsumer{
		consumer: consumer,
		local:    local,
		logger:   logger,
		minDelay: minResubscribeDelay,
		maxDelay: maxResubscribeDelay,
	}
}

// Listen subscribes this instance to the change feed and keeps it subscribed
// until ctx is done. Only the first subscription failure is returned.
func (c *ChangeConsumer) Listen(ctx context.Context) error {
	done, err := c.subscribe(ctx)
	if err != nil {
		return err
	}

	go c.supervise(ctx, done)
	return nil
}

func (c *ChangeConsumer) subscribe(ctx context.Context) (<-chan error, error) {
	queue, err := c.consumer.DeclareInstanceQueue([]string{contracts.EventDataChanged})
	if err != nil {
		return nil, err
	}

	done, err := c.consumer.ConsumeMessages(ctx, queue, c.handle)
	if err != nil {
		return nil, err
	}

	c.logger.Info(logging.RabbitMQ, logging.Startup, "listening for changes", map[logging.ExtraKey]any{
		"queue": queue,
	})
	return done, nil
}

func (c *ChangeConsumer) supervise(ctx context.Context, done <-chan error) {
	for {
		var reason error
		select {
		case <-ctx.Done():
			return
		case reason = <-done:
		}
		if ctx.Err() != nil {
			return
		}

		extra := map[logging.ExtraKey]any{}
		if reason != nil {
			extra[logging.ErrorMessage] = reason.Error()
		}
		c.logger.Warn(logging.RabbitMQ, logging.Connection, "change feed subscription lost, resubscribing", extra)

		next, ok := c.resubscribe(ctx)
		if !ok {
			return
		}
		done = next
	}
}

// resubscribe retries with exponential backoff until it succeeds or ctx is done.
func (c *ChangeConsumer) resubscribe(ctx context.Context) (<-chan error, bool) {
	delay := c.minDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(delay):
		}

		err := c.consumer.Reconnect()
		var done <-chan error
		if err == nil {
			done, err = c.subscribe(ctx)
		}
		if err == nil {
			return done, true
		}

		c.logger.Warn(logging.RabbitMQ, logging.Connection, "resubscribe failed", map[logging.ExtraKey]any{
			"attempt":            attempt,
			logging.ErrorMessage: err.Error(),
		})
		delay = min(delay*2, c.maxDelay)
	}
}

func (c *ChangeConsumer) handle(ctx context.Context, msg amqp.Delivery) error {
	var message contracts.AmqpMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		c.reject(msg, err)
		return fmt.Errorf("unmarshal amqp message: %w", err)
	}
	if message.Partition == "" {
		c.reject(msg, errMissingPartition)
		return errMissingPartition
	}

	var evt domain.ChangeEvent
	if err := json.Unmarshal(message.Data, &evt); err != nil {
		c.reject(msg, err)
		return fmt.Errorf("unmarshal change event: %w", err)
	}

	// Local delivery failures are logged, not dead-lettered.
	if err := c.local.Emit(ctx, message.Partition, evt); err != nil {
		c.logger.Error(logging.RabbitMQ, logging.Broadcast, "local emit failed", map[logging.ExtraKey]any{
			logging.PartitionKey: message.Partition,
			logging.ErrorMessage: err.Error(),
		})
	}

	return nil
}

func (c *ChangeConsumer) reject(msg amqp.Delivery, err error) {
	c.logger.Warn(logging.RabbitMQ, logging.Broadcast, "malformed change message", map[logging.ExtraKey]any{
		logging.ErrorMessage: err.Error(),
		"routingKey":         msg.RoutingKey,
	})
}
