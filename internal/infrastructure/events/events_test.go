package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/infrastructure/contracts"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"github.com/hilthontt/tenantwire/internal/infrastructure/messaging"
	"github.com/hilthontt/tenantwire/internal/infrastructure/ws"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroker delivers published messages synchronously to every consumer.
type fakeBroker struct {
	mu             sync.Mutex
	handlers       []messaging.MessageHandler
	dones          []chan error
	published      []contracts.AmqpMessage
	routingKeys    []string
	nacked         int
	publishErr     error
	reconnects     int
	failReconnects int
}

func (b *fakeBroker) PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error {
	if b.publishErr != nil {
		return b.publishErr
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.published = append(b.published, message)
	b.routingKeys = append(b.routingKeys, routingKey)
	handlers := append([]messaging.MessageHandler(nil), b.handlers...)
	b.mu.Unlock()

	for _, h := range handlers {
		b.deliver(ctx, h, amqp.Delivery{RoutingKey: routingKey, Body: body})
	}
	return nil
}

func (b *fakeBroker) deliver(ctx context.Context, h messaging.MessageHandler, d amqp.Delivery) {
	if err := h(ctx, d); err != nil {
		b.mu.Lock()
		b.nacked++
		b.mu.Unlock()
	}
}

func (b *fakeBroker) DeclareInstanceQueue([]string) (string, error) {
	return "amq.gen-test", nil
}

func (b *fakeBroker) ConsumeMessages(_ context.Context, _ string, handler messaging.MessageHandler) (<-chan error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	done := make(chan error, 1)
	b.handlers = append(b.handlers, handler)
	b.dones = append(b.dones, done)
	return done, nil
}

func (b *fakeBroker) Reconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reconnects++
	if b.failReconnects > 0 {
		b.failReconnects--
		return errors.New("dial tcp: connection refused")
	}
	return nil
}

// closeChannel ends every subscription the way a closed AMQP channel does.
func (b *fakeBroker) closeChannel(reason error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, done := range b.dones {
		if reason != nil {
			done <- reason
		}
		close(done)
	}
	b.dones = nil
	b.handlers = nil
}

func (b *fakeBroker) counts() (subscriptions, reconnects int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers), b.reconnects
}

type recordingLayer struct {
	mu     sync.Mutex
	events map[string][]domain.ChangeEvent
	err    error
}

func (l *recordingLayer) Emit(_ context.Context, partition string, evt domain.ChangeEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.events == nil {
		l.events = make(map[string][]domain.ChangeEvent)
	}
	l.events[partition] = append(l.events[partition], evt)
	return l.err
}

func TestChangePublisher_Emit(t *testing.T) {
	broker := &fakeBroker{}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	evt := domain.ChangeEvent{Action: domain.ActionUpdate, EntityType: "order", EntityID: "o42", ActorID: "u1", Timestamp: ts}

	require.NoError(t, NewChangePublisher(broker).Emit(context.Background(), "t1", evt))

	require.Len(t, broker.published, 1)
	assert.Equal(t, contracts.EventDataChanged, broker.routingKeys[0])
	assert.Equal(t, "t1", broker.published[0].Partition)

	var decoded domain.ChangeEvent
	require.NoError(t, json.Unmarshal(broker.published[0].Data, &decoded))
	assert.Equal(t, evt, decoded)
}

func TestChangePublisher_PropagatesBrokerError(t *testing.T) {
	broker := &fakeBroker{publishErr: errors.New("channel/connection is not open")}

	err := NewChangePublisher(broker).Emit(context.Background(), "t1", domain.ChangeEvent{})
	assert.ErrorContains(t, err, "not open")
}

func TestChangeConsumer_FansOutToEveryInstance(t *testing.T) {
	broker := &fakeBroker{}
	ctx := context.Background()

	instanceA, instanceB := &recordingLayer{}, &recordingLayer{}
	require.NoError(t, NewChangeConsumer(broker, instanceA, logging.NewNop()).Listen(ctx))
	require.NoError(t, NewChangeConsumer(broker, instanceB, logging.NewNop()).Listen(ctx))

	evt := domain.ChangeEvent{Action: domain.ActionDelete, EntityType: "member", EntityID: "m1", ActorID: "u1"}
	require.NoError(t, NewChangePublisher(broker).Emit(ctx, "t1", evt))

	for _, layer := range []*recordingLayer{instanceA, instanceB} {
		require.Len(t, layer.events["t1"], 1)
		assert.Equal(t, "member", layer.events["t1"][0].EntityType)
	}
	assert.Zero(t, broker.nacked)
}

func TestChangeConsumer_DeliversToLocalRegistry(t *testing.T) {
	broker := &fakeBroker{}
	ctx := context.Background()

	registry := ws.NewRegistry(logging.NewNop())
	require.NoError(t, NewChangeConsumer(broker, ws.NewChangeEmitter(registry), logging.NewNop()).Listen(ctx))

	require.NoError(t, NewChangePublisher(broker).Emit(ctx, "t1", domain.ChangeEvent{EntityType: "order"}))
	assert.Equal(t, ws.Stats{}, registry.Stats())
	assert.Zero(t, broker.nacked)
}

func TestChangeConsumer_RejectsMalformedMessages(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "not json", body: []byte("{oops")},
		{name: "missing partition", body: mustJSON(t, contracts.AmqpMessage{Data: []byte(`{}`)})},
		{name: "bad event payload", body: mustJSON(t, contracts.AmqpMessage{Partition: "t1", Data: []byte(`"x"`)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logging.NewMemoryLogger()
			layer := &recordingLayer{}
			consumer := NewChangeConsumer(&fakeBroker{}, layer, logger)

			err := consumer.handle(context.Background(), amqp.Delivery{Body: tt.body})
			assert.Error(t, err)
			assert.Empty(t, layer.events)
			assert.Len(t, logger.Find(logging.LevelWarn, logging.Broadcast), 1)
		})
	}
}

func TestChangeConsumer_LocalEmitFailureIsAcked(t *testing.T) {
	logger := logging.NewMemoryLogger()
	layer := &recordingLayer{err: errors.New("registry closed")}
	consumer := NewChangeConsumer(&fakeBroker{}, layer, logger)

	body := mustJSON(t, contracts.AmqpMessage{Partition: "t1", Data: mustJSON(t, domain.ChangeEvent{EntityType: "order"})})

	assert.NoError(t, consumer.handle(context.Background(), amqp.Delivery{Body: body}))
	assert.Len(t, logger.Find(logging.LevelError, logging.Broadcast), 1)
}

func TestChangeConsumer_ResubscribesAfterChannelClose(t *testing.T) {
	broker := &fakeBroker{failReconnects: 1}
	logger := logging.NewMemoryLogger()
	layer := &recordingLayer{}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	consumer := NewChangeConsumer(broker, layer, logger)
	consumer.minDelay = time.Millisecond
	consumer.maxDelay = 5 * time.Millisecond
	require.NoError(t, consumer.Listen(ctx))

	broker.closeChannel(&amqp.Error{Code: amqp.ConnectionForced, Reason: "broker restart"})

	require.Eventually(t, func() bool {
		subscriptions, reconnects := broker.counts()
		return subscriptions == 1 && reconnects == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, NewChangePublisher(broker).Emit(ctx, "t1", domain.ChangeEvent{EntityType: "order"}))
	assert.Len(t, layer.events["t1"], 1)

	warnings := logger.Find(logging.LevelWarn, logging.Connection)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0].Extra[logging.ErrorMessage], "broker restart")
}

func TestChangeConsumer_StopsWithContext(t *testing.T) {
	broker := &fakeBroker{}
	logger := logging.NewMemoryLogger()

	ctx, cancel := context.WithCancel(context.Background())
	consumer := NewChangeConsumer(broker, &recordingLayer{}, logger)
	consumer.minDelay = time.Millisecond
	require.NoError(t, consumer.Listen(ctx))

	cancel()
	broker.closeChannel(nil)

	assert.Never(t, func() bool {
		_, reconnects := broker.counts()
		return reconnects > 0
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.Empty(t, logger.Find(logging.LevelWarn, logging.Connection))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
