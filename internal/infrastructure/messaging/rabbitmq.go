package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hilthontt/tenantwire/internal/infrastructure/contracts"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

const (
	ChangeFeedExchange = "changefeed"
	DeadLetterExchange = "dlx"
	DeadLetterQueue    = "dead_letter_queue"
)

type MessageHandler func(ctx context.Context, msg amqp.Delivery) error

type RabbitMQ struct {
	uri      string
	conn     *amqp.Connection
	Channel  *amqp.Channel
	exchange string
	mu       sync.RWMutex
}

func NewRabbitMQ(uri, exchange string) (*RabbitMQ, error) {
	if exchange == "" {
		exchange = ChangeFeedExchange
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	rmq := &RabbitMQ{
		uri:      uri,
		conn:     conn,
		Channel:  ch,
		exchange: exchange,
	}

	if err := rmq.setupExchanges(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

func (r *RabbitMQ) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}

// Reconnect opens a fresh channel, redialing first when the connection is
// gone, and declares the exchanges again.
func (r *RabbitMQ) Reconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		conn, err := amqp.Dial(r.uri)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		r.conn = conn
	}
	if r.Channel != nil && !r.Channel.IsClosed() {
		_ = r.Channel.Close()
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}
	r.Channel = ch

	return r.setupExchanges()
}

func (r *RabbitMQ) channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Channel
}

func (r *RabbitMQ) setupExchanges() error {
	if err := r.Channel.ExchangeDeclare(
		DeadLetterExchange, // name
		"fanout",           // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", DeadLetterExchange, err)
	}

	q, err := r.Channel.QueueDeclare(DeadLetterQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", DeadLetterQueue, err)
	}
	if err := r.Channel.QueueBind(q.Name, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", DeadLetterQueue, err)
	}

	// Every instance must see every change, so the change feed fans out.
	if err := r.Channel.ExchangeDeclare(r.exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", r.exchange, err)
	}

	return nil
}

// DeclareInstanceQueue creates a server-named exclusive queue bound to the
// change feed. It disappears with the connection.
func (r *RabbitMQ) DeclareInstanceQueue(messageTypes []string) (string, error) {
	ch := r.channel()
	args := amqp.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	}

	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		args,  // arguments with DLX config
	)
	if err != nil {
		return "", fmt.Errorf("failed to declare instance queue: %w", err)
	}

	for _, msg := range messageTypes {
		if err := ch.QueueBind(
			q.Name,     // queue name
			msg,        // routing key
			r.exchange, // exchange
			false,
			nil,
		); err != nil {
			return "", fmt.Errorf("failed to bind queue %s: %w", q.Name, err)
		}
	}

	return q.Name, nil
}

func (r *RabbitMQ) PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))

	return r.channel().PublishWithContext(ctx,
		r.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Headers:     headers,
			Body:        body,
		},
	)
}

// ConsumeMessages delivers messages of queueName to handler until ctx is done
// or the channel closes. Messages the handler fails are dead-lettered.
// The returned channel yields the close reason, if the broker gave one, and
// is closed once deliveries stop.
func (r *RabbitMQ) ConsumeMessages(ctx context.Context, queueName string, handler MessageHandler) (<-chan error, error) {
	ch := r.channel()
	if err := ch.Qos(16, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	msgs, err := ch.ConsumeWithContext(ctx,
		queueName, // queue
		"",        // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s: %w", queueName, err)
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)

		for msg := range msgs {
			msgCtx := otel.GetTextMapPropagator().Extract(ctx, headerCarrier(msg.Headers))

			if err := handler(msgCtx, msg); err != nil {
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}

		select {
		case reason, ok := <-closed:
			if ok && reason != nil {
				done <- reason
			}
		default:
		}
	}()

	return done, nil
}
