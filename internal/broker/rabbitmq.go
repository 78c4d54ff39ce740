package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/codeduel-backend/pkg/types"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const RoomEventsExchange = "codeduel_room_events"

var ErrConsumerClosed = errors.New("broker: delivery channel closed")

// RabbitMQ publishes every broadcast to a fanout exchange. Each process binds
// its own exclusive queue and replays what it receives into its local groups,
// so a room's members see the same events whichever process they hit.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	groups  Groups
	logger  *zap.Logger
}

func NewRabbitMQ(url string, groups Groups, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		RoomEventsExchange, // name
		"fanout",           // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("connected to rabbitmq", zap.String("exchange", RoomEventsExchange))
	return &RabbitMQ{conn: conn, channel: ch, groups: groups, logger: logger}, nil
}

func (b *RabbitMQ) Publish(ctx context.Context, roomID string, env types.Envelope, except string) error {
	return b.publish(ctx, Message{RoomID: roomID, Except: except, Envelope: &env})
}

func (b *RabbitMQ) CloseRoom(ctx context.Context, roomID string) error {
	return b.publish(ctx, Message{RoomID: roomID, Close: true})
}

func (b *RabbitMQ) publish(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode broker message: %w", err)
	}
	return b.channel.PublishWithContext(ctx,
		RoomEventsExchange, // exchange
		"room."+m.RoomID,   // routing key (ignored by fanout)
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}

// Run consumes the exchange until ctx is cancelled or the connection drops.
func (b *RabbitMQ) Run(ctx context.Context) error {
	q, err := b.channel.QueueDeclare(
		"",    // name (let RabbitMQ generate one)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := b.channel.QueueBind(q.Name, "", RoomEventsExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := b.channel.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	b.logger.Info("consuming room events", zap.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrConsumerClosed
			}
			b.handle(d.Body)
		}
	}
}

func (b *RabbitMQ) handle(body []byte) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		b.logger.Error("drop malformed broker message", zap.Error(err))
		return
	}
	m.deliver(b.groups)
}

func (b *RabbitMQ) Close() error {
	var err error
	if b.channel != nil {
		err = multierr.Append(err, b.channel.Close())
	}
	if b.conn != nil {
		err = multierr.Append(err, b.conn.Close())
	}
	b.logger.Info("rabbitmq connection closed")
	return err
}
