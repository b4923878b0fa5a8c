package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// ErrConsumerClosed is returned by Consume when the broker closes the
// delivery channel.
var ErrConsumerClosed = errors.New("amqp delivery channel closed")

// RabbitMQ publishes and consumes events on one durable queue.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	logger  *slog.Logger
}

var _ Publisher = (*RabbitMQ)(nil)

// Dial connects to url and declares queue.
func Dial(url, queue string, logger *slog.Logger) (*RabbitMQ, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	logger.Info("connected to RabbitMQ", "queue", q.Name)
	return &RabbitMQ{conn: conn, channel: ch, queue: q, logger: logger}, nil
}

func (r *RabbitMQ) PublishSubmissionCreated(ctx context.Context, ev SubmissionCreated) error {
	body, err := Encode(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return r.channel.PublishWithContext(
		ctx,
		"",           // exchange
		r.queue.Name, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

// Consume delivers events to handler until ctx is cancelled. Malformed
// messages and handler failures are rejected without requeue.
func (r *RabbitMQ) Consume(ctx context.Context, handler Handler) error {
	msgs, err := r.channel.Consume(
		r.queue.Name,
		"",
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return ErrConsumerClosed
			}
			r.deliver(ctx, d, handler)
		}
	}
}

func (r *RabbitMQ) deliver(ctx context.Context, d amqp.Delivery, handler Handler) {
	ev, err := Decode(d.Body)
	if err != nil {
		r.logger.Warn("invalid event format", "err", err)
		_ = d.Nack(false, false)
		return
	}
	if err := handler(ctx, ev); err != nil {
		r.logger.Error("event handler failed", "id", ev.ID, "err", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (r *RabbitMQ) Close() error {
	var errs []error
	if r.channel != nil {
		errs = append(errs, r.channel.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}
