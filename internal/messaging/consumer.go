package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type OrderConfirmedHandler func(ctx context.Context, msg OrderConfirmed) error

// Consumer reads order.confirmed and hands every message to a handler.
type Consumer struct {
	url     string
	handler OrderConfirmedHandler
	logger  *slog.Logger

	prefetch   int
	maxBackoff time.Duration
}

func NewConsumer(url string, handler OrderConfirmedHandler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		url:        url,
		handler:    handler,
		logger:     logger,
		prefetch:   20,
		maxBackoff: 30 * time.Second,
	}
}

// Run consumes until ctx is cancelled, redialing with exponential backoff
// whenever the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		conn, err := amqp.DialConfig(c.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
		if err == nil {
			backoff = time.Second
			err = c.consume(ctx, conn)
			_ = conn.Close()
		}

		if ctx.Err() != nil {
			return nil
		}

		c.logger.Warn("order consumer disconnected", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		if backoff < c.maxBackoff {
			backoff *= 2
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	if _, err := ch.QueueDeclare(QueueOrderConfirmed, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	deliveries, err := ch.Consume(QueueOrderConfirmed, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.logger.Info("order consumer started", "queue", QueueOrderConfirmed)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

// acknowledger is the part of amqp.Delivery that deliver needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	c.handle(ctx, d.Body, d.Redelivered, d)
}

// handle decodes and processes one message. Malformed messages are dropped.
// A failing handler gets one redelivery before the message is dropped.
func (c *Consumer) handle(ctx context.Context, body []byte, redelivered bool, ack acknowledger) {
	msg, err := decodeOrderConfirmed(body)
	if err != nil {
		c.logger.Error("order message rejected", "error", err)
		_ = ack.Nack(false, false)
		return
	}

	if err := c.handler(ctx, msg); err != nil {
		c.logger.Error("order message failed",
			"order_id", msg.OrderID,
			"redelivered", redelivered,
			"error", err,
		)
		_ = ack.Nack(false, !redelivered)
		return
	}

	_ = ack.Ack(false)
}
