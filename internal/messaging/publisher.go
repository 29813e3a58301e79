package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrPublishQueueFull = errors.New("publish queue is full")

const (
	publishQueueSize = 256
	publishAttempts  = 3
	publishTimeout   = 5 * time.Second
	dialTimeout      = 3 * time.Second
)

// Publisher queues order events in memory and delivers them from Run, so a
// slow or unreachable broker never stalls the caller. It keeps one
// connection open and redials it lazily after the broker went away.
type Publisher struct {
	url    string
	logger *slog.Logger

	queue      chan OrderConfirmed
	send       func(ctx context.Context, msg OrderConfirmed) error
	retryDelay time.Duration

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string, logger *slog.Logger) *Publisher {
	return newPublisher(url, logger, publishQueueSize)
}

func newPublisher(url string, logger *slog.Logger, size int) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Publisher{
		url:        url,
		logger:     logger,
		queue:      make(chan OrderConfirmed, size),
		retryDelay: time.Second,
	}
	p.send = p.publish

	return p
}

// PublishOrderConfirmed queues msg for delivery and returns immediately.
//
// Returns:
//   - error: messaging.ErrPublishQueueFull if Run is not keeping up.
func (p *Publisher) PublishOrderConfirmed(_ context.Context, msg OrderConfirmed) error {
	const op = "messaging.Publisher.PublishOrderConfirmed"

	select {
	case p.queue <- msg:
		return nil
	default:
		return fmt.Errorf("%s:%w", op, ErrPublishQueueFull)
	}
}

// Run delivers queued events until ctx is done, then makes one last attempt
// at whatever is still queued.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return nil
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, msg OrderConfirmed) {
	for attempt := 1; ; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := p.send(sendCtx, msg)
		cancel()
		if err == nil {
			return
		}

		if attempt == publishAttempts || ctx.Err() != nil {
			p.logger.Error("order confirmation dropped",
				"order_id", msg.OrderID,
				"attempts", attempt,
				"error", err,
			)
			return
		}

		p.logger.Warn("order confirmation publish failed, retrying", "order_id", msg.OrderID, "error", err)

		select {
		case <-ctx.Done():
		case <-time.After(p.retryDelay * time.Duration(attempt)):
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	for {
		select {
		case msg := <-p.queue:
			if err := p.send(ctx, msg); err != nil {
				p.logger.Error("order confirmation dropped on shutdown", "order_id", msg.OrderID, "error", err)
			}
		default:
			return
		}
	}
}

// ensureConnection must be called with p.mu held.
func (p *Publisher) ensureConnection() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}

	p.closeLocked()

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if _, err := ch.QueueDeclare(QueueOrderConfirmed, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.conn, p.ch = conn, ch
	return nil
}

// publish sends msg as a persistent JSON message to the order.confirmed queue.
func (p *Publisher) publish(ctx context.Context, msg OrderConfirmed) error {
	const op = "messaging.Publisher.publish"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnection(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err = p.ch.PublishWithContext(ctx, "", QueueOrderConfirmed, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.OrderID.String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.closeLocked()
		return fmt.Errorf("%s:%w", op, err)
	}

	p.logger.Debug("order confirmed published", "order_id", msg.OrderID)

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
