package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/backoff"
	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/publisher"
)

const (
	// Reconnection parameters
	maxReconnectDelay  = 30 * time.Second
	baseReconnectDelay = 1 * time.Second
)

var errEmptySubmissionID = errors.New("submission_id is empty")

// Consumer listens to RabbitMQ and dispatches SubmissionMessage (with ACK callbacks) to a channel.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	conn     *amqplib.Connection
	channel  *amqplib.Channel
	logger   *zap.Logger
	jobs     chan<- *domain.SubmissionMessage

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

// NewConsumer creates a new RabbitMQ consumer.
// The consumer does not auto-ACK: each delivery is wrapped in a SubmissionMessage
// whose Ack/Nack callbacks the worker pool calls once judging has settled.
// prefetch bounds unacknowledged deliveries and should match the pool size.
func NewConsumer(url, queue string, prefetch int, jobs chan<- *domain.SubmissionMessage, logger *zap.Logger) (*Consumer, error) {
	if prefetch < 1 {
		prefetch = 1
	}
	c := &Consumer{
		url:      url,
		queue:    queue,
		prefetch: prefetch,
		logger:   logger,
		jobs:     jobs,
		closeCh:  make(chan struct{}),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

// connect establishes the AMQP connection and channel and declares the topology.
func (c *Consumer) connect() error {
	conn, err := amqplib.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqp qos: %w", err)
	}

	if err := publisher.DeclareTopology(ch, c.queue); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	return nil
}

// Start begins consuming messages. It blocks until the context is cancelled.
// On connection loss it automatically reconnects with exponential backoff.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if err == nil {
			// Context was cancelled: clean shutdown.
			return nil
		}

		// Check if we were explicitly closed.
		select {
		case <-c.closeCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		c.logger.Warn("AMQP consumer lost connection, reconnecting...", zap.Error(err))

		for attempt := 0; ; attempt++ {
			select {
			case <-c.closeCh:
				return nil
			default:
			}

			delay := backoff.Compute(attempt, baseReconnectDelay, maxReconnectDelay)
			c.logger.Info("Reconnect attempt",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			if err := backoff.Sleep(ctx, delay); err != nil {
				return nil
			}

			if err := c.connect(); err != nil {
				c.logger.Error("Reconnect failed", zap.Error(err))
				continue
			}

			c.logger.Info("Reconnected to RabbitMQ")
			break
		}
	}
}

// consume runs one consume session until the delivery channel closes or ctx is cancelled.
func (c *Consumer) consume(ctx context.Context) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return fmt.Errorf("channel is nil")
	}

	deliveries, err := ch.Consume(
		c.queue,
		"",    // auto-generated consumer tag
		false, // auto-ack disabled (manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	c.logger.Info("AMQP consumer started", zap.String("queue", c.queue), zap.Int("prefetch", c.prefetch))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("AMQP consumer stopping (context cancelled)")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			id, err := decodeTask(delivery.Body)
			if err != nil {
				c.logger.Error("Failed to decode submission task",
					zap.Error(err),
					zap.String("body", string(delivery.Body)),
				)
				delivery.Nack(false, false) // reject → DLQ
				continue
			}

			c.logger.Debug("Received submission from queue",
				zap.String("submission_id", id.String()),
				zap.Bool("redelivered", delivery.Redelivered),
			)

			msg := newMessage(id, ch, delivery.DeliveryTag)

			// Dispatch to worker pool. This blocks while every worker is busy,
			// which together with prefetch gives back-pressure.
			select {
			case c.jobs <- msg:
			case <-ctx.Done():
				// Shutting down: nack so the message is requeued.
				delivery.Nack(false, true)
				return nil
			}
		}
	}
}

// decodeTask extracts the submission id from a message body.
func decodeTask(body []byte) (uuid.UUID, error) {
	var task domain.SubmissionTask
	if err := json.Unmarshal(body, &task); err != nil {
		return uuid.Nil, fmt.Errorf("unmarshal task: %w", err)
	}
	if task.SubmissionID == uuid.Nil {
		return uuid.Nil, errEmptySubmissionID
	}
	return task.SubmissionID, nil
}

// acknowledger is the part of *amqplib.Channel a message settles against.
type acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
}

func newMessage(id uuid.UUID, ch acknowledger, tag uint64) *domain.SubmissionMessage {
	return &domain.SubmissionMessage{
		SubmissionID: id,
		Ack: func() error {
			return ch.Ack(tag, false)
		},
		Nack: func(requeue bool) error {
			return ch.Nack(tag, false, requeue)
		},
	}
}

// Close gracefully shuts down the consumer.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
