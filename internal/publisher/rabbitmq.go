package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
)

const (
	// Reconnection settings
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 30 * time.Second

	// Publish timeout
	publishTimeout = 5 * time.Second
)

// Publisher hands queued submissions to the message broker.
type Publisher interface {
	Publish(ctx context.Context, sub *domain.Submission) error
	Close() error
}

type rabbitPublisher struct {
	url     string
	queue   string
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewRabbitMQPublisher creates a new RabbitMQ publisher with exchange and queue setup.
func NewRabbitMQPublisher(url, queue string, logger *zap.Logger) (Publisher, error) {
	p := &rabbitPublisher{
		url:    url,
		queue:  queue,
		logger: logger,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	// Watch for connection closures and reconnect
	go p.watchConnection()

	return p, nil
}

func (p *rabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}

	// Enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	if err := DeclareTopology(ch, p.queue); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.mu.Unlock()

	p.logger.Info("RabbitMQ publisher initialized",
		zap.String("exchange", exchangeName),
		zap.String("queue", p.queue),
	)

	return nil
}

// watchConnection monitors the connection and reconnects on failure.
func (p *rabbitPublisher) watchConnection() {
	for {
		p.mu.RLock()
		if p.closed {
			p.mu.RUnlock()
			return
		}
		conn := p.conn
		p.mu.RUnlock()

		if conn == nil {
			time.Sleep(reconnectDelay)
			continue
		}

		// Block until the connection closes
		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if !ok {
			// Channel closed normally
			return
		}

		p.logger.Warn("RabbitMQ connection lost, reconnecting...",
			zap.String("reason", reason.Error()),
		)
		p.mu.Lock()
		p.channel = nil
		p.mu.Unlock()

		delay := reconnectDelay
		for {
			p.mu.RLock()
			if p.closed {
				p.mu.RUnlock()
				return
			}
			p.mu.RUnlock()

			time.Sleep(delay)

			if err := p.connect(); err != nil {
				p.logger.Warn("RabbitMQ reconnect failed", zap.Error(err), zap.Duration("retry_in", delay))
				delay = delay * 2
				if delay > maxReconnectDelay {
					delay = maxReconnectDelay
				}
				continue
			}

			p.logger.Info("RabbitMQ reconnected successfully")
			break
		}
	}
}

// Publish sends the submission id and waits for the broker to confirm it.
func (p *rabbitPublisher) Publish(ctx context.Context, sub *domain.Submission) error {
	body, err := json.Marshal(domain.SubmissionTask{SubmissionID: sub.SubmissionID})
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal task: %w", err)
	}

	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("rabbitmq: channel not available (reconnecting)")
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(publishCtx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    sub.SubmissionID.String(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	// Wait for broker confirmation
	acked, err := confirmation.WaitContext(publishCtx)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish confirmation timeout (submission_id=%s): %w", sub.SubmissionID, err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq: broker nacked message (submission_id=%s)", sub.SubmissionID)
	}

	p.logger.Debug("Published submission to RabbitMQ",
		zap.String("submission_id", sub.SubmissionID.String()),
		zap.Int("body_size", len(body)),
	)
	return nil
}

func (p *rabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
