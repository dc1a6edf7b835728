package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	exchangeName = "library.events"
	exchangeType = "topic"

	// Retry configuration
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
	confirmTimeout = 5 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RabbitPublisher handles event publishing to RabbitMQ
type RabbitPublisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
}

// NewRabbitPublisher connects, declares the exchange and enables publisher confirms
func NewRabbitPublisher(url string, log *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchangeName,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	log.Info("Connected to RabbitMQ", zap.String("exchange", exchangeName))

	return &RabbitPublisher{
		conn:    conn,
		channel: channel,
		log:     log,
	}, nil
}

// Publish sends the event with exponential backoff retry, routed by its type
func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}

		lastErr = p.publishOnce(ctx, event, body)
		if lastErr == nil {
			p.log.Debug("Event published",
				zap.String("event_id", event.EventID),
				zap.String("event_type", event.EventType),
			)
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}

		p.log.Warn("Failed to publish event, retrying",
			zap.Int("attempt", attempt+1),
			zap.String("event_type", event.EventType),
			zap.Error(lastErr),
		)
	}

	return fmt.Errorf("failed to publish event after %d attempts: %w", maxRetries, lastErr)
}

func (p *RabbitPublisher) publishOnce(ctx context.Context, event Event, body []byte) error {
	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		exchangeName,
		event.EventType,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now(),
			MessageId:     event.EventID,
			CorrelationId: event.CorrelationID,
			Body:          body,
			Headers: amqp.Table{
				"event_type":    event.EventType,
				"event_version": event.EventVersion,
			},
		},
	)
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	acked, err := confirm.WaitContext(waitCtx)
	if err != nil {
		if ctx.Err() == nil {
			return errors.New("confirmation timeout")
		}
		return err
	}
	if !acked {
		return errors.New("event not acknowledged")
	}
	return nil
}

// IsHealthy checks if the publisher connection is healthy
func (p *RabbitPublisher) IsHealthy() bool {
	return p != nil && p.conn != nil && !p.conn.IsClosed()
}

// Close closes the publisher connection
func (p *RabbitPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Error("Failed to close channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.log.Error("Failed to close connection", zap.Error(err))
			return err
		}
	}
	p.log.Info("Publisher closed")
	return nil
}
