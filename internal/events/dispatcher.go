package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bookstore/services/library/internal/metrics"
)

const (
	defaultQueueSize = 256
	publishTimeout   = 10 * time.Second
)

// Dispatcher hands events to a Publisher from a single background worker.
// Emit never blocks the caller; events are dropped when the queue is full.
// A nil *Dispatcher discards everything.
type Dispatcher struct {
	publisher Publisher
	log       *zap.Logger
	metrics   *metrics.Metrics
	queue     chan Event
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the worker
func NewDispatcher(publisher Publisher, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	d := &Dispatcher{
		publisher: publisher,
		log:       log,
		metrics:   m,
		queue:     make(chan Event, defaultQueueSize),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// Emit queues an event for publishing
func (d *Dispatcher) Emit(event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("Dropping event, dispatcher closed", zap.String("event_type", event.EventType))
		return
	}

	select {
	case d.queue <- event:
	default:
		d.metrics.EventPublished(event.EventType, errQueueFull)
		d.log.Warn("Dropping event, queue full",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
		)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := d.publisher.Publish(ctx, event)
		cancel()

		d.metrics.EventPublished(event.EventType, err)
		if err != nil {
			d.log.Error("Failed to publish event",
				zap.String("event_id", event.EventID),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
		}
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errQueueFull = errors.New("event queue full")
