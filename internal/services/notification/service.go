package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"exchange/internal/metrics"

	"github.com/google/uuid"
)

const (
	DefaultQueueSize   = 256
	DefaultWorkers     = 2
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
)

// Dispatcher is an in-process outbound event queue. Producers enqueue after
// their transaction has committed; workers deliver to every sink with a
// bounded retry. Delivery failures are logged and counted, never returned
// to the producer.
type Dispatcher struct {
	queue       chan Event
	sinks       []Sink
	workers     int
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	wg          sync.WaitGroup
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Event, n)
		}
	}
}

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			d.backoff = backoff
		}
	}
}

func NewDispatcher(sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:       make(chan Event, DefaultQueueSize),
		sinks:       sinks,
		workers:     DefaultWorkers,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish enqueues an event. It returns false when the queue is full and
// the event was dropped.
func (d *Dispatcher) Publish(ctx context.Context, eventType string, payload map[string]any) bool {
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: d.now().UTC(),
		Payload:    payload,
	}
	select {
	case d.queue <- event:
		d.metrics.SetQueueLength(len(d.queue))
		return true
	default:
		d.logger.WarnContext(ctx, "notification_dropped", "event_type", eventType, "reason", "queue_full")
		d.metrics.Notification("dropped")
		return false
	}
}

// Run starts the workers and blocks until ctx is cancelled and in-flight
// deliveries finish.
func (d *Dispatcher) Run(ctx context.Context) error {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.work(ctx)
		}()
	}
	<-ctx.Done()
	d.wg.Wait()
	d.logger.Info("notification dispatcher stopping", "reason", ctx.Err(), "pending", len(d.queue))
	return nil
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.metrics.SetQueueLength(len(d.queue))
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	for _, sink := range d.sinks {
		var err error
		for attempt := 1; attempt <= d.maxAttempts; attempt++ {
			if err = sink.Deliver(ctx, event); err == nil {
				break
			}
			d.logger.WarnContext(ctx, "notification_delivery_failed",
				"sink", sink.Name(),
				"event_id", event.ID,
				"event_type", event.Type,
				"attempt", attempt,
				"error", err,
			)
			if attempt == d.maxAttempts {
				break
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.backoff * time.Duration(attempt)):
			}
		}
		if err != nil {
			d.metrics.Notification("failed")
			d.logger.ErrorContext(ctx, "notification_gave_up",
				"sink", sink.Name(), "event_id", event.ID, "event_type", event.Type, "error", err)
			continue
		}
		d.metrics.Notification("delivered")
	}
}
