// Package dispatcher routes planner events to handlers, optionally through
// a bounded queue drained by a background goroutine.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/orbitpath/planner/internal/mission"
)

// TopicPlanGenerated carries a *mission.Plan after it has been stored.
const TopicPlanGenerated = "plan.generated"

var (
	// ErrQueueFull is returned when a non-blocking queue has no room.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Event is something that happened in the planner.
type Event struct {
	Topic     string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event.
type HandlerFunc func(context.Context, Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *options) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *options) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *options) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	mu      sync.RWMutex
	buffers map[string]chan Event
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to meter, or to the global OTel
// meter provider when meter is nil.
func New(logger Logger, meter metric.Meter) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}
	if meter == nil {
		meter = defaultMeter()
	}

	var err error
	d.queueSize, err = meter.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for topic, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("topic", topic)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = meter.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = meter.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for topic. Registering a topic again replaces
// the synchronous path but leaves an earlier queue running.
func (d *Dispatcher) Register(topic string, h HandlerFunc, opts ...Option) {
	cfg := &options{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(topic, handler)
	}

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(topic, cfg.bufferSize, cfg.blocking, handler)
	}

	d.mu.Lock()
	d.handlers[topic] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler. Buffered handlers
// return as soon as the event is queued.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	d.mu.RLock()
	h, ok := d.handlers[e.Topic]
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !ok {
		return fmt.Errorf("unknown topic: %s", e.Topic)
	}
	return h(ctx, e)
}

// HasHandler returns true if a handler is registered for the topic.
func (d *Dispatcher) HasHandler(topic string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[topic]
	return ok
}

// Close stops accepting events and waits until every queue is drained or
// ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, buf := range d.buffers {
			close(buf)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) withBuffer(topic string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[topic] = buffer
	d.mu.Unlock()

	topicAttr := metric.WithAttributes(attribute.String("topic", topic))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// queued events outlive the request that produced them
		ctx := context.Background()
		for e := range buffer {
			if err := h(ctx, e); err != nil {
				d.logger.Error("queued event failed", "topic", topic, "error", err)
			}
			d.processed.Add(ctx, 1, topicAttr)
		}
	}()

	// Hold the read lock while sending so Close cannot close the channel
	// underneath us.
	if blocking {
		return func(ctx context.Context, e Event) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if d.closed {
				return ErrClosed
			}
			select {
			case buffer <- e:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return func(ctx context.Context, e Event) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return ErrClosed
		}
		select {
		case buffer <- e:
			return nil
		default:
			d.dropped.Add(ctx, 1, topicAttr)
			return fmt.Errorf("%w: %s", ErrQueueFull, topic)
		}
	}
}

func (d *Dispatcher) withLogging(topic string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "topic", topic)

		err := h(ctx, e)

		if err != nil {
			d.logger.Error("event failed", "topic", topic, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "topic", topic, "duration", time.Since(start))
		}

		return err
	}
}

// PlanSink publishes plans on a topic. It satisfies planner.PlanSink.
type PlanSink struct {
	d     *Dispatcher
	topic string
}

// Sink returns a PlanSink for topic.
func (d *Dispatcher) Sink(topic string) *PlanSink {
	return &PlanSink{d: d, topic: topic}
}

// WritePlan dispatches p.
func (s *PlanSink) WritePlan(ctx context.Context, p *mission.Plan) error {
	return s.d.Dispatch(ctx, Event{Topic: s.topic, Payload: p, Timestamp: p.GeneratedAt})
}

// PlanHandler adapts a plan consumer to a HandlerFunc.
func PlanHandler(fn func(context.Context, *mission.Plan) error) HandlerFunc {
	return func(ctx context.Context, e Event) error {
		p, ok := e.Payload.(*mission.Plan)
		if !ok {
			return fmt.Errorf("expected *mission.Plan, got %T", e.Payload)
		}
		return fn(ctx, p)
	}
}
