// Package dispatcher runs the single event loop that owns all controller
// state. UI events and network completions are posted to the loop and
// handled one at a time, in delivery order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultQueueSize is the event queue capacity used when none is given.
const DefaultQueueSize = 256

// ErrQueueFull is returned by Post when the event queue has no room.
var ErrQueueFull = errors.New("event queue full")

// Event represents a UI interaction or a completed background operation.
type Event struct {
	Command   string
	Payload   any
	Timestamp time.Time

	reply chan reply
}

type reply struct {
	result any
	err    error
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   Logger
	queue    chan Event

	metrics instruments
}

// New creates a new Dispatcher with the given logger and queue capacity.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger, queueSize int) (*Dispatcher, error) {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
		queue:    make(chan Event, queueSize),
	}

	ins, err := newInstruments(func() int { return len(d.queue) })
	if err != nil {
		return nil, err
	}
	d.metrics = ins

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch runs the handler for e on the calling goroutine. Outside tests
// only the loop in Run calls it.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(e)
}

// Post queues an event without waiting. It fails with ErrQueueFull rather
// than block the caller.
func (d *Dispatcher) Post(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case d.queue <- e:
		return nil
	default:
		d.metrics.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", e.Command)))
		return fmt.Errorf("%w: %s", ErrQueueFull, e.Command)
	}
}

// Send queues an event, waiting for room until ctx is done.
func (d *Dispatcher) Send(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case d.queue <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call queues an event and waits for the loop to handle it, returning the
// handler's result.
func (d *Dispatcher) Call(ctx context.Context, command string, payload any) (any, error) {
	e := Event{
		Command:   command,
		Payload:   payload,
		Timestamp: time.Now(),
		reply:     make(chan reply, 1),
	}
	if err := d.Send(ctx, e); err != nil {
		return nil, err
	}
	select {
	case r := <-e.reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run handles queued events one at a time until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-d.queue:
			start := time.Now()
			result, err := d.Dispatch(e)
			attrs := metric.WithAttributes(attribute.String("command", e.Command))
			d.metrics.handling.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
			if e.reply != nil {
				e.reply <- reply{result: result, err: err}
			} else if err != nil {
				d.logger.Error("event failed", "command", e.Command, "error", err)
			}
			d.metrics.processed.Add(ctx, 1, attrs)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "queued", start.Sub(e.Timestamp))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
