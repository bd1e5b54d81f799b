package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/urbanroute/routeview/internal/dispatcher"

// instruments are the loop's OTel metrics, taken from the global meter
// provider (no-op unless one is installed).
type instruments struct {
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	handling  metric.Float64Histogram
}

func newInstruments(queueLen func() int) (instruments, error) {
	m := otel.Meter(instrumentationName)
	var (
		ins instruments
		err error
	)

	_, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in the queue"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(queueLen()))
			return nil
		}),
	)
	if err != nil {
		return ins, fmt.Errorf("creating queue size gauge: %w", err)
	}

	if ins.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events handled by the loop"),
	); err != nil {
		return ins, fmt.Errorf("creating processed counter: %w", err)
	}
	if ins.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events refused because the queue was full"),
	); err != nil {
		return ins, fmt.Errorf("creating dropped counter: %w", err)
	}
	if ins.handling, err = m.Float64Histogram("dispatcher.events.duration",
		metric.WithDescription("Time spent in event handlers"),
		metric.WithUnit("ms"),
	); err != nil {
		return ins, fmt.Errorf("creating duration histogram: %w", err)
	}
	return ins, nil
}
