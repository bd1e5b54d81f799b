// Package otel sets up the OpenTelemetry log and metric pipelines.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultMetricInterval = time.Minute

// Config holds OTel configuration
type Config struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	LogWriter      io.Writer // pretty-printed log records
	MetricWriter   io.Writer // periodic metric snapshots, optional
	MetricInterval time.Duration
	Endpoint       string // OTLP/HTTP log endpoint, optional
	Insecure       bool
}

// flusher is what both SDK providers expose for teardown.
type flusher interface {
	ForceFlush(context.Context) error
	Shutdown(context.Context) error
}

type component struct {
	name string
	f    flusher
}

// Provider owns the SDK log and meter providers. A nil or disabled
// Provider is valid and does nothing.
type Provider struct {
	logs       *sdklog.LoggerProvider
	meters     *sdkmetric.MeterProvider
	components []component
}

// New builds the pipelines described by cfg. Logs need at least one sink
// (LogWriter or Endpoint). With a MetricWriter the meter provider becomes
// the global one, so every otel.Meter instrument in the process exports.
func New(cfg Config) (*Provider, error) {
	p := &Provider{}
	if !cfg.Enabled {
		return p, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporters, err := logExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(exporters) == 0 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}
	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		logOpts = append(logOpts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)),
		))
	}
	p.logs = sdklog.NewLoggerProvider(logOpts...)
	p.components = append(p.components, component{"log", p.logs})

	if cfg.MetricWriter != nil {
		if p.meters, err = meterProvider(cfg, res); err != nil {
			return nil, err
		}
		otel.SetMeterProvider(p.meters)
		p.components = append(p.components, component{"metric", p.meters})
	}
	return p, nil
}

func logExporters(ctx context.Context, cfg Config) ([]sdklog.Exporter, error) {
	var out []sdklog.Exporter
	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		out = append(out, exp)
	}
	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		out = append(out, exp)
	}
	return out, nil
}

func meterProvider(cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.MetricWriter))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)), nil
}

// LoggerProvider returns the log provider for the otelslog bridge, or nil
// when OTel is off.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	if p == nil {
		return nil
	}
	return p.logs
}

// Meter returns a meter from this provider when it exports metrics, else
// from the global provider.
func (p *Provider) Meter(name string) metric.Meter {
	if p != nil && p.meters != nil {
		return p.meters.Meter(name)
	}
	return otel.GetMeterProvider().Meter(name)
}

// Enabled reports whether any pipeline was built.
func (p *Provider) Enabled() bool {
	return p != nil && len(p.components) > 0
}

// Flush exports everything buffered so far.
func (p *Provider) Flush(ctx context.Context) error {
	return p.each(func(c component) error {
		if err := c.f.ForceFlush(ctx); err != nil {
			return fmt.Errorf("%s flush failed: %w", c.name, err)
		}
		return nil
	})
}

// Shutdown flushes and stops every pipeline. Call it once at exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.each(func(c component) error {
		if err := c.f.Shutdown(ctx); err != nil {
			return fmt.Errorf("%s shutdown failed: %w", c.name, err)
		}
		return nil
	})
}

func (p *Provider) each(fn func(component) error) error {
	if p == nil {
		return nil
	}
	var errs []error
	for _, c := range p.components {
		errs = append(errs, fn(c))
	}
	return errors.Join(errs...)
}
