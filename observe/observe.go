package observe

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/apexwealth/agentgate/observe/exporters"
)

// Config selects which telemetry subsystems run and where they
// export. The zero value disables everything.
type Config struct {
	// ServiceName labels every span, metric, and log entry. Required.
	ServiceName string

	// Version is attached to the telemetry resource.
	Version string

	Tracing TracingConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool

	// Exporter is one of otlp, jaeger, stdout, none.
	Exporter string

	// SamplePct is the trace sampling ratio in [0, 1].
	SamplePct float64
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled bool

	// Exporter is one of otlp, prometheus, stdout, none.
	Exporter string
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Enabled bool

	// Level is one of debug, info, warn, error.
	Level string
}

// oneOf reports whether value is empty or among the accepted names.
// Empty means the subsystem default.
func oneOf(value string, accepted ...string) bool {
	if value == "" {
		return true
	}
	for _, a := range accepted {
		if value == a {
			return true
		}
	}
	return false
}

// Validate rejects configurations the constructors could not honor.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}

	if c.Tracing.Enabled {
		if !oneOf(c.Tracing.Exporter, "otlp", "jaeger", "stdout", "none") {
			return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.Tracing.Exporter)
		}
		if c.Tracing.SamplePct < 0 || c.Tracing.SamplePct > 1.0 {
			return fmt.Errorf("%w: got %f", ErrInvalidSamplePct, c.Tracing.SamplePct)
		}
	}
	if c.Metrics.Enabled && !oneOf(c.Metrics.Exporter, "otlp", "prometheus", "stdout", "none") {
		return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.Metrics.Exporter)
	}
	if c.Logging.Enabled && !oneOf(c.Logging.Level, "debug", "info", "warn", "error") {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return nil
}

// Observer provides access to telemetry primitives.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Shutdown must honor cancellation/deadlines.
// - Errors: Shutdown should be idempotent and join all errors encountered.
type Observer interface {
	// Logger returns the configured logger.
	Logger() Logger

	// Tracer returns the configured tracer.
	Tracer() Tracer

	// Metrics returns the configured metrics recorder.
	Metrics() Metrics

	// Shutdown gracefully shuts down all telemetry providers.
	Shutdown(ctx context.Context) error
}

// observer is the concrete implementation of Observer.
type observer struct {
	logger         Logger
	tracer         Tracer
	metrics        Metrics
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// NewObserver creates a new Observer with the given configuration.
// Disabled subsystems fall back to no-op implementations.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	obs := &observer{
		logger:  NopLogger{},
		tracer:  newNoopTracer(),
		metrics: noopMetrics{},
	}
	if cfg.Logging.Enabled {
		obs.logger = NewLogger(cfg.Logging.Level)
	}

	if cfg.Tracing.Enabled {
		tp, tracer, err := initTracing(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("failed to setup tracing: %w", err)
		}
		obs.tracerProvider = tp
		obs.tracer = newTracer(tracer)
	}

	if cfg.Metrics.Enabled {
		mp, meter, err := initMetrics(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("failed to setup metrics: %w", err)
		}
		obs.meterProvider = mp
		m, err := newMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create instruments: %w", err)
		}
		obs.metrics = m
	}

	return obs, nil
}

// NewNopObserver returns an Observer with every subsystem disabled. It is
// intended for tests and for callers that wire telemetry separately.
func NewNopObserver() Observer {
	return &observer{
		logger:  NopLogger{},
		tracer:  newNoopTracer(),
		metrics: noopMetrics{},
	}
}

func initTracing(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, trace.Tracer, error) {
	exporter, err := exporters.Tracing(ctx, cfg.Tracing.Exporter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.Tracing.SamplePct >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.Tracing.SamplePct <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.Tracing.SamplePct)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp, tp.Tracer(cfg.ServiceName), nil
}

func initMetrics(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, metric.Meter, error) {
	reader, err := exporters.Metrics(ctx, cfg.Metrics.Exporter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics reader: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return mp, mp.Meter(cfg.ServiceName), nil
}

func (o *observer) Logger() Logger   { return o.logger }
func (o *observer) Tracer() Tracer   { return o.tracer }
func (o *observer) Metrics() Metrics { return o.metrics }

func (o *observer) Shutdown(ctx context.Context) error {
	var errs []error

	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}

	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// MeterForTest builds a Metrics recorder on the supplied meter. Tests use it
// with a manual reader to assert recorded measurements.
func MeterForTest(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

var _ Observer = (*observer)(nil)
