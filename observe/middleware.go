package observe

import (
	"context"
	"time"
)

// Middleware instruments operations with tracing, metrics, and logging.
// It is the single wrapping point for exchanges, vault lookups, and tool
// invocations so that all three emit uniform telemetry.
type Middleware struct {
	obs Observer
}

// NewMiddleware creates a Middleware backed by the given Observer.
func NewMiddleware(obs Observer) *Middleware {
	if obs == nil {
		obs = NewNopObserver()
	}
	return &Middleware{obs: obs}
}

// Instrument runs op inside a span for meta, records duration and outcome,
// and logs completion. The error from op is returned unchanged.
func (m *Middleware) Instrument(ctx context.Context, meta OpMeta, op func(context.Context) error) error {
	ctx, span := m.obs.Tracer().StartSpan(ctx, meta)
	logger := m.obs.Logger().WithOp(meta)
	start := time.Now()

	err := op(ctx)

	duration := time.Since(start)
	m.obs.Tracer().EndSpan(span, err)
	m.obs.Metrics().RecordOp(ctx, meta, duration, err)

	if err != nil {
		logger.Error(ctx, "operation failed",
			Field{Key: "duration_ms", Value: duration.Milliseconds()},
			Field{Key: "error", Value: err.Error()},
		)
		return err
	}

	logger.Debug(ctx, "operation completed",
		Field{Key: "duration_ms", Value: duration.Milliseconds()},
	)
	return nil
}

// Logger exposes the underlying logger for callers that need to emit
// domain-specific entries outside an instrumented operation.
func (m *Middleware) Logger() Logger {
	return m.obs.Logger()
}

// Metrics exposes the underlying metrics recorder.
func (m *Middleware) Metrics() Metrics {
	return m.obs.Metrics()
}
