package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records operation-level measurements for exchanges, vault
// lookups, and tool invocations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: recording is best-effort; failures are never surfaced to callers.
type Metrics interface {
	// RecordOp records one completed operation with its outcome.
	RecordOp(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordCacheHit records a token cache hit for the given audience or
	// connection.
	RecordCacheHit(ctx context.Context, meta OpMeta)

	// RecordCacheMiss records a token cache miss.
	RecordCacheMiss(ctx context.Context, meta OpMeta)

	// RecordRound records one completed orchestration round and the number
	// of tool calls it carried.
	RecordRound(ctx context.Context, toolCalls int)
}

type metricsImpl struct {
	opTotal    metric.Int64Counter
	opErrors   metric.Int64Counter
	opDuration metric.Float64Histogram
	cacheHits  metric.Int64Counter
	cacheMiss  metric.Int64Counter
	rounds     metric.Int64Counter
	roundCalls metric.Int64Histogram
}

func newMetrics(meter metric.Meter) (Metrics, error) {
	opTotal, err := meter.Int64Counter("agentgate.op.total",
		metric.WithDescription("Total operations by kind and name"))
	if err != nil {
		return nil, err
	}
	opErrors, err := meter.Int64Counter("agentgate.op.errors",
		metric.WithDescription("Failed operations by kind and name"))
	if err != nil {
		return nil, err
	}
	opDuration, err := meter.Float64Histogram("agentgate.op.duration_ms",
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	cacheHits, err := meter.Int64Counter("agentgate.cache.hits",
		metric.WithDescription("Token cache hits"))
	if err != nil {
		return nil, err
	}
	cacheMiss, err := meter.Int64Counter("agentgate.cache.misses",
		metric.WithDescription("Token cache misses"))
	if err != nil {
		return nil, err
	}
	rounds, err := meter.Int64Counter("agentgate.agent.rounds",
		metric.WithDescription("Completed orchestration rounds"))
	if err != nil {
		return nil, err
	}
	roundCalls, err := meter.Int64Histogram("agentgate.agent.round_tool_calls",
		metric.WithDescription("Tool calls per orchestration round"))
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		opTotal:    opTotal,
		opErrors:   opErrors,
		opDuration: opDuration,
		cacheHits:  cacheHits,
		cacheMiss:  cacheMiss,
		rounds:     rounds,
		roundCalls: roundCalls,
	}, nil
}

func (m *metricsImpl) RecordOp(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	attrs := meta.Attributes()
	attrs = append(attrs, attribute.Bool("op.ok", err == nil))
	set := metric.WithAttributes(attrs...)

	m.opTotal.Add(ctx, 1, set)
	if err != nil {
		m.opErrors.Add(ctx, 1, set)
	}
	m.opDuration.Record(ctx, float64(duration.Milliseconds()), set)
}

func (m *metricsImpl) RecordCacheHit(ctx context.Context, meta OpMeta) {
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(meta.Attributes()...))
}

func (m *metricsImpl) RecordCacheMiss(ctx context.Context, meta OpMeta) {
	m.cacheMiss.Add(ctx, 1, metric.WithAttributes(meta.Attributes()...))
}

func (m *metricsImpl) RecordRound(ctx context.Context, toolCalls int) {
	m.rounds.Add(ctx, 1)
	m.roundCalls.Record(ctx, int64(toolCalls))
}

// noopMetrics discards all measurements.
type noopMetrics struct{}

func (noopMetrics) RecordOp(context.Context, OpMeta, time.Duration, error) {}
func (noopMetrics) RecordCacheHit(context.Context, OpMeta)                 {}
func (noopMetrics) RecordCacheMiss(context.Context, OpMeta)                {}
func (noopMetrics) RecordRound(context.Context, int)                       {}

var _ Metrics = (*metricsImpl)(nil)
var _ Metrics = noopMetrics{}
