package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is not an int64 sum: %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

// TestMetrics_RecordOp verifies counters and the duration histogram.
func TestMetrics_RecordOp(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := MeterForTest(mp.Meter("test"))
	if err != nil {
		t.Fatalf("MeterForTest() error: %v", err)
	}

	ctx := context.Background()
	meta := OpMeta{Kind: KindExchange, Name: "identity_assertion", Audience: "finance-portfolio"}

	m.RecordOp(ctx, meta, 25*time.Millisecond, nil)
	m.RecordOp(ctx, meta, 40*time.Millisecond, errors.New("upstream 502"))

	rm := collectMetrics(t, reader)

	total, ok := findMetric(rm, "agentgate.op.total")
	if !ok {
		t.Fatal("agentgate.op.total not found")
	}
	if got := sumValue(t, total); got != 2 {
		t.Errorf("op.total = %d, want 2", got)
	}

	errs, ok := findMetric(rm, "agentgate.op.errors")
	if !ok {
		t.Fatal("agentgate.op.errors not found")
	}
	if got := sumValue(t, errs); got != 1 {
		t.Errorf("op.errors = %d, want 1", got)
	}

	dur, ok := findMetric(rm, "agentgate.op.duration_ms")
	if !ok {
		t.Fatal("agentgate.op.duration_ms not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration metric is not a float64 histogram: %T", dur.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("duration histogram count = %d, want 2", count)
	}
}

// TestMetrics_CacheHitMiss verifies the cache counters.
func TestMetrics_CacheHitMiss(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := MeterForTest(mp.Meter("test"))
	if err != nil {
		t.Fatalf("MeterForTest() error: %v", err)
	}

	ctx := context.Background()
	meta := OpMeta{Kind: KindVault, Name: "provider_token", Connection: "google-calendar"}

	m.RecordCacheHit(ctx, meta)
	m.RecordCacheHit(ctx, meta)
	m.RecordCacheMiss(ctx, meta)

	rm := collectMetrics(t, reader)

	hits, ok := findMetric(rm, "agentgate.cache.hits")
	if !ok {
		t.Fatal("agentgate.cache.hits not found")
	}
	if got := sumValue(t, hits); got != 2 {
		t.Errorf("cache.hits = %d, want 2", got)
	}

	misses, ok := findMetric(rm, "agentgate.cache.misses")
	if !ok {
		t.Fatal("agentgate.cache.misses not found")
	}
	if got := sumValue(t, misses); got != 1 {
		t.Errorf("cache.misses = %d, want 1", got)
	}
}

// TestMetrics_RecordRound verifies round counting and the per-round tool
// call histogram.
func TestMetrics_RecordRound(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := MeterForTest(mp.Meter("test"))
	if err != nil {
		t.Fatalf("MeterForTest() error: %v", err)
	}

	ctx := context.Background()
	m.RecordRound(ctx, 2)
	m.RecordRound(ctx, 0)
	m.RecordRound(ctx, 5)

	rm := collectMetrics(t, reader)

	rounds, ok := findMetric(rm, "agentgate.agent.rounds")
	if !ok {
		t.Fatal("agentgate.agent.rounds not found")
	}
	if got := sumValue(t, rounds); got != 3 {
		t.Errorf("agent.rounds = %d, want 3", got)
	}

	calls, ok := findMetric(rm, "agentgate.agent.round_tool_calls")
	if !ok {
		t.Fatal("agentgate.agent.round_tool_calls not found")
	}
	hist, ok := calls.Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatalf("round_tool_calls is not an int64 histogram: %T", calls.Data)
	}
	var total int64
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		total += dp.Sum
	}
	if count != 3 {
		t.Errorf("round_tool_calls count = %d, want 3", count)
	}
	if total != 7 {
		t.Errorf("round_tool_calls sum = %d, want 7", total)
	}
}
