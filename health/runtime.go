package health

import (
	"context"
	"fmt"
	"runtime"
)

// RuntimeCheckerConfig bounds the process metrics the runtime checker
// inspects.
type RuntimeCheckerConfig struct {
	// GoroutineWarn and GoroutineCritical are goroutine-count
	// thresholds. Each turn fans out per tool call, so a runaway
	// count usually means stuck backends. Defaults: 1000 and 10x the
	// warning threshold.
	GoroutineWarn     int
	GoroutineCritical int

	// HeapWarn and HeapCritical are heap-allocation thresholds in
	// bytes. Zero disables the heap gate.
	HeapWarn     uint64
	HeapCritical uint64
}

// RuntimeChecker reports process-level health from goroutine and heap
// readings.
type RuntimeChecker struct {
	config RuntimeCheckerConfig
}

// NewRuntimeChecker creates a runtime checker.
func NewRuntimeChecker(config RuntimeCheckerConfig) *RuntimeChecker {
	if config.GoroutineWarn <= 0 {
		config.GoroutineWarn = 1000
	}
	if config.GoroutineCritical <= config.GoroutineWarn {
		config.GoroutineCritical = 10 * config.GoroutineWarn
	}
	if config.HeapWarn > 0 && config.HeapCritical <= config.HeapWarn {
		config.HeapCritical = 2 * config.HeapWarn
	}
	return &RuntimeChecker{config: config}
}

// Name identifies the checker.
func (c *RuntimeChecker) Name() string { return "runtime" }

// Check reads the current goroutine count and heap stats and grades
// them against the configured thresholds, worst gate first.
func (c *RuntimeChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("check cancelled", ctx.Err())
	default:
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	goroutines := runtime.NumGoroutine()

	details := map[string]any{
		"goroutines": goroutines,
		"heap_alloc": stats.HeapAlloc,
		"heap_sys":   stats.HeapSys,
		"gc_cycles":  stats.NumGC,
	}

	switch {
	case goroutines >= c.config.GoroutineCritical:
		return Unhealthy(fmt.Sprintf("%d goroutines", goroutines), ErrCheckFailed).WithDetails(details)
	case c.config.HeapCritical > 0 && stats.HeapAlloc >= c.config.HeapCritical:
		return Unhealthy(fmt.Sprintf("heap at %d MiB", stats.HeapAlloc>>20), ErrCheckFailed).WithDetails(details)
	case goroutines >= c.config.GoroutineWarn:
		return Degraded(fmt.Sprintf("%d goroutines", goroutines)).WithDetails(details)
	case c.config.HeapWarn > 0 && stats.HeapAlloc >= c.config.HeapWarn:
		return Degraded(fmt.Sprintf("heap at %d MiB", stats.HeapAlloc>>20)).WithDetails(details)
	}
	return Healthy("runtime normal").WithDetails(details)
}
