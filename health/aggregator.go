package health

import (
	"context"
	"sync"
	"time"
)

const defaultCheckTimeout = 10 * time.Second

// AggregatorConfig configures the aggregator.
type AggregatorConfig struct {
	// Timeout bounds one CheckAll pass across all checkers.
	Timeout time.Duration
}

// Aggregator fans registered checks out in parallel and folds their
// results worst-wins into one overall status.
type Aggregator struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates an aggregator.
func NewAggregator(config AggregatorConfig) *Aggregator {
	if config.Timeout <= 0 {
		config.Timeout = defaultCheckTimeout
	}
	return &Aggregator{
		timeout:  config.Timeout,
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker under the given name. Re-registering a name
// replaces the checker and keeps its original position.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// CheckerNames returns the registered names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.order...)
}

// Check runs the single named check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.runCheck(ctx, checker), nil
}

// CheckAll runs every registered check in parallel and returns the
// results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	names := append([]string(nil), a.order...)
	checkers := make([]Checker, 0, len(names))
	for _, name := range names {
		checkers = append(checkers, a.checkers[name])
	}
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]Result, len(checkers))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, checker Checker) {
			defer wg.Done()
			results[i] = a.runCheck(ctx, checker)
		}(i, checker)
	}
	wg.Wait()

	out := make(map[string]Result, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

// OverallStatus folds results worst-wins. An empty set is healthy.
func (a *Aggregator) OverallStatus(results map[string]Result) Status {
	worst := StatusHealthy
	for _, r := range results {
		if r.Status > worst {
			worst = r.Status
		}
	}
	return worst
}

// runCheck runs one check, stamping duration and abandoning checks
// that outlive the deadline.
func (a *Aggregator) runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)

	go func() {
		done <- checker.Check(ctx)
	}()

	select {
	case r := <-done:
		if r.Timestamp.IsZero() {
			r.Timestamp = start
		}
		return r.WithDuration(time.Since(start))
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check abandoned at deadline",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}
