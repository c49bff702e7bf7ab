package health

import (
	"context"
	"time"
)

// Status is a component health state. Values order by severity, so
// the worst status in a set is the largest.
type Status int

const (
	// StatusHealthy means the component is fully operational.
	StatusHealthy Status = iota
	// StatusDegraded means the component works with reduced
	// capability, such as a backend serving fixtures instead of live
	// data.
	StatusDegraded
	// StatusUnhealthy means the component cannot do its job.
	StatusUnhealthy
)

// String returns the lowercase wire form of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is one check's outcome.
type Result struct {
	Status    Status
	Message   string
	Details   map[string]any
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

// Healthy builds a healthy result.
func Healthy(message string) Result {
	return Result{
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded builds a degraded result.
func Degraded(message string) Result {
	return Result{
		Status:    StatusDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy builds an unhealthy result carrying the causing error.
func Unhealthy(message string, err error) Result {
	return Result{
		Status:    StatusUnhealthy,
		Message:   message,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// WithDetails attaches metadata to the result. Details surface on the
// status endpoints, so they carry identifiers and flags, never
// secrets.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration records how long the check ran.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// Checker reports one component's health.
type Checker interface {
	// Name identifies the component in aggregate results.
	Name() string

	// Check runs the health check. Implementations honor ctx; the
	// aggregator abandons checks that outlive its deadline.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function into a named Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc wraps fn as a Checker under the given name.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name identifies the component.
func (f *CheckerFunc) Name() string { return f.name }

// Check runs the wrapped function.
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }
