package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrBulkheadFull is returned when no execution slot is available.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")
)

// IsTransient reports whether err represents a transient failure that
// is safe to retry. An error is transient when it wraps ErrTimeout or
// when any error in its chain implements `Transient() bool` returning
// true. Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}
