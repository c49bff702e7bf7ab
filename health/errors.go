package health

import "errors"

// Sentinel errors for the health package.
var (
	// ErrCheckFailed marks a check that ran and found the component
	// unusable.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout marks a check abandoned at the aggregator's
	// deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates no checker is registered under the
	// requested name.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
