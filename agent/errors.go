package agent

import "errors"

var (
	// ErrNoOracle reports an orchestrator built without a model
	// oracle.
	ErrNoOracle = errors.New("agent: oracle required")

	// ErrNoRouter reports an orchestrator built without a tool
	// router.
	ErrNoRouter = errors.New("agent: router required")

	// ErrNoOrchestrator reports a service built without an
	// orchestrator.
	ErrNoOrchestrator = errors.New("agent: orchestrator required")
)
