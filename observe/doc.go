// Package observe provides the telemetry layer: structured logging
// with credential redaction, OpenTelemetry tracing, and metrics for
// token exchanges and tool executions.
package observe
