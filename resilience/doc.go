// Package resilience bounds the outbound calls made during token
// exchange and tool execution.
//
// Three patterns are provided:
//
//   - Retry: re-attempts operations whose failure is classified as
//     transient (timeouts, 5xx) with exponential backoff and jitter.
//     Denials are never retried.
//
//   - WithTimeout: runs an operation under a derived deadline so no
//     exchange or backend call waits indefinitely.
//
//   - Bulkhead: caps the number of tool executions running
//     concurrently within one orchestration round.
//
// Transience is an error property, not a pattern configuration: error
// types implementing `Transient() bool` (or wrapping ErrTimeout)
// opt in to retries.
package resilience
