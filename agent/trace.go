package agent

import "time"

// TraceRecord captures one tool invocation in a turn. It records
// token presence only; raw token material never enters the trace.
type TraceRecord struct {
	// Tool is the tool name the model requested.
	Tool string `json:"tool"`

	// Flow is the resolved security flow, or "unknown" when the name
	// did not route.
	Flow string `json:"flow"`

	// AudienceKey is the audience the call routed to, when any.
	AudienceKey string `json:"audience_key,omitempty"`

	// Connection is the federated connection involved, when any.
	Connection string `json:"connection,omitempty"`

	// TokenPresent reports whether a usable token backed the call.
	TokenPresent bool `json:"token_present"`

	// Result is the structured payload handed back to the model.
	Result map[string]any `json:"result,omitempty"`

	// Error labels calls that did not execute cleanly.
	Error string `json:"error,omitempty"`

	// At is when the call started.
	At time.Time `json:"at"`

	// ElapsedMS is how long the call took.
	ElapsedMS int64 `json:"elapsed_ms"`
}

// SecurityTrace is the audit trail of one turn's tool activity. The
// orchestrator appends between rounds; it is not safe for concurrent
// mutation.
type SecurityTrace struct {
	records []TraceRecord
}

// Add appends a record.
func (t *SecurityTrace) Add(rec TraceRecord) {
	t.records = append(t.records, rec)
}

// Records returns the records in invocation order.
func (t *SecurityTrace) Records() []TraceRecord {
	out := make([]TraceRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Called reports whether any of the named tools ran this turn.
func (t *SecurityTrace) Called(names ...string) bool {
	for _, rec := range t.records {
		for _, name := range names {
			if rec.Tool == name {
				return true
			}
		}
	}
	return false
}

// ToolsCalled lists tool names in invocation order, repeats included.
func (t *SecurityTrace) ToolsCalled() []string {
	if len(t.records) == 0 {
		return nil
	}
	out := make([]string, len(t.records))
	for i, rec := range t.records {
		out[i] = rec.Tool
	}
	return out
}

// Len returns the number of recorded calls.
func (t *SecurityTrace) Len() int {
	return len(t.records)
}
