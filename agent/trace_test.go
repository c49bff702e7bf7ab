package agent

import (
	"testing"
	"time"
)

// TestSecurityTrace_Accumulation verifies ordering, lookup, and copy
// semantics of the audit trail.
func TestSecurityTrace_Accumulation(t *testing.T) {
	trace := &SecurityTrace{}
	if trace.Len() != 0 || trace.ToolsCalled() != nil {
		t.Fatal("new trace should be empty")
	}

	trace.Add(TraceRecord{Tool: "get_client", Flow: "cross_app", TokenPresent: true, At: time.Now()})
	trace.Add(TraceRecord{Tool: "create_calendar_event", Flow: "cross_app_vault", At: time.Now()})
	trace.Add(TraceRecord{Tool: "get_client", Flow: "cross_app", At: time.Now()})

	if trace.Len() != 3 {
		t.Fatalf("len = %d, want 3", trace.Len())
	}

	got := trace.ToolsCalled()
	want := []string{"get_client", "create_calendar_event", "get_client"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tools = %v, want %v", got, want)
		}
	}

	if !trace.Called("create_calendar_event") {
		t.Fatal("Called should find the recorded tool")
	}
	if !trace.Called("process_payment", "get_client") {
		t.Fatal("Called should match any of the names")
	}
	if trace.Called("process_payment") {
		t.Fatal("Called should not find an unrecorded tool")
	}

	recs := trace.Records()
	recs[0].Tool = "mutated"
	if trace.Records()[0].Tool != "get_client" {
		t.Fatal("Records must return a copy")
	}
}
