package agent

import (
	"regexp"
	"strings"
)

// ClaimRule ties a narrative pattern to the tool calls that would
// substantiate it. A match with none of its tools in the trace is an
// unverified claim.
type ClaimRule struct {
	// Name labels the claim in caveats and audit output.
	Name string

	// Pattern matches narrative text asserting the action happened.
	Pattern *regexp.Regexp

	// Tools lists the calls that substantiate the claim. Any one
	// suffices.
	Tools []string
}

// ClaimRules is a versioned, ordered table of claim checks. Rules are
// evaluated in order; every matching rule is checked.
type ClaimRules struct {
	// Version identifies the table revision for audit output.
	Version string

	// Rules are the checks, in evaluation order.
	Rules []ClaimRule
}

// DefaultClaimRules returns the 2025-06-01 revision of the claim
// table. It covers the actions the tool catalog can perform: calendar
// scheduling and cancellation, payments, and CRM writes.
func DefaultClaimRules() ClaimRules {
	return ClaimRules{
		Version: "2025-06-01",
		Rules: []ClaimRule{
			{
				Name:    "event scheduled",
				Pattern: regexp.MustCompile(`(?i)\bsuccessfully scheduled\b`),
				Tools:   []string{"create_calendar_event"},
			},
			{
				Name:    "event created",
				Pattern: regexp.MustCompile(`(?i)\b(event|meeting|appointment)\b[^.!?]*\b(created|booked|added to (the|your) calendar)\b`),
				Tools:   []string{"create_calendar_event"},
			},
			{
				Name:    "event cancelled",
				Pattern: regexp.MustCompile(`(?i)\bhas been cancel{1,2}ed\b`),
				Tools:   []string{"cancel_calendar_event"},
			},
			{
				Name:    "payment processed",
				Pattern: regexp.MustCompile(`(?i)\b(payment|transfer|wire)\b[^.!?]*\b(processed|completed|sent|initiated)\b`),
				Tools:   []string{"process_payment"},
			},
			{
				Name:    "opportunity updated",
				Pattern: regexp.MustCompile(`(?i)\bopportunity\b[^.!?]*\b(updated|moved|advanced)\b`),
				Tools:   []string{"update_opportunity_stage"},
			},
			{
				Name:    "contact created",
				Pattern: regexp.MustCompile(`(?i)\bcontact\b[^.!?]*\b(created|added)\b`),
				Tools:   []string{"create_crm_contact"},
			},
			{
				Name:    "task created",
				Pattern: regexp.MustCompile(`(?i)\btask\b[^.!?]*\b(created|added)\b`),
				Tools:   []string{"create_crm_task"},
			},
			{
				Name:    "note added",
				Pattern: regexp.MustCompile(`(?i)\bnote\b[^.!?]*\b(added|logged|saved)\b`),
				Tools:   []string{"add_crm_note"},
			},
		},
	}
}

// Unverified returns the rules whose pattern matches the narrative
// but whose substantiating tools never ran. called reports whether a
// tool ran this turn.
func (r ClaimRules) Unverified(narrative string, called func(tool string) bool) []ClaimRule {
	var findings []ClaimRule
	for _, rule := range r.Rules {
		if !rule.Pattern.MatchString(narrative) {
			continue
		}
		substantiated := false
		for _, tool := range rule.Tools {
			if called(tool) {
				substantiated = true
				break
			}
		}
		if !substantiated {
			findings = append(findings, rule)
		}
	}
	return findings
}

// Caveat renders the warning appended to a narrative whose claims
// could not be substantiated by the turn's tool activity.
func Caveat(findings []ClaimRule) string {
	if len(findings) == 0 {
		return ""
	}
	names := make([]string, len(findings))
	for i, f := range findings {
		names[i] = f.Name
	}
	return "Note: I could not confirm the following against this turn's tool activity: " +
		strings.Join(names, ", ") + ". Please verify before relying on it."
}
