// Package scope derives the minimal access scope an agent task needs.
//
// Classification is deliberately conservative: unless the task text
// matches a known write-intent keyword, the task is classified as
// read-only. The keyword table is an explicit, versioned ruleset so
// tests can enumerate every rule.
package scope

import "strings"

// Scope is the capability class requested for a delegated token.
type Scope int

const (
	// Read grants read-only access. This is the default for any task
	// that does not clearly express write intent.
	Read Scope = iota

	// Write grants read and write access.
	Write
)

// String returns "read" or "write".
func (s Scope) String() string {
	if s == Write {
		return "write"
	}
	return "read"
}

// GrantString returns the OAuth scope parameter to request for this
// classification. Write implies read.
func (s Scope) GrantString() string {
	if s == Write {
		return "read_data write_data"
	}
	return "read_data"
}

// Rule maps one lowercase keyword to the scope its presence implies.
type Rule struct {
	Keyword string
	Grants  Scope
}

// Ruleset is an ordered, versioned keyword table.
type Ruleset struct {
	// Version identifies the table revision for audit output.
	Version string

	// Rules are evaluated in order; the first match wins.
	Rules []Rule
}

// DefaultRuleset returns the built-in write-intent keyword table.
func DefaultRuleset() Ruleset {
	return Ruleset{
		Version: "2025-06-01",
		Rules: []Rule{
			{Keyword: "schedule", Grants: Write},
			{Keyword: "reschedule", Grants: Write},
			{Keyword: "create", Grants: Write},
			{Keyword: "cancel", Grants: Write},
			{Keyword: "pay", Grants: Write},
			{Keyword: "payment", Grants: Write},
			{Keyword: "transfer", Grants: Write},
			{Keyword: "wire", Grants: Write},
			{Keyword: "update", Grants: Write},
			{Keyword: "log", Grants: Write},
			{Keyword: "send", Grants: Write},
			{Keyword: "add", Grants: Write},
			{Keyword: "remove", Grants: Write},
			{Keyword: "delete", Grants: Write},
			{Keyword: "book", Grants: Write},
			{Keyword: "process", Grants: Write},
			{Keyword: "execute", Grants: Write},
			{Keyword: "approve", Grants: Write},
		},
	}
}

// Classifier classifies task text against a ruleset.
//
// Contract:
// - Purity: no state, no external calls; same input yields same output.
// - Totality: every input classifies, including the empty string.
// - Concurrency: safe for concurrent use.
type Classifier struct {
	ruleset Ruleset
}

// NewClassifier creates a classifier. An empty ruleset falls back to
// DefaultRuleset.
func NewClassifier(ruleset Ruleset) *Classifier {
	if len(ruleset.Rules) == 0 {
		ruleset = DefaultRuleset()
	}
	return &Classifier{ruleset: ruleset}
}

// Classify returns the minimal scope the task text requires.
// Matching is case-insensitive; absent any match the result is Read.
func (c *Classifier) Classify(taskText string) Scope {
	text := strings.ToLower(taskText)
	for _, rule := range c.ruleset.Rules {
		if strings.Contains(text, rule.Keyword) {
			return rule.Grants
		}
	}
	return Read
}

// Ruleset returns the table the classifier was built with.
func (c *Classifier) Ruleset() Ruleset {
	return c.ruleset
}
