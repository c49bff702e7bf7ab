// Package agent runs advisory turns end to end: it classifies the
// request into a scope, mints the per-audience grants, drives the
// model's tool loop through the security router, and audits every
// tool invocation into a per-turn trace. Narrative claims of completed
// actions are checked against that trace before the reply goes out.
package agent
