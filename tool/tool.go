package tool

import (
	"context"

	"github.com/apexwealth/agentgate/token"
)

// Definition describes one callable tool in the catalog handed to the
// oracle.
type Definition struct {
	// Name is the unique tool name.
	Name string `json:"name"`

	// Description tells the oracle what the tool does and when to use
	// it.
	Description string `json:"description"`

	// InputSchema is the JSON schema for the tool's arguments.
	InputSchema map[string]any `json:"input_schema"`
}

// Backend executes tools against one downstream system.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent Call use.
// - Errors: a Go error means the call could not be executed (unknown
//   tool, rejected token, transport failure). Business-rule denials
//   (compliance hold, step-up required, blocked recipient) are result
//   payloads with status discriminators, never Go errors.
type Backend interface {
	// Name identifies the backend in traces and logs.
	Name() string

	// Tools returns the backend's tool catalog.
	Tools() []Definition

	// Call executes one tool with the access token resolved for this
	// backend's flow. The token may be unavailable; backends decide
	// whether the tool can still serve (fixtures) or must refuse.
	Call(ctx context.Context, name string, args map[string]any, tok token.Token) (map[string]any, error)
}
