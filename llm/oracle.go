package llm

import (
	"context"

	"github.com/apexwealth/agentgate/tool"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Stop reasons.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// Message is one chat turn. Exactly one of Content, ToolCalls, or
// ToolResults carries the payload; assistant tool-call turns may pair
// Content with ToolCalls.
type Message struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the text content.
	Content string

	// ToolCalls holds the tool invocations of an assistant turn.
	ToolCalls []ToolCall

	// ToolResults holds the results fed back in a user turn.
	ToolResults []ToolResult
}

// ToolCall is one tool invocation requested by the oracle.
type ToolCall struct {
	// ID correlates the call with its result.
	ID string

	// Name is the tool name to invoke.
	Name string

	// Input is the tool's arguments.
	Input map[string]any
}

// ToolResult is one executed tool outcome fed back to the oracle.
type ToolResult struct {
	// ToolUseID is the ID of the call this result answers.
	ToolUseID string

	// Content is the JSON-encoded result payload.
	Content string

	// IsError marks results the oracle should treat as failures.
	IsError bool
}

// Request is one oracle round.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation so far.
	Messages []Message

	// Tools is the catalog the oracle may call.
	Tools []tool.Definition

	// MaxTokens bounds the response length. Zero uses the client
	// default.
	MaxTokens int
}

// Response is the oracle's reply for one round.
type Response struct {
	// Content is the concatenated text content.
	Content string

	// Model is the model that produced the reply.
	Model string

	// StopReason is why generation stopped, e.g. "end_turn" or
	// "tool_use".
	StopReason string

	// ToolCalls holds requested tool invocations, if any.
	ToolCalls []ToolCall

	// InputTokens and OutputTokens report usage.
	InputTokens  int
	OutputTokens int
}

// RequestsTools reports whether the oracle wants tools executed before
// it can finish.
func (r *Response) RequestsTools() bool {
	return r.StopReason == StopToolUse && len(r.ToolCalls) > 0
}

// Oracle is the language model behind the agent loop.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Chat honors cancellation and deadlines.
// - Errors: transport and API failures are Go errors; the orchestrator
//   treats any Chat error as fatal for the turn.
type Oracle interface {
	// Name identifies the oracle in traces and logs.
	Name() string

	// Chat runs one round against the model.
	Chat(ctx context.Context, req Request) (*Response, error)
}
