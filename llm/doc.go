// Package llm abstracts the language model oracle driving the agent
// loop.
//
// Oracle is the narrow interface the orchestrator consumes: one Chat
// call per round, with tool definitions attached and tool calls and
// results carried as typed message parts. AnthropicClient implements
// it over the Messages API with retry on throttling and server errors.
package llm
