package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apexwealth/agentgate/llm"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/resilience"
	"github.com/apexwealth/agentgate/tool"
)

// DefaultSystemPrompt steers the assistant persona when no prompt is
// configured.
const DefaultSystemPrompt = `You are an AI assistant for Apex Wealth Advisor, a premium wealth management platform.

Your role is to help financial advisors manage client portfolios, process transactions, schedule meetings, and keep CRM records current. Use the provided tools for anything that touches client data; never invent portfolio figures.

Security behaviors:
1. Clients under a compliance hold cannot be accessed; the tools will deny the request.
2. Payments of $10,000 or more require step-up authentication before they proceed.
3. Payments to unverified recipients are blocked by risk policy.
4. All tool access is secured with delegated, audience-scoped access tokens.

Be helpful, professional, and always prioritize security. When a security control blocks an action, explain why clearly.`

// toolSlotWait is how long a queued tool call may wait for a bulkhead
// slot before it fails.
const toolSlotWait = 30 * time.Second

// Config configures the Orchestrator.
type Config struct {
	// Oracle produces assistant turns. Required.
	Oracle llm.Oracle

	// Router maps tool names to backends. Required.
	Router *tool.Router

	// SystemPrompt is the persona instruction sent with every turn.
	// Default: DefaultSystemPrompt
	SystemPrompt string

	// MaxRounds caps tool-execution rounds in one turn.
	// Default: 8
	MaxRounds int

	// HistoryWindow is how many trailing conversation messages are
	// replayed to the oracle. Default: 10
	HistoryWindow int

	// MaxConcurrentTools caps tool executions in flight within a
	// round. Default: 4
	MaxConcurrentTools int

	// MaxTokens bounds each oracle response. 0 uses the oracle's
	// default.
	MaxTokens int

	// ClaimRules check narrative action claims against the turn's
	// trace. Default: DefaultClaimRules()
	ClaimRules ClaimRules

	// Observer receives logs and metrics. Default: no-op.
	Observer observe.Observer
}

// Orchestrator drives the model's tool loop for one turn at a time.
//
// Contract:
//   - Run never returns an error. Oracle failures become a
//     user-visible error narrative; per-call tool failures fold into
//     that call's result payload.
//   - Tool calls within a round execute concurrently, capped by the
//     bulkhead. Rounds themselves are sequential.
//   - Every tool invocation lands in the reply's SecurityTrace,
//     including unknown names and calls without a usable token.
type Orchestrator struct {
	config   Config
	bulkhead *resilience.Bulkhead
	mw       *observe.Middleware
	logger   observe.Logger
}

// NewOrchestrator creates an orchestrator, applying defaults.
func NewOrchestrator(config Config) (*Orchestrator, error) {
	if config.Oracle == nil {
		return nil, ErrNoOracle
	}
	if config.Router == nil {
		return nil, ErrNoRouter
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}
	if config.MaxRounds <= 0 {
		config.MaxRounds = 8
	}
	if config.HistoryWindow <= 0 {
		config.HistoryWindow = 10
	}
	if config.MaxConcurrentTools <= 0 {
		config.MaxConcurrentTools = 4
	}
	if len(config.ClaimRules.Rules) == 0 {
		config.ClaimRules = DefaultClaimRules()
	}

	mw := observe.NewMiddleware(config.Observer)
	return &Orchestrator{
		config: config,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: config.MaxConcurrentTools,
			MaxWait:       toolSlotWait,
		}),
		mw:     mw,
		logger: mw.Logger(),
	}, nil
}

// TurnRequest is one user turn plus its conversation context and
// credentials.
type TurnRequest struct {
	// Message is the user's request text.
	Message string

	// History is prior conversation context, oldest first.
	History []llm.Message

	// Tokens holds the turn's credentials. nil runs the turn with
	// every token unavailable.
	Tokens *TokenSet
}

// Reply is the outcome of one orchestrated turn.
type Reply struct {
	// Narrative is the user-facing assistant text.
	Narrative string

	// ToolsCalled lists tool names in invocation order.
	ToolsCalled []string

	// Trace is the turn's security audit trail.
	Trace *SecurityTrace

	// ClaimUnverified marks a narrative asserting an action that no
	// tool call substantiates.
	ClaimUnverified bool

	// Incomplete marks a turn cut off by the round cap.
	Incomplete bool

	// Failed marks a turn that produced no assistant output.
	Failed bool

	// Rounds is how many tool-execution rounds ran.
	Rounds int
}

// Run executes one turn: seed the conversation, loop while the model
// requests tools, then verify the narrative's claims against the
// trace.
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest) *Reply {
	tokens := req.Tokens
	if tokens == nil {
		tokens = NewTokenSet(nil, nil)
	}

	trace := &SecurityTrace{}
	reply := &Reply{Trace: trace}

	messages := trimHistory(req.History, o.config.HistoryWindow)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})

	for {
		resp, err := o.chat(ctx, messages)
		if err != nil {
			o.logger.Error(ctx, "oracle call failed",
				observe.Field{Key: "error", Value: err.Error()},
				observe.Field{Key: "rounds", Value: reply.Rounds},
			)
			reply.Failed = true
			reply.Narrative = fmt.Sprintf("I encountered an error: %v", err)
			reply.ToolsCalled = trace.ToolsCalled()
			return reply
		}

		if !resp.RequestsTools() {
			reply.Narrative = resp.Content
			break
		}

		if reply.Rounds >= o.config.MaxRounds {
			reply.Incomplete = true
			reply.Narrative = strings.TrimSpace(resp.Content)
			if reply.Narrative == "" {
				reply.Narrative = "I could not finish this request within the allowed amount of tool activity, so this answer is incomplete."
			} else {
				reply.Narrative += "\n\nNote: I reached the limit on tool activity for a single request, so this answer may be incomplete."
			}
			break
		}

		reply.Rounds++
		results := o.executeRound(ctx, resp.ToolCalls, tokens, trace)
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls},
			llm.Message{Role: llm.RoleUser, ToolResults: results},
		)
	}

	reply.ToolsCalled = trace.ToolsCalled()

	findings := o.config.ClaimRules.Unverified(reply.Narrative, func(name string) bool {
		return trace.Called(name)
	})
	if len(findings) > 0 {
		reply.ClaimUnverified = true
		reply.Narrative += "\n\n" + Caveat(findings)
		names := make([]string, len(findings))
		for i, f := range findings {
			names[i] = f.Name
		}
		o.logger.Warn(ctx, "narrative claims lack substantiating tool calls",
			observe.Field{Key: "claims", Value: strings.Join(names, ",")},
			observe.Field{Key: "rules_version", Value: o.config.ClaimRules.Version},
		)
	}

	return reply
}

// chat sends the conversation so far, with the full tool catalog.
func (o *Orchestrator) chat(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	return o.config.Oracle.Chat(ctx, llm.Request{
		System:    o.config.SystemPrompt,
		Messages:  messages,
		Tools:     o.config.Router.Definitions(),
		MaxTokens: o.config.MaxTokens,
	})
}

// executeRound runs one round's tool calls concurrently and appends
// their records to the trace in request order.
func (o *Orchestrator) executeRound(ctx context.Context, calls []llm.ToolCall, tokens *TokenSet, trace *SecurityTrace) []llm.ToolResult {
	results := make([]llm.ToolResult, len(calls))
	records := make([]TraceRecord, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i], records[i] = o.executeCall(ctx, call, tokens)
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range records {
		trace.Add(rec)
	}
	return results
}

// executeCall routes and runs a single tool call. Failures of any
// kind come back as an error result for the model, never as a Go
// error.
func (o *Orchestrator) executeCall(ctx context.Context, call llm.ToolCall, tokens *TokenSet) (result llm.ToolResult, rec TraceRecord) {
	start := time.Now()
	rec = TraceRecord{Tool: call.Name, At: start}

	defer func() {
		rec.ElapsedMS = time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			payload := map[string]any{
				"error":   "tool_panic",
				"message": fmt.Sprintf("tool %s failed: %v", call.Name, r),
			}
			rec.Error = "tool_panic"
			rec.Result = payload
			result = errorResult(call.ID, payload)
			o.logger.Error(ctx, "tool call panicked",
				observe.Field{Key: "tool", Value: call.Name},
				observe.Field{Key: "panic", Value: fmt.Sprint(r)},
			)
		}
	}()

	route, err := o.config.Router.Resolve(call.Name)
	if err != nil {
		rec.Flow = tool.FlowUnknown.String()
		rec.Error = "unknown_tool"
		payload := map[string]any{
			"error":   "unknown_tool",
			"message": fmt.Sprintf("no tool named %q is available", call.Name),
		}
		rec.Result = payload
		o.logger.Warn(ctx, "model requested unknown tool",
			observe.Field{Key: "tool", Value: call.Name},
		)
		return errorResult(call.ID, payload), rec
	}

	rec.Flow = route.Flow.String()
	rec.AudienceKey = route.AudienceKey
	rec.Connection = route.Connection

	tok := tokens.ForRoute(ctx, route)
	_, present := tok.Bearer()
	rec.TokenPresent = present

	var payload map[string]any
	meta := observe.OpMeta{
		Kind:       observe.KindTool,
		Name:       call.Name,
		Audience:   route.AudienceKey,
		Connection: route.Connection,
	}
	err = o.mw.Instrument(ctx, meta, func(ctx context.Context) error {
		return o.bulkhead.Execute(ctx, func(ctx context.Context) error {
			var callErr error
			payload, callErr = route.Backend.Call(ctx, call.Name, call.Input, tok)
			return callErr
		})
	})
	if err != nil {
		rec.Error = "tool_failed"
		payload = map[string]any{
			"error":   "tool_failed",
			"message": err.Error(),
		}
		rec.Result = payload
		return errorResult(call.ID, payload), rec
	}

	rec.Result = payload
	return llm.ToolResult{ToolUseID: call.ID, Content: encodeResult(payload)}, rec
}

// errorResult packages a failure payload as a tool result the model
// can react to.
func errorResult(toolUseID string, payload map[string]any) llm.ToolResult {
	return llm.ToolResult{
		ToolUseID: toolUseID,
		Content:   encodeResult(payload),
		IsError:   true,
	}
}

// encodeResult renders a result payload as JSON for the model.
func encodeResult(payload map[string]any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"error":"encoding_failed","message":%q}`, err.Error())
	}
	return string(data)
}

// trimHistory keeps the most recent window of conversation context.
// The returned slice has room to grow without aliasing the caller's.
func trimHistory(history []llm.Message, window int) []llm.Message {
	if len(history) > window {
		history = history[len(history)-window:]
	}
	return append(make([]llm.Message, 0, len(history)+1), history...)
}
