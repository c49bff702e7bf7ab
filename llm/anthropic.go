package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/resilience"
)

const (
	defaultMessagesURL = "https://api.anthropic.com/v1/messages"
	apiVersion         = "2023-06-01"
	defaultModel       = "claude-sonnet-4-20250514"
	defaultMaxTokens   = 1024
)

// Config configures the Anthropic oracle client.
type Config struct {
	// APIKey authenticates to the API. Required.
	APIKey string

	// Model is the model to use.
	// Default: claude-sonnet-4-20250514
	Model string

	// BaseURL overrides the messages endpoint, for tests and proxies.
	BaseURL string

	// MaxTokens bounds response length when the request does not.
	// Default: 1024
	MaxTokens int

	// Timeout bounds each API call.
	// Default: 2m
	Timeout time.Duration

	// Retry controls retry behavior for throttling and server errors.
	Retry resilience.RetryConfig

	// HTTPClient is the HTTP client for API calls.
	HTTPClient *http.Client

	// Observer instruments the calls. Default: no-op.
	Observer observe.Observer
}

// AnthropicClient is the production Oracle over the Messages API.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: throttling and 5xx retry within the budget; other API
//   errors return *APIError immediately.
type AnthropicClient struct {
	config     Config
	httpClient *http.Client
	retry      *resilience.Retry
	mw         *observe.Middleware
}

var _ Oracle = (*AnthropicClient)(nil)

// NewAnthropicClient creates a client from the given configuration.
func NewAnthropicClient(config Config) *AnthropicClient {
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultMessagesURL
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultMaxTokens
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Retry.Classify == nil {
		config.Retry.Classify = func(err error) bool {
			return errors.Is(err, ErrUnreachable) || resilience.IsTransient(err)
		}
	}

	return &AnthropicClient{
		config:     config,
		httpClient: config.HTTPClient,
		retry:      resilience.NewRetry(config.Retry),
		mw:         observe.NewMiddleware(config.Observer),
	}
}

// Name returns the oracle name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Configured reports whether an API key is present.
func (c *AnthropicClient) Configured() bool {
	return c.config.APIKey != ""
}

// chatRequest is the Messages API request body.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Tools     []wireTool    `json:"tools,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// wireBlock is one content block, in either direction.
type wireBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

// chatResponse is the Messages API response body.
type chatResponse struct {
	Model      string      `json:"model"`
	StopReason string      `json:"stop_reason"`
	Content    []wireBlock `json:"content"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat runs one round against the Messages API.
func (c *AnthropicClient) Chat(ctx context.Context, req Request) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	var out *Response
	meta := observe.OpMeta{Kind: observe.KindOracle, Name: "chat"}
	err = c.mw.Instrument(ctx, meta, func(ctx context.Context) error {
		return c.retry.Execute(ctx, func(ctx context.Context) error {
			return resilience.WithTimeout(ctx, c.config.Timeout, func(ctx context.Context) error {
				resp, err := c.post(ctx, body)
				if err != nil {
					return err
				}
				out = resp
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// buildRequest converts a Request to the wire shape, expanding tool
// calls and tool results into content blocks.
func (c *AnthropicClient) buildRequest(req Request) chatRequest {
	messages := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch {
		case len(m.ToolResults) > 0:
			blocks := make([]wireBlock, 0, len(m.ToolResults))
			for _, tr := range m.ToolResults {
				blocks = append(blocks, wireBlock{
					Type:      "tool_result",
					ToolUseID: tr.ToolUseID,
					Content:   tr.Content,
					IsError:   tr.IsError,
				})
			}
			messages = append(messages, wireMessage{Role: RoleUser, Content: blocks})

		case m.Role == RoleAssistant && len(m.ToolCalls) > 0:
			blocks := make([]wireBlock, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, wireBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, wireBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Input,
				})
			}
			messages = append(messages, wireMessage{Role: RoleAssistant, Content: blocks})

		default:
			messages = append(messages, wireMessage{Role: m.Role, Content: m.Content})
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}

	wire := chatRequest{
		Model:     c.config.Model,
		Messages:  messages,
		MaxTokens: maxTokens,
		System:    req.System,
	}
	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, wireTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return wire
}

// post runs one API call and maps failures onto *APIError.
func (c *AnthropicClient) post(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		var parsed apiErrorBody
		if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error.Message != "" {
			apiErr.Type = parsed.Error.Type
			apiErr.Message = parsed.Error.Message
		} else {
			apiErr.Message = string(respBody)
		}
		return nil, apiErr
	}

	var wire chatResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}

	out := &Response{
		Model:        wire.Model,
		StopReason:   wire.StopReason,
		InputTokens:  wire.Usage.InputTokens,
		OutputTokens: wire.Usage.OutputTokens,
	}
	for _, block := range wire.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}
	return out, nil
}
