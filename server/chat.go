package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/apexwealth/agentgate/agent"
	"github.com/apexwealth/agentgate/identity"
	"github.com/apexwealth/agentgate/llm"
	"github.com/apexwealth/agentgate/observe"
)

// Agent types reported to the frontend.
const (
	agentTypeAdvisor = "Wealth Advisor (Buffett)"
	agentTypeError   = "Error"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages  []chatMessage `json:"messages"`
	SessionID string        `json:"session_id"`
}

// callRecord is the wire view of one trace record: routing facts and
// token presence, never payloads or token material.
type callRecord struct {
	Tool         string `json:"tool"`
	Flow         string `json:"flow"`
	AudienceKey  string `json:"audience_key,omitempty"`
	Connection   string `json:"connection,omitempty"`
	TokenPresent bool   `json:"token_present"`
	Error        string `json:"error,omitempty"`
	ElapsedMS    int64  `json:"elapsed_ms"`
}

type securityInfo struct {
	Scope           string       `json:"scope"`
	Rounds          int          `json:"rounds"`
	ClaimUnverified bool         `json:"claim_unverified"`
	Incomplete      bool         `json:"incomplete,omitempty"`
	Records         []callRecord `json:"records,omitempty"`
}

type tokenInfo struct {
	HasIDToken      bool  `json:"has_id_token"`
	HasAccessToken  bool  `json:"has_access_token"`
	AccessExpiresIn int64 `json:"access_expires_in,omitempty"`
}

type chatResponse struct {
	TurnID      string       `json:"turn_id"`
	Content     string       `json:"content"`
	AgentType   string       `json:"agent_type"`
	ToolsCalled []string     `json:"tools_called,omitempty"`
	Security    securityInfo `json:"security"`
	TokenInfo   tokenInfo    `json:"token_info"`
}

// handleChat runs one full advisory turn. The last message is the
// request; earlier messages are history. A missing or rejected
// identity assertion degrades the turn to anonymous instead of
// failing the request.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	toks := identity.TokensFromContext(ctx)

	var assertion identity.Assertion
	if toks.IDToken != "" && s.config.Verifier != nil {
		verified, err := s.config.Verifier.Verify(ctx, toks.IDToken)
		if err != nil {
			s.logger.Warn(ctx, "identity assertion rejected, running anonymous turn",
				observe.Field{Key: "error", Value: err.Error()},
			)
		} else {
			assertion = verified
		}
	}

	message, history := splitMessages(req.Messages)
	s.logger.Info(ctx, "chat turn",
		observe.Field{Key: "messages", Value: len(req.Messages)},
		observe.Field{Key: "session_id", Value: req.SessionID},
		observe.Field{Key: "authenticated", Value: assertion.Valid()},
	)

	result := s.config.Service.HandleTurn(ctx, agent.TurnInput{
		Message:   message,
		History:   history,
		Assertion: assertion,
	})
	writeJSON(w, http.StatusOK, buildChatResponse(result, toks))
}

// splitMessages peels the final message off as the turn's request and
// maps the rest to history.
func splitMessages(messages []chatMessage) (string, []llm.Message) {
	if len(messages) == 0 {
		return "", nil
	}

	last := messages[len(messages)-1]
	var history []llm.Message
	for _, m := range messages[:len(messages)-1] {
		role := llm.RoleUser
		if m.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}
	return last.Content, history
}

func buildChatResponse(result *agent.TurnResult, toks identity.Tokens) chatResponse {
	reply := result.Reply

	agentType := agentTypeAdvisor
	if reply.Failed {
		agentType = agentTypeError
	}

	records := reply.Trace.Records()
	wire := make([]callRecord, len(records))
	for i, rec := range records {
		wire[i] = callRecord{
			Tool:         rec.Tool,
			Flow:         rec.Flow,
			AudienceKey:  rec.AudienceKey,
			Connection:   rec.Connection,
			TokenPresent: rec.TokenPresent,
			Error:        rec.Error,
			ElapsedMS:    rec.ElapsedMS,
		}
	}

	info := tokenInfo{HasIDToken: toks.IDToken != ""}
	var earliest time.Time
	for _, grant := range result.Grants {
		if !grant.Ok() {
			continue
		}
		info.HasAccessToken = true
		exp := grant.Token.ExpiresAt()
		if !exp.IsZero() && (earliest.IsZero() || exp.Before(earliest)) {
			earliest = exp
		}
	}
	if !earliest.IsZero() {
		if secs := int64(time.Until(earliest).Seconds()); secs > 0 {
			info.AccessExpiresIn = secs
		}
	}

	return chatResponse{
		TurnID:      result.TurnID,
		Content:     reply.Narrative,
		AgentType:   agentType,
		ToolsCalled: reply.ToolsCalled,
		Security: securityInfo{
			Scope:           result.Scope.String(),
			Rounds:          reply.Rounds,
			ClaimUnverified: reply.ClaimUnverified,
			Incomplete:      reply.Incomplete,
			Records:         wire,
		},
		TokenInfo: info,
	}
}
