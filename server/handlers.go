package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/apexwealth/agentgate/health"
	"github.com/apexwealth/agentgate/identity"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/token"
)

const healthTimeout = 10 * time.Second

// handleRoot serves the service banner at exactly "/".
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": serviceName,
		"version": s.config.Version,
		"status":  "running",
	})
}

// handleHealth serves the aggregator summary: overall status plus a
// per-service boolean. Degraded services still count as up; the
// readiness probe is the strict view.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	results := s.config.Health.CheckAll(ctx)
	services := make(map[string]bool, len(results))
	for name, result := range results {
		services[name] = result.Status != health.StatusUnhealthy
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    s.config.Health.OverallStatus(results).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}

// handleTools serves the router's tool catalog.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": s.config.Router.Definitions(),
		"count": s.config.Router.Len(),
	})
}

type toolCallRequest struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// handleToolCall resolves a tool by name and invokes its backend
// directly, handing it the request's bearer as-is. The orchestrated
// chat path derives tokens per flow; this endpoint trusts the caller
// to supply the right one.
func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req toolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	route, err := s.config.Router.Resolve(req.ToolName)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var tok token.Token
	if toks := identity.TokensFromContext(r.Context()); toks.AccessToken != "" {
		tok = token.Available(toks.AccessToken, time.Time{})
	}

	result, err := route.Backend.Call(r.Context(), req.ToolName, req.Arguments, tok)
	if err != nil {
		s.logger.Error(r.Context(), "direct tool call failed",
			observe.Field{Key: "tool", Value: req.ToolName},
			observe.Field{Key: "error", Value: err.Error()},
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
