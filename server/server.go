package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/apexwealth/agentgate/agent"
	"github.com/apexwealth/agentgate/health"
	"github.com/apexwealth/agentgate/identity"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/tool"
)

const serviceName = "Apex Wealth Advisor API"

const defaultVersion = "1.0.0"

// Checker names the status routes are mounted for.
const (
	xaaCheckName   = "cross_app_access"
	vaultCheckName = "token_vault"
)

// Config wires the HTTP surface.
type Config struct {
	// Service runs chat turns. Required.
	Service *agent.Service

	// Router resolves the tool catalog. Required.
	Router *tool.Router

	// Verifier validates inbound identity assertions. Optional; when
	// nil every chat turn runs anonymously.
	Verifier *identity.Verifier

	// Health aggregates component checkers for the status endpoints.
	// Default: an empty aggregator.
	Health *health.Aggregator

	// Version is reported by the service banner. Default "1.0.0".
	Version string

	// AllowedOrigins is the CORS allowlist. Empty disables CORS
	// headers entirely.
	AllowedOrigins []string

	// Observer receives logs and metrics. Default: no-op.
	Observer observe.Observer
}

// Server is the HTTP API. It implements http.Handler.
//
// Contract:
//   - Responses are JSON on every route but the plain-text probes.
//   - Error payloads are {"error": message}; messages never carry
//     token material.
//   - Preflight requests are answered before routing.
type Server struct {
	config Config
	mux    *http.ServeMux
	logger observe.Logger
}

// New creates the server, applying defaults and mounting routes.
func New(config Config) (*Server, error) {
	if config.Service == nil {
		return nil, ErrNoService
	}
	if config.Router == nil {
		return nil, ErrNoRouter
	}
	if config.Health == nil {
		config.Health = health.NewAggregator(health.AggregatorConfig{})
	}
	if config.Version == "" {
		config.Version = defaultVersion
	}

	mw := observe.NewMiddleware(config.Observer)
	s := &Server{config: config, mux: http.NewServeMux(), logger: mw.Logger()}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/healthz", health.LivenessHandler())
	s.mux.HandleFunc("/readyz", health.ReadinessHandler(s.config.Health))
	s.mux.Handle("/api/chat", identity.WithTokenHeaders(http.HandlerFunc(s.handleChat)))
	s.mux.HandleFunc("/api/tools", s.handleTools)
	s.mux.Handle("/api/tools/call", identity.WithTokenHeaders(http.HandlerFunc(s.handleToolCall)))
	s.mux.HandleFunc("/api/xaa/status", health.SingleCheckHandler(s.config.Health, xaaCheckName))
	s.mux.HandleFunc("/api/token-vault/status", health.SingleCheckHandler(s.config.Health, vaultCheckName))
}

// ServeHTTP applies CORS, answers preflight, then routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-ID-Token")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug(r.Context(), "request handled",
		observe.Field{Key: "method", Value: r.Method},
		observe.Field{Key: "path", Value: r.URL.Path},
		observe.Field{Key: "elapsed_ms", Value: time.Since(start).Milliseconds()},
	)
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

var _ http.Handler = (*Server)(nil)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
