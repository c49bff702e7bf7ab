package agent

import (
	"context"

	"github.com/google/uuid"

	"github.com/apexwealth/agentgate/exchange"
	"github.com/apexwealth/agentgate/identity"
	"github.com/apexwealth/agentgate/llm"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/scope"
	"github.com/apexwealth/agentgate/vault"
)

// ServiceConfig wires the per-turn control flow.
type ServiceConfig struct {
	// Orchestrator drives the model's tool loop. Required.
	Orchestrator *Orchestrator

	// Classifier maps the user message to a scope.
	// Default: scope.NewClassifier(scope.DefaultRuleset())
	Classifier *scope.Classifier

	// Exchanger mints the per-audience grants. Optional; without it
	// every grant is unavailable and the turn runs degraded.
	Exchanger *exchange.Exchanger

	// Vault derives provider connection tokens. Optional.
	Vault *vault.Bridge

	// Observer receives logs and metrics. Default: no-op.
	Observer observe.Observer
}

// Service runs complete advisory turns: scope classification, the
// delegated exchanges for every configured audience, and the
// orchestrated model loop over the resulting token set.
type Service struct {
	config ServiceConfig
	logger observe.Logger
}

// NewService creates a turn service, applying defaults.
func NewService(config ServiceConfig) (*Service, error) {
	if config.Orchestrator == nil {
		return nil, ErrNoOrchestrator
	}
	if config.Classifier == nil {
		config.Classifier = scope.NewClassifier(scope.DefaultRuleset())
	}

	mw := observe.NewMiddleware(config.Observer)
	return &Service{config: config, logger: mw.Logger()}, nil
}

// TurnInput is one inbound user turn.
type TurnInput struct {
	// Message is the user's request text.
	Message string

	// History is prior conversation context, oldest first.
	History []llm.Message

	// Assertion is the verified user identity. The zero value runs
	// an anonymous turn: every exchange fails and tools see
	// unavailable tokens.
	Assertion identity.Assertion
}

// TurnResult is the assembled outcome of one turn.
type TurnResult struct {
	// TurnID correlates the turn's log lines with its wire response.
	TurnID string

	// Reply carries the narrative and the audit trail.
	Reply *Reply

	// Scope is what the turn's message classified to.
	Scope scope.Scope

	// Grants holds the per-audience exchange outcomes, nil when no
	// exchanger is configured.
	Grants map[string]exchange.Grant
}

// HandleTurn runs one complete turn.
//
// Contract:
//   - Exchange failures degrade the turn rather than failing it: the
//     affected audiences yield unavailable tokens and tool calls
//     fold that into their results.
//   - The result always carries a Reply.
func (s *Service) HandleTurn(ctx context.Context, in TurnInput) *TurnResult {
	turnID := uuid.NewString()
	sc := s.config.Classifier.Classify(in.Message)

	var grants map[string]exchange.Grant
	if s.config.Exchanger != nil {
		grants = s.config.Exchanger.ExchangeAll(ctx, in.Assertion, sc)
	}

	// A nil *vault.Bridge must stay a nil interface.
	var source ProviderTokenSource
	if s.config.Vault != nil {
		source = s.config.Vault
	}

	reply := s.config.Orchestrator.Run(ctx, TurnRequest{
		Message: in.Message,
		History: in.History,
		Tokens:  NewTokenSet(grants, source),
	})

	granted := 0
	for _, g := range grants {
		if g.Ok() {
			granted++
		}
	}
	s.logger.Info(ctx, "turn complete",
		observe.Field{Key: "turn_id", Value: turnID},
		observe.Field{Key: "scope", Value: sc.String()},
		observe.Field{Key: "audiences_granted", Value: granted},
		observe.Field{Key: "tools_called", Value: len(reply.ToolsCalled)},
		observe.Field{Key: "rounds", Value: reply.Rounds},
		observe.Field{Key: "claim_unverified", Value: reply.ClaimUnverified},
	)

	return &TurnResult{TurnID: turnID, Reply: reply, Scope: sc, Grants: grants}
}
