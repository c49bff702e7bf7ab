// Command agentgate serves the Apex Wealth advisory agent: delegated
// token exchange, the model tool loop, and the HTTP API in one
// process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apexwealth/agentgate/agent"
	"github.com/apexwealth/agentgate/calendar"
	"github.com/apexwealth/agentgate/config"
	"github.com/apexwealth/agentgate/crm"
	"github.com/apexwealth/agentgate/exchange"
	"github.com/apexwealth/agentgate/health"
	"github.com/apexwealth/agentgate/identity"
	"github.com/apexwealth/agentgate/llm"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/portfolio"
	"github.com/apexwealth/agentgate/server"
	"github.com/apexwealth/agentgate/tool"
	"github.com/apexwealth/agentgate/vault"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "agentgate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentgate: observability init failed, continuing without exporters: %v\n", err)
		obs = observe.NewNopObserver()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	logger := observe.NewMiddleware(obs).Logger()
	for _, warning := range cfg.Warnings {
		logger.Warn(ctx, warning)
	}

	srv, err := buildServer(cfg, obs)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv,
		// Chat turns may span several model rounds, so only headers
		// and idle connections get deadlines here.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	logger.Info(ctx, "server listening",
		observe.Field{Key: "addr", Value: cfg.Addr},
		observe.Field{Key: "version", Value: cfg.Version},
	)

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

// buildServer assembles the full component graph from configuration.
func buildServer(cfg *config.Config, obs observe.Observer) (*server.Server, error) {
	var verifier *identity.Verifier
	if cfg.Identity.Issuer != "" {
		verifier = identity.NewVerifier(cfg.Identity)
	}

	exchanger := exchange.NewExchanger(exchange.Config{
		Audiences: cfg.Audiences,
		Observer:  obs,
	})

	vaultCfg := cfg.Vault
	vaultCfg.Observer = obs
	bridge := vault.NewBridge(vaultCfg)

	oracleCfg := cfg.Oracle
	oracleCfg.Observer = obs
	oracle := llm.NewAnthropicClient(oracleCfg)

	portfolioBackend := portfolio.New(portfolio.Config{
		Verifier: resourceVerifier(cfg),
		Observer: obs,
	})
	calendarBackend := calendar.New(calendar.Config{
		TimeZone: cfg.TimeZone,
		Observer: obs,
	})
	crmBackend := crm.New(crm.Config{
		Observer: obs,
	})

	router, err := tool.NewRouter([]tool.Binding{
		{
			Backend:     portfolioBackend,
			Flow:        tool.FlowCrossApp,
			AudienceKey: config.PortfolioAudienceKey,
		},
		{
			Backend:     calendarBackend,
			Flow:        tool.FlowCrossAppVault,
			AudienceKey: config.PortfolioAudienceKey,
			Connection:  "google-oauth2",
		},
		{
			Backend:     crmBackend,
			Flow:        tool.FlowCrossAppVault,
			AudienceKey: config.PortfolioAudienceKey,
			Connection:  "salesforce",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	orch, err := agent.NewOrchestrator(agent.Config{
		Oracle:   oracle,
		Router:   router,
		Observer: obs,
	})
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	svc, err := agent.NewService(agent.ServiceConfig{
		Orchestrator: orch,
		Exchanger:    exchanger,
		Vault:        bridge,
		Observer:     obs,
	})
	if err != nil {
		return nil, fmt.Errorf("build service: %w", err)
	}

	agg := health.NewAggregator(health.AggregatorConfig{})
	for _, c := range []health.Checker{
		exchanger.Checker(),
		bridge.Checker(),
		portfolioBackend.Checker(),
		calendarBackend.Checker(),
		crmBackend.Checker(),
		health.NewRuntimeChecker(health.RuntimeCheckerConfig{}),
	} {
		agg.Register(c.Name(), c)
	}

	srv, err := server.New(server.Config{
		Service:        svc,
		Router:         router,
		Verifier:       verifier,
		Health:         agg,
		Version:        cfg.Version,
		AllowedOrigins: cfg.AllowedOrigins,
		Observer:       obs,
	})
	if err != nil {
		return nil, fmt.Errorf("build server: %w", err)
	}
	return srv, nil
}

// resourceVerifier builds the portfolio backend's token verifier from
// the portfolio audience. An incomplete audience disables
// verification rather than rejecting every call.
func resourceVerifier(cfg *config.Config) *exchange.Verifier {
	for _, ac := range cfg.Audiences {
		if ac.Key != config.PortfolioAudienceKey {
			continue
		}
		if ac.Domain == "" || ac.AuthServerID == "" || ac.Audience == "" {
			return nil
		}
		return exchange.NewVerifier(exchange.VerifierConfig{
			Domain:       ac.Domain,
			AuthServerID: ac.AuthServerID,
			Audience:     ac.Audience,
		})
	}
	return nil
}
