package portfolio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/apexwealth/agentgate/exchange"
	"github.com/apexwealth/agentgate/health"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/token"
	"github.com/apexwealth/agentgate/tool"
)

const sourceLabel = "Internal Portfolio Management System"

// writeScope is the scope grant write tools require when verification
// is enabled.
const writeScope = "write_data"

// writeTools mutate client or account state.
var writeTools = map[string]bool{
	"process_payment": true,
	"update_client":   true,
}

// Config configures the portfolio backend.
type Config struct {
	// Store holds the client book. Nil gets the seeded demo book.
	Store *Store

	// Policy is the payment authorization ladder. A policy without a
	// compliance-review tier gets the default ladder.
	Policy PaymentPolicy

	// Verifier validates delegated access tokens before any tool
	// runs. Nil disables verification, for demos without an issuer.
	Verifier *exchange.Verifier

	// Observer supplies logging, tracing, and metrics. Nil disables
	// all three.
	Observer observe.Observer
}

// Backend serves the internal portfolio management tools: client
// profiles, holdings, payments, and contact updates.
//
// Contract:
// - Concurrency: safe for concurrent Call use; the store guards the
//   client book with a read-write mutex.
// - Errors: a Go error means the call could not execute (unknown
//   tool, rejected token, missing scope). Compliance holds, trading
//   restrictions, and blocked recipients are result payloads with
//   status discriminators.
type Backend struct {
	store    *Store
	policy   PaymentPolicy
	verifier *exchange.Verifier
	printer  *message.Printer
	logger   observe.Logger
}

var _ tool.Backend = (*Backend)(nil)

// New creates a portfolio backend.
func New(config Config) *Backend {
	if config.Store == nil {
		config.Store = NewStore()
	}
	if config.Policy.ComplianceReview == 0 {
		config.Policy = DefaultPaymentPolicy()
	}

	mw := observe.NewMiddleware(config.Observer)

	return &Backend{
		store:    config.Store,
		policy:   config.Policy,
		verifier: config.Verifier,
		printer:  message.NewPrinter(language.English),
		logger:   mw.Logger(),
	}
}

// Name identifies the backend in traces and logs.
func (b *Backend) Name() string { return "portfolio" }

// Tools returns the portfolio tool catalog.
func (b *Backend) Tools() []tool.Definition {
	return []tool.Definition{
		{
			Name:        "get_client",
			Description: "Get client FINANCIAL profile from internal portfolio system - portfolio value, AUM, investment account type, risk score, YTD performance, and advisor assignment. Use for portfolio value, investment status, and financial profile questions. NOT for CRM contact info or sales opportunities.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"client_identifier": map[string]any{
						"type":        "string",
						"description": "Client name (e.g., 'Marcus Thompson') or client ID (e.g., 'CLT001')",
					},
				},
				"required": []string{"client_identifier"},
			},
		},
		{
			Name:        "list_clients",
			Description: "List all investment clients with portfolio values, total AUM (Assets Under Management), risk profiles, and account types from internal system. Use for managed accounts overview, total AUM questions, and client roster requests.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status_filter": map[string]any{
						"type":        "string",
						"enum":        []string{"Active", "Inactive", "All"},
						"description": "Filter by client status. Default: Active",
					},
				},
			},
		},
		{
			Name:        "get_portfolio",
			Description: "Get detailed portfolio breakdown - individual holdings, asset allocation percentages, sector weights, cost basis, and performance metrics. Use for investment holdings, allocation analysis, YTD returns, and performance questions.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"client_identifier": map[string]any{
						"type":        "string",
						"description": "Client name or ID",
					},
				},
				"required": []string{"client_identifier"},
			},
		},
		{
			Name:        "process_payment",
			Description: "Process financial transactions - transfers, withdrawals, distributions from investment accounts. May require step-up authentication for amounts over $10,000. Use for money movement, transfer requests, and payment processing.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"client_identifier": map[string]any{
						"type":        "string",
						"description": "Client name or ID",
					},
					"amount": map[string]any{
						"type":        "number",
						"description": "Payment amount in USD",
					},
					"recipient": map[string]any{
						"type":        "string",
						"description": "Payment recipient name or account",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Payment description",
					},
				},
				"required": []string{"client_identifier", "amount", "recipient"},
			},
		},
		{
			Name:        "update_client",
			Description: "Update client contact information (phone, email, address) in the internal portfolio management system. Use for updating client details in the investment system.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"client_identifier": map[string]any{
						"type":        "string",
						"description": "Client name or ID",
					},
					"field": map[string]any{
						"type":        "string",
						"enum":        []string{"phone", "email", "address"},
						"description": "Field to update",
					},
					"value": map[string]any{
						"type":        "string",
						"description": "New value",
					},
				},
				"required": []string{"client_identifier", "field", "value"},
			},
		},
	}
}

// Call executes one portfolio tool.
func (b *Backend) Call(ctx context.Context, name string, args map[string]any, tok token.Token) (map[string]any, error) {
	if err := b.authorize(ctx, name, tok); err != nil {
		return nil, err
	}

	b.logger.Debug(ctx, "portfolio tool call", observe.Field{Key: "tool", Value: name})

	switch name {
	case "get_client":
		return b.getClient(args), nil
	case "list_clients":
		return b.listClients(args), nil
	case "get_portfolio":
		return b.getPortfolio(args), nil
	case "process_payment":
		return b.processPayment(args), nil
	case "update_client":
		return b.updateClient(args), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

// authorize validates the delegated token. With no verifier the
// backend is open, serving demo deployments without an issuer.
func (b *Backend) authorize(ctx context.Context, name string, tok token.Token) error {
	if b.verifier == nil {
		return nil
	}

	bearer, ok := tok.Bearer()
	if !ok {
		if reason := tok.Reason(); reason != nil {
			return fmt.Errorf("%w: %v", ErrNoToken, reason)
		}
		return ErrNoToken
	}

	v, err := b.verifier.VerifyAccessToken(ctx, bearer)
	if err != nil {
		return fmt.Errorf("portfolio: verify access token: %w", err)
	}
	if writeTools[name] && !v.HasScope(writeScope) {
		return fmt.Errorf("%w: %s requires %s", ErrScopeDenied, name, writeScope)
	}
	return nil
}

func (b *Backend) getClient(args map[string]any) map[string]any {
	identifier := tool.StringArg(args, "client_identifier")
	c, found := b.store.Find(identifier)
	if !found {
		return map[string]any{
			"error":   "client_not_found",
			"message": fmt.Sprintf("Client %q not found in portfolio system", identifier),
		}
	}
	if !c.Compliant() {
		return map[string]any{
			"error":             "access_denied",
			"message":           fmt.Sprintf("Access to %s's data is restricted due to compliance hold", c.Name),
			"compliance_reason": holdReason(c, "Pending review"),
			"security_control":  "FGA - Compliance Hold",
		}
	}

	return map[string]any{
		"client": map[string]any{
			"id":                   c.ID,
			"name":                 c.Name,
			"email":                c.Email,
			"phone":                c.Phone,
			"status":               c.Status,
			"account_type":         c.AccountType,
			"account_name":         c.AccountName,
			"portfolio_value":      b.usd(c.PortfolioValue),
			"risk_profile":         c.RiskProfile,
			"risk_score":           fmt.Sprintf("%d/100", c.RiskScore),
			"advisor":              c.Advisor,
			"ytd_return":           percent(c.YTDReturn),
			"inception_return":     percent(c.InceptionReturn),
			"last_review":          c.LastReview,
			"next_review":          c.NextReview,
			"compliance_status":    c.ComplianceStatus,
			"trading_restrictions": c.TradingRestrictions,
		},
		"source": sourceLabel,
	}
}

func (b *Backend) listClients(args map[string]any) map[string]any {
	filter := tool.StringArgDefault(args, "status_filter", "Active")

	clients := make([]map[string]any, 0, b.store.Len())
	var totalAUM float64
	restricted := 0

	for _, c := range b.store.List() {
		// Restricted clients never appear in the roster.
		if !c.Compliant() {
			restricted++
			continue
		}
		if filter != "All" && c.Status != filter {
			continue
		}
		clients = append(clients, map[string]any{
			"id":              c.ID,
			"name":            c.Name,
			"account_name":    c.AccountName,
			"account_type":    c.AccountType,
			"portfolio_value": b.usd(c.PortfolioValue),
			"risk_profile":    c.RiskProfile,
			"ytd_return":      percent(c.YTDReturn),
			"last_review":     c.LastReview,
			"status":          c.Status,
		})
		totalAUM += c.PortfolioValue
	}

	return map[string]any{
		"clients": clients,
		"summary": map[string]any{
			"total_clients":      len(clients),
			"total_aum":          b.usd(totalAUM),
			"restricted_clients": restricted,
			"filter_applied":     filter,
		},
		"source": sourceLabel,
	}
}

func (b *Backend) getPortfolio(args map[string]any) map[string]any {
	identifier := tool.StringArg(args, "client_identifier")
	c, found := b.store.Find(identifier)
	if !found {
		return map[string]any{
			"error":   "client_not_found",
			"message": fmt.Sprintf("Client %q not found", identifier),
		}
	}
	if !c.Compliant() {
		return map[string]any{
			"error":            "access_denied",
			"message":          fmt.Sprintf("Access to %s's portfolio is restricted: %s", c.Name, holdReason(c, "Compliance hold")),
			"security_control": "FGA - Compliance Hold",
		}
	}

	holdings := make([]map[string]any, 0, len(c.Holdings))
	for _, h := range c.Holdings {
		holdings = append(holdings, map[string]any{
			"asset":      h.Asset,
			"ticker":     h.Ticker,
			"allocation": h.Allocation,
			"value":      h.Value,
			"cost_basis": h.CostBasis,
		})
	}

	return map[string]any{
		"portfolio": map[string]any{
			"client_name":          c.Name,
			"account_name":         c.AccountName,
			"account_type":         c.AccountType,
			"total_value":          b.usd(c.PortfolioValue),
			"risk_profile":         c.RiskProfile,
			"risk_score":           fmt.Sprintf("%d/100", c.RiskScore),
			"ytd_return":           percent(c.YTDReturn),
			"inception_return":     percent(c.InceptionReturn),
			"holdings":             holdings,
			"trading_restrictions": c.TradingRestrictions,
			"recent_transactions":  lastTransactions(c.RecentTransactions, 3),
			"last_review":          c.LastReview,
			"next_review":          c.NextReview,
		},
		"source": sourceLabel,
	}
}

func (b *Backend) processPayment(args map[string]any) map[string]any {
	identifier := tool.StringArg(args, "client_identifier")
	amount := tool.NumberArg(args, "amount")
	recipient := tool.StringArg(args, "recipient")

	c, found := b.store.Find(identifier)
	if !found {
		return map[string]any{
			"error":   "client_not_found",
			"message": fmt.Sprintf("Client %q not found", identifier),
		}
	}
	if !c.Compliant() {
		return map[string]any{
			"error":            "payment_blocked",
			"message":          fmt.Sprintf("Transactions for %s are blocked: %s", c.Name, holdReason(c, "Compliance hold")),
			"security_control": "FGA - Compliance Hold",
			"action_required":  "Contact compliance team",
		}
	}
	for _, r := range c.TradingRestrictions {
		if strings.Contains(strings.ToUpper(r), "NO") {
			return map[string]any{
				"error":            "payment_blocked",
				"message":          fmt.Sprintf("Account has trading restrictions: %s", c.TradingRestrictions[0]),
				"security_control": "Trading Restriction",
			}
		}
	}
	if b.policy.Blocked(recipient) {
		return map[string]any{
			"error":              "payment_blocked",
			"message":            fmt.Sprintf("Payment to %q blocked - unverified or high-risk recipient", recipient),
			"security_control":   "Risk Policy - Blocked Recipient List",
			"blocked_recipients": b.policy.BlockedRecipients,
		}
	}

	switch b.policy.Tier(amount) {
	case ComplianceReviewRequired:
		return map[string]any{
			"status":           "compliance_review_required",
			"message":          fmt.Sprintf("Payment of %s exceeds %s threshold", b.usd(amount), b.usdWhole(b.policy.ComplianceReview)),
			"security_control": "Compliance Review Required",
			"action":           "Transaction queued for compliance team approval",
		}
	case VPApprovalRequired:
		return map[string]any{
			"status":           "vp_approval_required",
			"message":          fmt.Sprintf("Payment of %s requires VP approval", b.usd(amount)),
			"security_control": "Dual Authorization - VP",
			"action":           "Approval request routed to the duty VP",
			"threshold":        ">" + b.usdWhole(b.policy.VP),
		}
	case ManagerApprovalRequired:
		return map[string]any{
			"status":           "manager_approval_required",
			"message":          fmt.Sprintf("Payment of %s requires manager approval", b.usd(amount)),
			"security_control": "Dual Authorization - Manager",
			"action":           "Approval request routed to your manager",
			"threshold":        ">" + b.usdWhole(b.policy.Manager),
		}
	case StepUpRequired:
		return map[string]any{
			"status":           "step_up_required",
			"message":          fmt.Sprintf("Payment of %s requires step-up authentication (MFA)", b.usd(amount)),
			"security_control": "CIBA Step-Up Authentication",
			"action":           "Push notification sent to your registered device for approval",
			"threshold":        ">" + b.usdWhole(b.policy.StepUp),
		}
	case ApproveLogged:
		return map[string]any{
			"status":           "approved",
			"message":          fmt.Sprintf("Payment of %s to %s approved", b.usd(amount), recipient),
			"security_control": "Standard Authorization - Logged",
			"transaction_id":   transactionID(),
			"from_account":     fromAccount(c),
			"audit_log":        "Transaction recorded for audit trail",
		}
	default:
		return map[string]any{
			"status":           "approved",
			"message":          fmt.Sprintf("Payment of %s to %s auto-approved", b.usd(amount), recipient),
			"security_control": "Low Value - Auto-Approved",
			"transaction_id":   transactionID(),
			"from_account":     fromAccount(c),
		}
	}
}

func (b *Backend) updateClient(args map[string]any) map[string]any {
	identifier := tool.StringArg(args, "client_identifier")
	field := tool.StringArg(args, "field")
	value := tool.StringArg(args, "value")

	c, found := b.store.Find(identifier)
	if !found {
		return map[string]any{
			"error":   "client_not_found",
			"message": fmt.Sprintf("Client %q not found", identifier),
		}
	}
	old, ok := b.store.UpdateContact(c.ID, field, value)
	if !ok {
		return map[string]any{
			"error":   "invalid_field",
			"message": fmt.Sprintf("Cannot update field %q", field),
		}
	}

	return map[string]any{
		"status":    "updated",
		"message":   fmt.Sprintf("Updated %s's %s", c.Name, field),
		"field":     field,
		"old_value": old,
		"new_value": value,
	}
}

// Checker returns a readiness check over the client book.
func (b *Backend) Checker() health.Checker {
	return health.NewCheckerFunc("portfolio_backend", func(ctx context.Context) health.Result {
		n := b.store.Len()
		if n == 0 {
			return health.Degraded("client book is empty")
		}
		return health.Healthy("portfolio store ready").WithDetails(map[string]any{
			"clients": n,
			"tools":   len(b.Tools()),
		})
	})
}

// usd formats an amount as US dollars with cents and thousands
// separators.
func (b *Backend) usd(amount float64) string {
	return b.printer.Sprintf("$%.2f", amount)
}

// usdWhole formats a threshold as whole dollars.
func (b *Backend) usdWhole(amount float64) string {
	return b.printer.Sprintf("$%.0f", amount)
}

// percent renders a return figure the way statements print it.
func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// holdReason returns the client's compliance reason, or the fallback
// when none is recorded.
func holdReason(c *Client, fallback string) string {
	if c.ComplianceReason != "" {
		return c.ComplianceReason
	}
	return fallback
}

// fromAccount names the paying account, falling back to the client
// name for accounts without a titled account name.
func fromAccount(c *Client) string {
	if c.AccountName != "" {
		return c.AccountName
	}
	return c.Name
}

// transactionID mints a timestamped transaction reference.
func transactionID() string {
	return "TXN-" + time.Now().Format("20060102150405")
}

// lastTransactions returns the most recent n transactions as result
// maps.
func lastTransactions(txns []Transaction, n int) []map[string]any {
	if len(txns) > n {
		txns = txns[len(txns)-n:]
	}
	out := make([]map[string]any, 0, len(txns))
	for _, t := range txns {
		out = append(out, map[string]any{
			"date":        t.Date,
			"type":        t.Type,
			"amount":      t.Amount,
			"description": t.Description,
		})
	}
	return out
}
