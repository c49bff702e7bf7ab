package exchange

import (
	"context"
	"fmt"

	"github.com/apexwealth/agentgate/health"
)

// Checker reports per-audience configuration state for the status
// surface. Details carry identifiers only, never key material.
func (e *Exchanger) Checker() health.Checker {
	return health.NewCheckerFunc("cross_app_access", func(ctx context.Context) health.Result {
		details := make(map[string]any, len(e.order))
		configured := 0
		for _, key := range e.order {
			ac := e.audiences[key]
			details[key] = map[string]any{
				"configured":     ac.Configured(),
				"domain":         ac.Domain,
				"auth_server_id": ac.AuthServerID,
				"audience":       ac.Audience,
			}
			if ac.Configured() {
				configured++
			}
		}

		switch {
		case len(e.order) == 0:
			return health.Unhealthy("no audiences configured", nil)
		case configured == 0:
			return health.Unhealthy("no audience fully configured", nil).WithDetails(details)
		case configured < len(e.order):
			msg := fmt.Sprintf("%d of %d audiences configured", configured, len(e.order))
			return health.Degraded(msg).WithDetails(details)
		default:
			msg := fmt.Sprintf("%d audiences configured", configured)
			return health.Healthy(msg).WithDetails(details)
		}
	})
}
