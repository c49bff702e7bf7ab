package vault

import (
	"context"

	"github.com/apexwealth/agentgate/health"
)

// Checker reports vault configuration state for the status surface.
// The vault is an optional capability: missing configuration degrades
// the service rather than failing it.
func (b *Bridge) Checker() health.Checker {
	return health.NewCheckerFunc("token_vault", func(ctx context.Context) health.Result {
		details := map[string]any{
			"configured":        b.Configured(),
			"audience":          b.config.Audience,
			"connections":       b.Connections(),
			"source_token_type": b.config.SourceTokenType,
		}
		if !b.Configured() {
			return health.Degraded("token vault not configured").WithDetails(details)
		}
		return health.Healthy("token vault configured").WithDetails(details)
	})
}
