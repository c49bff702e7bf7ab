package tool

// Flow names the authorization flow a tool's credential must come
// from. The set is closed: routing decisions switch over it
// exhaustively and an unrecognized value is a configuration bug.
type Flow int

const (
	// FlowUnknown is the zero value; it never routes.
	FlowUnknown Flow = iota

	// FlowCrossApp authorizes via a per-audience delegated access
	// token.
	FlowCrossApp

	// FlowCrossAppVault authorizes via a provider token derived from a
	// delegated access token through the token vault.
	FlowCrossAppVault
)

// String returns the trace name of the flow.
func (f Flow) String() string {
	switch f {
	case FlowCrossApp:
		return "cross_app"
	case FlowCrossAppVault:
		return "cross_app_vault"
	default:
		return "unknown"
	}
}
