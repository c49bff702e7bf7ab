package portfolio

import "errors"

// Sentinel errors for the portfolio backend.
var (
	// ErrUnknownTool indicates the backend has no handler for the
	// requested tool name.
	ErrUnknownTool = errors.New("portfolio: unknown tool")

	// ErrNoToken indicates the call arrived without a usable access
	// token while verification is enabled.
	ErrNoToken = errors.New("portfolio: no usable access token")

	// ErrScopeDenied indicates the token lacks the scope grant a
	// write tool requires.
	ErrScopeDenied = errors.New("portfolio: token missing required scope")
)
