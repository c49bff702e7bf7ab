package crm

import "errors"

// Sentinel errors for the CRM backend.
var (
	// ErrUnknownTool indicates the backend has no handler for the
	// requested tool name.
	ErrUnknownTool = errors.New("crm: unknown tool")

	// ErrAPIStatus indicates the Salesforce API answered with a
	// non-success status.
	ErrAPIStatus = errors.New("crm: salesforce api error")
)
