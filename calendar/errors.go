package calendar

import "errors"

// Sentinel errors for the calendar backend.
var (
	// ErrUnknownTool indicates the backend has no handler for the
	// requested tool name.
	ErrUnknownTool = errors.New("calendar: unknown tool")

	// ErrAPIStatus indicates the Calendar API answered with a
	// non-success status.
	ErrAPIStatus = errors.New("calendar: google api error")
)
