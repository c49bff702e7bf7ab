// Package tool defines the tool contract between the orchestrator and
// its backends, and the security router that binds every callable tool
// to the flow allowed to authorize it.
//
// The router is the single source of truth for which credential may
// authorize which action. It is built once at startup from explicit
// bindings; a tool name it does not know is a hard error, never a
// silent no-op.
package tool
