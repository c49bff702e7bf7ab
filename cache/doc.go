// Package cache provides the bounded in-process token cache used by
// the vault bridge.
//
// Only the vault token is ever cached; every entry carries its own
// absolute expiry (already reduced by the caller's safety margin) and
// expires lazily. The Loader wraps a cache with singleflight semantics
// so concurrent refreshes of the same key collapse into one upstream
// call.
package cache
