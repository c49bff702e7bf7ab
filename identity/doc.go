// Package identity verifies inbound identity assertions.
//
// An assertion is the ID token the enterprise IdP issued for the end
// user. The agent never mints identities: every delegated exchange
// starts from a verified assertion, and everything downstream (audience
// grants, vault tokens, tool calls) is scoped to its subject.
//
// The package provides:
//   - Verifier: RS256 validation against the issuer's JWKS endpoint,
//     with issuer and audience checks.
//   - Keystore: cached JWKS fetch with singleflight refresh and
//     graceful degradation when the endpoint is unreachable.
//   - Context and transport helpers for carrying raw header tokens and
//     the verified assertion through a request.
package identity
