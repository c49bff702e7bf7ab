// Package exchange performs the delegated cross-app access flow.
//
// One verified identity assertion fans out into per-audience access
// tokens through a 3-step exchange against each audience's
// authorization server:
//
//  1. Issue: the assertion is exchanged for a delegated identity
//     assertion (ID-JAG) scoped to the target authorization server.
//  2. Verify: the delegated assertion's claims are checked, with a
//     signature check when the issuer's key set is reachable. This
//     step is advisory; it logs, it never blocks.
//  3. Redeem: the delegated assertion is exchanged at the target
//     authorization server for an audience-scoped access token, with
//     the agent authenticating via a signed client assertion.
//
// Audiences are isolated: a token minted for one audience is never
// offered to another, and one audience's failure leaves the rest
// untouched. The package also provides the resource-side Verifier that
// backends consult before executing any tool.
package exchange
