// Package vault derives third-party provider tokens (Google,
// Salesforce) from an audience-scoped access token via a token vault.
//
// The bridge runs two exchanges against the vault's token endpoint:
// step A trades the source access token for a vault token under a
// custom subject token type, step B trades the vault token for a
// federated connection access token. Vault tokens are cached per
// source token with a safety margin under the token's own lifetime.
//
// A user who never linked the requested connection is a normal
// outcome, not an outage: it surfaces as ErrNotLinked and the caller
// degrades the single affected capability.
package vault
