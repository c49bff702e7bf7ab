// Package health is the service's status surface.
//
// Components contribute Checkers: the exchanger reports per-audience
// configuration, the vault bridge reports its connections, and each
// backend reports liveness. The Aggregator fans registered checks out
// in parallel and folds the results worst-wins into one overall
// status. HTTP handlers expose liveness and readiness probes plus
// detailed JSON views; payloads carry identifiers and configured
// flags, never secrets.
package health
