// Package portfolio is the internal advisory data backend: client
// financial profiles, holdings, and payment processing under a
// tiered authorization ladder. It is gated by the resource-side
// token verifier; clients under a compliance hold are never
// returned.
package portfolio
