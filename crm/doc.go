// Package crm is the Salesforce backend. Tool calls carry a provider
// token minted through the vault bridge; with a usable token the
// backend runs SOQL and SOSL against the Salesforce REST API, and
// without one (or when the API fails) it serves a local fixture org
// seeded with the advisory book so demo turns still complete.
package crm
