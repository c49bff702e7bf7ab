// Package config assembles the application configuration from the
// environment: a .env file when present, then process variables, with
// secret references resolved and the agent's signing key parsed.
//
// Load never fails on missing credentials. An unconfigured piece
// leaves its component degraded (failed exchanges, fixture-backed
// tools, an unconfigured oracle) and is reported in Warnings so the
// entrypoint can log what is absent.
package config
