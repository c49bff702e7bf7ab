// Package server exposes the advisory service over HTTP: the chat
// endpoint that runs full delegated turns, the tool catalog and a
// direct tool-call endpoint, and the security status surface.
//
// Credentials arrive as headers (X-ID-Token for the identity
// assertion, Authorization for an already-exchanged bearer) and flow
// through request context via the identity middleware. A missing or
// rejected assertion never fails a chat request; the turn runs
// anonymously and the response reports the degraded token posture.
package server
