package identity

import (
	"net/http"
	"strings"
)

// Header names the frontend uses to pass credentials.
const (
	IDTokenHeader       = "X-ID-Token"
	AuthorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// ExtractTokens pulls the raw identity assertion and bearer token from
// request headers. Absent headers yield empty fields, never errors;
// the caller decides how an anonymous request degrades.
func ExtractTokens(r *http.Request) Tokens {
	t := Tokens{
		IDToken: strings.TrimSpace(r.Header.Get(IDTokenHeader)),
	}
	if auth := r.Header.Get(AuthorizationHeader); strings.HasPrefix(auth, bearerPrefix) {
		t.AccessToken = strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix))
	}
	return t
}

// WithTokenHeaders is HTTP middleware that extracts credential headers
// into the request context for downstream handlers.
//
// Usage:
//
//	mux.Handle("/api/chat", identity.WithTokenHeaders(chatHandler))
func WithTokenHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithTokens(r.Context(), ExtractTokens(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
