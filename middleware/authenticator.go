package middleware

import (
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// TokenSource is a synchronous, non-blocking token read.
type TokenSource interface {
	ReadCached() (string, bool)
}

// Authenticator injects the cached session token into each outgoing request.
// Requests without a cached token pass through unmodified.
type Authenticator struct {
	source TokenSource
	next   http.RoundTripper
}

// NewAuthenticator wraps next; a nil next uses http.DefaultTransport.
func NewAuthenticator(source TokenSource, next http.RoundTripper) *Authenticator {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Authenticator{source: source, next: next}
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// mutated; a clone carries the header.
func (a *Authenticator) RoundTrip(req *http.Request) (*http.Response, error) {
	if a.source == nil {
		return a.next.RoundTrip(req)
	}
	token, ok := a.source.ReadCached()
	if !ok {
		return a.next.RoundTrip(req)
	}
	token = strings.TrimSpace(trimScheme(strings.TrimLeft(token, " \t")))
	if token == "" {
		return a.next.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", bearerPrefix+token)
	return a.next.RoundTrip(out)
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	if !hasScheme(value) {
		return "", false
	}
	token := value[len(bearerPrefix):]
	if token == "" {
		return "", false
	}
	return token, true
}

func hasScheme(value string) bool {
	return len(value) >= len(bearerPrefix) && strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix)
}

// trimScheme drops a leading "Bearer " in any letter case. A bare scheme
// leaves nothing.
func trimScheme(value string) string {
	if strings.EqualFold(value, strings.TrimSpace(bearerPrefix)) {
		return ""
	}
	if hasScheme(value) {
		return value[len(bearerPrefix):]
	}
	return value
}
