// Package middleware provides client-side request pipeline stages for calls to
// the TrackWise API.
//
// # Stages
//
//   - [Authenticator] attaches "Authorization: Bearer <token>" from a
//     [TokenSource] when a token is cached.
//   - [RequestID] stamps X-Request-ID on requests that lack one.
//
// Stages are [http.RoundTripper] decorators composed with [Chain] and wrapped
// into a client by [NewHTTPClient].
//
// # What this package must NOT do
//
//   - Perform durable I/O while handling a request (token reads are in-memory).
//   - Retry requests or change method, URL, or body.
package middleware
