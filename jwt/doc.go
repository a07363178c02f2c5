// Package jwt reads and mints the bearer tokens exchanged with the identity
// service.
//
// Clients hold access tokens they cannot verify: the signing key lives on
// the server. Inspect decodes the registered claims without checking the
// signature so callers can show the subject and an expiry hint. Nothing in
// this package treats an inspected token as trusted.
//
// Signer is the server-side half. It issues and verifies HS256 or Ed25519
// tokens with "sub" set to the account email, and backs the in-process fake
// identity service used by tests, the load generator and the demo.
//
// # What this package must NOT do
//
//   - Make authentication decisions from Inspect output.
//   - Refresh, rotate or revoke tokens.
package jwt
