// Package authsession manages the client side of an authenticated API
// session: registration, password login, durable credential storage, and
// bearer-token injection into outgoing requests.
//
// A [Manager] is assembled by [Builder] from a credential store, an identity
// gateway and the HTTP configuration. After Build, Manager methods are safe
// to call from multiple goroutines.
//
// # Architecture boundaries
//
// The Manager orchestrates; it owns no wire format or storage format.
// Network calls live in gateway and api, persistence and the in-memory cache
// in credential, header injection in middleware, and error classification in
// apierror. Every error that leaves a Manager operation is an
// *apierror.Error, or wraps one.
//
// # Session states
//
// A Manager is anonymous until Login succeeds and authenticated until
// Logout. The state is derived from the credential cache, which always
// equals the last durable write or is empty. Build warms the cache from
// durable storage unless Config.Session.LazyCache is set.
//
// # What this package must NOT do
//
//   - Log or emit tokens and passwords.
//   - Contact the network on Logout, or let Logout fail.
//   - Retry failed calls; callers consult apierror.Retryable.
package authsession
