// Package fakeapi is an in-process stand-in for the trackwise identity and
// saved-routes service.
//
// It speaks the same wire format as the production FastAPI backend: JSON
// registration, form-encoded OAuth2 password login that returns
// {"access_token", "token_type"}, bearer-protected resources, and errors shaped
// as {"detail", "error_type"} or the 422 field list. Tests, the load driver
// and the dev server mount it behind httptest or a plain listener.
//
// Fault hooks (SetDelay, FailNext) let callers provoke timeouts and server
// errors without a real network.
package fakeapi
