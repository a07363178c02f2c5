// Package gateway performs the two unauthenticated identity calls: account
// registration and password login.
//
// The gateway holds no state. It returns either a decoded result or an
// *apierror.Error; it never writes credentials. Persisting the token that
// Login returns is the session manager's job.
//
// # Wire format
//
//	POST {base}/auth/register   JSON {email, username, password, full_name?}  -> 201 Identity
//	POST {base}/auth/login      form username=<email>&password=<password>     -> 200 Token
//
// # What this package must NOT do
//
//   - Log passwords or tokens.
//   - Retry. Callers decide from apierror.Retryable.
package gateway
