// Package apierror defines the closed error taxonomy shared by every component
// that talks to the TrackWise API.
//
// # Taxonomy
//
// Kinds are listed in classification precedence:
//
//   - [KindTimeout] request sent, no response within the transport budget.
//   - [KindNetworkUnavailable] connection could not be established.
//   - [KindServerError] HTTP status >= 500.
//   - [KindUnauthorized], [KindForbidden], [KindNotFound], [KindValidationFailed]
//     for 401, 403, 404 and 422.
//   - [KindUnknown] anything else, status and message preserved.
//
// # Architecture boundaries
//
// This package classifies transport failures and HTTP error responses into
// [*Error] values and translates them to user-facing text. It performs no I/O.
//
// # What this package must NOT do
//
//   - Import gateway, middleware, or the root package.
//   - Surface raw transport text through [UserMessage].
package apierror
