// Package api calls the authenticated trackwise resources: the current
// profile and the saved-routes collection.
//
// Client expects an *http.Client whose transport runs the request
// authenticator, normally Manager.HTTPClient. It never reads or writes
// credentials itself. A 401 from any call is returned as
// apierror.KindUnauthorized; the caller decides whether to log out.
package api
