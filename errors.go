package authsession

import (
	"errors"

	"github.com/trackwise/authsession/gateway"
)

var (
	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid session config")
	// ErrBuilderUsed is returned by a second Build on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrStoreRequired is returned by Build without a store or backend.
	ErrStoreRequired = errors.New("credential store or backend required")
	// ErrSessionPersist marks a login whose token could not be saved.
	ErrSessionPersist = errors.New("session could not be persisted")
	// ErrManagerClosed is returned by operations after Close.
	ErrManagerClosed = errors.New("session manager closed")
)

// RegisteredLoginError reports that registration succeeded but the automatic
// login that followed did not. The account exists server-side; callers
// should send the user to manual login rather than registering again.
type RegisteredLoginError struct {
	Identity *gateway.Identity
	Err      error
}

func (e *RegisteredLoginError) Error() string {
	return "registered but login failed: " + e.Err.Error()
}

func (e *RegisteredLoginError) Unwrap() error { return e.Err }
