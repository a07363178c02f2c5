package authsession

import (
	"context"
	"time"

	"github.com/trackwise/authsession/credential"
	"github.com/trackwise/authsession/jwt"
)

// Status summarizes the local session for display. Expiry fields are hints
// read from unverified token claims; the server remains the authority.
type Status struct {
	State     State
	Email     string
	TokenType string
	// Subject is the JWT "sub" claim, when the token is a JWT.
	Subject   string
	ExpiresAt time.Time
	// Expired is true when ExpiresAt is known and in the past. The session
	// still counts as authenticated until the server rejects the token.
	Expired bool
}

// Status reads the durable record and inspects the token. It does not change
// state.
func (m *Manager) Status(ctx context.Context) Status {
	st := Status{State: StateAnonymous}

	rec, ok, err := m.store.Record(ctx)
	if err != nil {
		m.logger.Warn("credential read failed; status from cache", "error", err)
		token, cached := m.store.ReadCached()
		if !cached {
			return st
		}
		rec, ok = credential.Record{Token: token}, true
	}
	if !ok {
		return st
	}

	st.State = StateAuthenticated
	st.Email = rec.Email
	st.TokenType = "bearer"
	if claims, err := jwt.Inspect(rec.Token); err == nil {
		st.Subject = claims.Subject
		st.ExpiresAt = claims.ExpiresAt
		st.Expired = claims.Expired(time.Now())
		if st.Email == "" {
			st.Email = claims.Subject
		}
	}
	return st
}
