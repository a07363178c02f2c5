package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is the per-request budget used when none is configured.
const DefaultTimeout = 30 * time.Second

// Stage decorates a RoundTripper.
type Stage func(http.RoundTripper) http.RoundTripper

// Chain applies stages so the first stage sees the request first.
func Chain(base http.RoundTripper, stages ...Stage) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(stages) - 1; i >= 0; i-- {
		rt = stages[i](rt)
	}
	return rt
}

// WithAuthenticator returns a Stage for NewAuthenticator.
func WithAuthenticator(source TokenSource) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return NewAuthenticator(source, next)
	}
}

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RequestID sets X-Request-ID to a fresh UUID when the request has none.
func RequestID() Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("X-Request-ID") != "" {
				return next.RoundTrip(req)
			}
			out := req.Clone(req.Context())
			out.Header.Set("X-Request-ID", uuid.NewString())
			return next.RoundTrip(out)
		})
	}
}

// UserAgent sets User-Agent when the request has none.
func UserAgent(value string) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		if value == "" {
			return next
		}
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("User-Agent") != "" {
				return next.RoundTrip(req)
			}
			out := req.Clone(req.Context())
			out.Header.Set("User-Agent", value)
			return next.RoundTrip(out)
		})
	}
}

// NewHTTPClient builds a client whose transport runs stages in order. A
// non-positive timeout uses DefaultTimeout.
func NewHTTPClient(base http.RoundTripper, timeout time.Duration, stages ...Stage) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: Chain(base, stages...),
		Timeout:   timeout,
	}
}
