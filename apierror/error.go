package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Kind is a member of the closed error taxonomy.
type Kind uint8

const (
	// KindUnknown covers every failure without a more specific mapping.
	KindUnknown Kind = iota
	// KindTimeout means the request was sent but no response arrived in time.
	KindTimeout
	// KindNetworkUnavailable means no connection could be established.
	KindNetworkUnavailable
	// KindServerError is any HTTP status >= 500.
	KindServerError
	// KindUnauthorized is HTTP 401.
	KindUnauthorized
	// KindForbidden is HTTP 403.
	KindForbidden
	// KindNotFound is HTTP 404.
	KindNotFound
	// KindValidationFailed is HTTP 422 and carries field-level detail.
	KindValidationFailed
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindTimeout:            "timeout",
	KindNetworkUnavailable: "network_unavailable",
	KindServerError:        "server_error",
	KindUnauthorized:       "unauthorized",
	KindForbidden:          "forbidden",
	KindNotFound:           "not_found",
	KindValidationFailed:   "validation_failed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// FieldError is one entry of a FastAPI validation detail list.
type FieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// Field joins the location path, dropping the leading "body"/"query" segment.
func (f FieldError) Field() string {
	parts := make([]string, 0, len(f.Loc))
	for i, p := range f.Loc {
		s := fmt.Sprint(p)
		if i == 0 && (s == "body" || s == "query" || s == "path") && len(f.Loc) > 1 {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}

// Error is a classified failure. Status is zero for transport-level kinds.
type Error struct {
	Kind Kind
	// Status is the HTTP status code when a response was received.
	Status int
	// Message is the server "detail" text or the transport error text. It is
	// diagnostic only; use UserMessage for display.
	Message string
	// ErrorType is the server-provided error_type, when present.
	ErrorType string
	// Fields holds parsed validation details for KindValidationFailed.
	Fields []FieldError
	// Body is the raw response body, when a response was received.
	Body []byte
	// Err is the underlying transport error, if any.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		b.WriteString(" (status ")
		b.WriteString(strconv.Itoa(e.Status))
		b.WriteByte(')')
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConflict reports a 409 response, which the API uses for duplicate accounts.
func (e *Error) IsConflict() bool {
	return e != nil && e.Status == http.StatusConflict
}

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) && ce != nil {
		return ce, true
	}
	return nil, false
}

// KindOf returns the kind of the classified error in err's chain, or
// KindUnknown when there is none.
func KindOf(err error) Kind {
	if ce, ok := As(err); ok {
		return ce.Kind
	}
	return KindUnknown
}

// Is reports whether err classifies as kind.
func Is(err error, kind Kind) bool {
	ce, ok := As(err)
	return ok && ce.Kind == kind
}

// Ensure returns err's classified form. Errors that were never classified are
// wrapped as KindUnknown with their message preserved.
func Ensure(err error) *Error {
	if err == nil {
		return nil
	}
	if ce, ok := As(err); ok {
		return ce
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
}
