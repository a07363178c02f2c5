package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
)

// Classify maps a transport failure (no HTTP response) to the taxonomy.
// Timeout wins over NetworkUnavailable when both signals are present.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if ce, ok := As(err); ok {
		return ce
	}

	out := &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
	switch {
	case isTimeout(err):
		out.Kind = KindTimeout
	case isConnectFailure(err):
		out.Kind = KindNetworkUnavailable
	}
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnectFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}

// errorBody is the FastAPI error envelope. Detail is either a string or a
// list of validation entries.
type errorBody struct {
	Detail    json.RawMessage `json:"detail"`
	ErrorType string          `json:"error_type"`
}

// FromResponse maps an HTTP error response to the taxonomy. The body is kept
// verbatim and parsed best-effort for detail text and validation fields.
func FromResponse(status int, body []byte) *Error {
	out := &Error{Kind: kindForStatus(status), Status: status}
	if len(body) > 0 {
		out.Body = append([]byte(nil), body...)
	}
	parseBody(out, body)
	if out.Message == "" {
		out.Message = http.StatusText(status)
	}
	return out
}

func kindForStatus(status int) Kind {
	switch {
	case status >= 500:
		return KindServerError
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnprocessableEntity:
		return KindValidationFailed
	default:
		return KindUnknown
	}
}

func parseBody(out *Error, body []byte) {
	if len(body) == 0 {
		return
	}
	var env errorBody
	if err := json.Unmarshal(body, &env); err != nil {
		out.Message = strings.TrimSpace(string(body))
		return
	}
	out.ErrorType = env.ErrorType
	if len(env.Detail) == 0 {
		return
	}

	var text string
	if err := json.Unmarshal(env.Detail, &text); err == nil {
		out.Message = text
		return
	}

	var fields []FieldError
	if err := json.Unmarshal(env.Detail, &fields); err == nil {
		out.Fields = fields
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			if name := f.Field(); name != "" {
				msgs = append(msgs, name+": "+f.Msg)
				continue
			}
			msgs = append(msgs, f.Msg)
		}
		out.Message = strings.Join(msgs, "; ")
	}
}
