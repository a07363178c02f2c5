package apierror

import (
	"errors"
	"strings"
	"testing"
)

func TestUserMessageDistinctPerKind(t *testing.T) {
	errs := []error{
		&Error{Kind: KindTimeout},
		&Error{Kind: KindNetworkUnavailable},
		&Error{Kind: KindServerError, Status: 500},
		&Error{Kind: KindUnauthorized, Status: 401},
		&Error{Kind: KindForbidden, Status: 403},
		&Error{Kind: KindNotFound, Status: 404},
		&Error{Kind: KindValidationFailed, Status: 422},
		&Error{Kind: KindUnknown, Status: 409},
		&Error{Kind: KindUnknown},
	}

	seen := make(map[string]bool, len(errs))
	for _, err := range errs {
		msg := UserMessage(err)
		if msg == "" {
			t.Fatalf("empty message for %v", err)
		}
		if seen[msg] {
			t.Fatalf("duplicate message %q", msg)
		}
		seen[msg] = true
	}
}

func TestUserMessageHidesRawText(t *testing.T) {
	raw := errors.New("dial tcp 10.0.0.7:8000: connect: connection refused")
	msg := UserMessage(Classify(raw))
	if strings.Contains(msg, "10.0.0.7") || strings.Contains(msg, "dial") {
		t.Fatalf("raw transport text leaked into %q", msg)
	}
	if UserMessage(nil) != "" {
		t.Fatal("nil error must map to empty message")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(&Error{Kind: KindUnauthorized}) || !Retryable(&Error{Kind: KindNetworkUnavailable}) || !Retryable(&Error{Kind: KindTimeout}) {
		t.Fatal("expected unauthorized, network and timeout to be retryable")
	}
	if Retryable(&Error{Kind: KindValidationFailed}) || Retryable(errors.New("x")) {
		t.Fatal("expected validation and unclassified errors to be non-retryable")
	}
}
