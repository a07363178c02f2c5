package output

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/trackwise/authsession/apierror"
)

func TestResolveColors(t *testing.T) {
	t.Setenv("TERM", "xterm")
	if !ResolveColors(true) {
		t.Fatal("expected colors when configured")
	}
	if ResolveColors(false) {
		t.Fatal("expected no colors when disabled")
	}
	t.Setenv("NO_COLOR", "")
	if ResolveColors(true) {
		t.Fatal("NO_COLOR must win even when empty")
	}
}

func TestPlainPrinter(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPrinter(&out, &errOut, false)

	p.Success("logged in as %s", "john@example.com")
	p.Field("State", p.Badge(true))
	p.Warning("session expires soon")

	if !strings.Contains(out.String(), "[OK] logged in as john@example.com") {
		t.Fatalf("unexpected success line %q", out.String())
	}
	if !strings.Contains(out.String(), "State:       [authenticated]") {
		t.Fatalf("unexpected field line %q", out.String())
	}
	if !strings.Contains(errOut.String(), "[WARN] session expires soon") {
		t.Fatalf("warning must go to stderr, got %q", errOut.String())
	}
}

func TestFromErrorExitCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"unauthorized", &apierror.Error{Kind: apierror.KindUnauthorized, Status: 401}, ExitAuthError},
		{"forbidden", &apierror.Error{Kind: apierror.KindForbidden, Status: 403}, ExitAuthError},
		{"timeout", apierror.Classify(context.DeadlineExceeded), ExitNetwork},
		{"network", &apierror.Error{Kind: apierror.KindNetworkUnavailable}, ExitNetwork},
		{"validation", &apierror.Error{Kind: apierror.KindValidationFailed, Status: 422}, ExitUsageError},
		{"server", &apierror.Error{Kind: apierror.KindServerError, Status: 503}, ExitGeneral},
		{"plain", errors.New("boom"), ExitGeneral},
		{"usage", Usage("missing --email"), ExitUsageError},
		{"config", Config(errors.New("bad")), ExitConfigError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromError(tc.err)
			if got.ExitCode != tc.code {
				t.Fatalf("expected exit %d, got %d", tc.code, got.ExitCode)
			}
			if got.Summary == "" {
				t.Fatal("summary must not be empty")
			}
		})
	}
	if FromError(nil) != nil {
		t.Fatal("nil error must map to nil")
	}
}

func TestFromErrorValidationDetail(t *testing.T) {
	body := []byte(`{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address","type":"value_error"},{"loc":["body","password"],"msg":"too short","type":"value_error"}]}`)
	cli := FromError(apierror.FromResponse(422, body))
	if cli.Detail != "email: value is not a valid email address; password: too short" {
		t.Fatalf("unexpected detail %q", cli.Detail)
	}
}

func TestFromErrorConflictKeepsServerDetail(t *testing.T) {
	body := []byte(`{"detail":"Email already registered","error_type":"ResourceAlreadyExistsError"}`)
	cli := FromError(apierror.FromResponse(409, body))
	if !strings.Contains(cli.Summary, "already exists") {
		t.Fatalf("unexpected summary %q", cli.Summary)
	}
	if cli.Detail != "Email already registered" {
		t.Fatalf("unexpected detail %q", cli.Detail)
	}
}

func TestFormatError(t *testing.T) {
	var errOut bytes.Buffer
	p := NewPrinter(&bytes.Buffer{}, &errOut, false)
	p.FormatError(FromError(&apierror.Error{Kind: apierror.KindUnauthorized, Status: 401, Message: "Not authenticated"}))

	got := errOut.String()
	for _, want := range []string{"[ERROR] ", "Cause: Not authenticated", "Suggestion: run `trackwise login`"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}
