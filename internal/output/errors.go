package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/trackwise/authsession/apierror"
)

const (
	ExitSuccess     = 0
	ExitGeneral     = 1
	ExitUsageError  = 2
	ExitAuthError   = 3
	ExitConfigError = 4
	ExitNetwork     = 5
)

// CLIError is an error with user-facing context and a process exit code.
type CLIError struct {
	Summary    string
	Detail     string
	Suggestion string
	ExitCode   int
	Err        error
}

func (e *CLIError) Error() string {
	return e.Summary
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// Usage builds an ExitUsageError CLIError.
func Usage(format string, args ...any) *CLIError {
	return &CLIError{Summary: fmt.Sprintf(format, args...), ExitCode: ExitUsageError}
}

// Config builds an ExitConfigError CLIError around err.
func Config(err error) *CLIError {
	return &CLIError{
		Summary:    "configuration is invalid",
		Detail:     err.Error(),
		Suggestion: "check .trackwise.yaml and TRACKWISE_* variables",
		ExitCode:   ExitConfigError,
		Err:        err,
	}
}

// FromError maps any error onto a CLIError. Session failures keep their
// classification; server-provided field errors become the detail line.
func FromError(err error) *CLIError {
	if err == nil {
		return nil
	}
	var cli *CLIError
	if errors.As(err, &cli) {
		return cli
	}

	ce := apierror.Ensure(err)
	out := &CLIError{
		Summary:  apierror.UserMessage(ce),
		ExitCode: ExitGeneral,
		Err:      err,
	}

	switch ce.Kind {
	case apierror.KindUnauthorized:
		out.ExitCode = ExitAuthError
		out.Suggestion = "run `trackwise login` to start a new session"
	case apierror.KindForbidden:
		out.ExitCode = ExitAuthError
	case apierror.KindTimeout, apierror.KindNetworkUnavailable:
		out.ExitCode = ExitNetwork
		out.Suggestion = "check --api-url and your connection, then retry"
	case apierror.KindValidationFailed:
		out.ExitCode = ExitUsageError
		out.Detail = fieldDetail(ce)
	case apierror.KindServerError:
		out.Suggestion = "retry in a moment"
	}
	if out.Detail == "" && ce.Message != "" && ce.Message != out.Summary {
		out.Detail = ce.Message
	}
	return out
}

func fieldDetail(ce *apierror.Error) string {
	if len(ce.Fields) == 0 {
		return ce.Message
	}
	parts := make([]string, 0, len(ce.Fields))
	for _, f := range ce.Fields {
		parts = append(parts, f.Field()+": "+f.Msg)
	}
	return strings.Join(parts, "; ")
}

// FormatError prints e to the error stream.
func (p *Printer) FormatError(e *CLIError) {
	if p.useColors {
		color.New(color.FgRed, color.Bold).Fprintf(p.err, "Error: %s\n", e.Summary)
	} else {
		fmt.Fprintf(p.err, "[ERROR] %s\n", e.Summary)
	}
	if e.Detail != "" {
		fmt.Fprintf(p.err, "  Cause: %s\n", e.Detail)
	}
	if e.Suggestion == "" {
		return
	}
	if p.useColors {
		color.New(color.FgCyan).Fprintf(p.err, "  Suggestion: %s\n", e.Suggestion)
		return
	}
	fmt.Fprintf(p.err, "  Suggestion: %s\n", e.Suggestion)
}
