// Package output formats trackwise CLI output.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Printer writes human-facing lines to out and diagnostics to err.
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

// ResolveColors honours NO_COLOR and TERM=dumb before the config switch.
func ResolveColors(configColors bool) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return configColors
}

func NewPrinter(out, err io.Writer, useColors bool) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if err == nil {
		err = os.Stderr
	}
	return &Printer{out: out, err: err, useColors: useColors}
}

func (p *Printer) Out() io.Writer { return p.out }

func (p *Printer) Info(format string, args ...any) {
	if p.useColors {
		color.New(color.FgCyan).Fprintf(p.out, format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) Success(format string, args ...any) {
	if p.useColors {
		color.New(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, "[OK] "+format+"\n", args...)
}

func (p *Printer) Warning(format string, args ...any) {
	if p.useColors {
		color.New(color.FgYellow).Fprintf(p.err, "⚠ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "[WARN] "+format+"\n", args...)
}

func (p *Printer) Print(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Field prints an aligned "label: value" line.
func (p *Printer) Field(label, value string) {
	if p.useColors {
		fmt.Fprintf(p.out, "%s %s\n", color.New(color.Bold).Sprintf("%-12s", label+":"), value)
		return
	}
	fmt.Fprintf(p.out, "%-12s %s\n", label+":", value)
}

// Badge renders a session state marker.
func (p *Printer) Badge(authenticated bool) string {
	label := "anonymous"
	if authenticated {
		label = "authenticated"
	}
	if !p.useColors {
		return "[" + label + "]"
	}
	if authenticated {
		return color.GreenString("● " + label)
	}
	return color.YellowString("○ " + label)
}

func (p *Printer) Dim(text string) string {
	if p.useColors {
		return color.New(color.Faint).Sprint(text)
	}
	return text
}
