// Command trackwise is the Trackwise account and saved-route CLI.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/trackwise/authsession/internal/cli"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	cli.SetVersion(version)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
