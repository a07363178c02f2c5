package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/trackwise/authsession/metrics/export/prometheus"
)

// metricsCommand prints this process's counters after the session is
// opened, which shows whether the stored session was restored.
func (a *app) metricsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print session metrics in Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			_, err = io.WriteString(a.printer.Out(), prometheus.NewExporter(mgr).Render())
			return err
		},
	}
}
