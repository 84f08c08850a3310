package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Probe the target once and dump Prometheus metrics",
	Long: `Check the agent connection and build the accessibility tree once, then
print the collected metrics in the Prometheus text format. Probe failures
are logged and still show up in the dump.`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		if _, err := b.disp.CheckConnection(ctx); err != nil {
			logger.Warn("agent probe failed", "err", err)
		}
		if _, err := b.disp.Build(ctx); err != nil {
			logger.Warn("tree probe failed", "err", err)
		}
		return b.metrics.WritePrometheus(cmd.OutOrStdout())
	})
}
