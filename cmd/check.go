package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/output"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Round-trip to the in-app agent",
	Long: `Send a ping to the agent embedded in the target application and print its
protocol version.

Examples:
  uibridge ping --app myapp
  uibridge ping --socket /run/user/1000/myapp.sock`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report agent and accessibility reachability",
	Long: `Check both halves of the bridge: whether the agent socket answers a ping
and whether the accessibility tree of the target application can be read.
Exits non-zero when the agent is unreachable.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(checkCmd)
}

type pingResult struct {
	OK      bool   `yaml:"ok"      json:"ok"`
	Version string `yaml:"version" json:"version"`
	Socket  string `yaml:"socket"  json:"socket"`
}

func runPing(cmd *cobra.Command, args []string) error {
	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		v, err := b.disp.Ping(ctx)
		if err != nil {
			return err
		}
		return output.Fprint(cmd.OutOrStdout(), pingResult{OK: true, Version: v, Socket: b.client.SocketPath()})
	})
}

func runCheck(cmd *cobra.Command, args []string) error {
	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		st, err := b.disp.CheckConnection(ctx)
		if err != nil && !errors.Is(err, errs.ErrTargetUnavailable) {
			return err
		}
		if perr := output.Fprint(cmd.OutOrStdout(), st); perr != nil {
			return perr
		}
		return err
	})
}
