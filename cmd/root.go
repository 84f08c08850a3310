package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mj1618/uibridge/internal/config"
	"github.com/mj1618/uibridge/internal/logging"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "uibridge",
	Short: "Bridge AI agents to a running GUI application",
	Long: `uibridge drives a running GUI application for AI agents. It reads the
application's accessibility tree over AT-SPI and talks to an in-process agent
for coordinate input, screenshots, highlights and telemetry.

Most features are exposed as MCP tools by "uibridge serve". The remaining
subcommands are quick checks against the same target.`,
	SilenceUsage: true,
}

// Loaded by PersistentPreRunE before any subcommand runs.
var (
	cfg       *config.Config
	logger    = logging.Discard()
	logCloser io.Closer
)

// flagBindings maps config keys to the persistent or local flags that
// override them.
var flagBindings = map[string]string{
	"app.name":          "app",
	"app.pid":           "pid",
	"agent.socket":      "socket",
	"log.level":         "log-level",
	"log.format":        "log-format",
	"log.file":          "log-file",
	"server.transport":  "transport",
	"server.port":       "port",
	"server.rate_limit": "rate-limit",
	"tree.cache_ttl":    "cache-ttl",
	"metrics.addr":      "metrics-addr",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default: $XDG_CONFIG_HOME/uibridge/config.yaml)")
	pf.String("format", "", "Output format: yaml, json")
	pf.Bool("pretty", false, "Indent JSON output")
	pf.String("app", "", "Target application name (accessible name and socket base name)")
	pf.Int("pid", 0, "Target application process id")
	pf.String("socket", "", "Agent socket path (default: derived from --app)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: json, text")
	pf.String("log-file", "", "Append logs to this file instead of stderr")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Read the root persistent flag directly so subcommand local flags
		// cannot shadow it.
		if format, _ := rootCmd.PersistentFlags().GetString("format"); format != "" {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			output.OutputFormat = f
		}
		output.PrettyOutput, _ = rootCmd.PersistentFlags().GetBool("pretty")

		path, _ := rootCmd.PersistentFlags().GetString("config")
		c, err := config.Load(path, cmd.Flags(), flagBindings)
		if err != nil {
			return err
		}
		cfg = c

		log, closer, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		logger, logCloser = log.With("app", cfg.App.Name), closer
		slog.SetDefault(logger)
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if logCloser == nil {
			return nil
		}
		return logCloser.Close()
	}
}
