package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/uibridge/internal/config"
	"github.com/mj1618/uibridge/internal/server"
	"github.com/mj1618/uibridge/internal/version"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server exposing uibridge tools",
	Long: `Start a Model Context Protocol (MCP) server that exposes the bridge as
tools. AI agents call tools directly without shell overhead.

Supported transports:
  stdio             Standard I/O (default, for local MCP clients)
  streamable-http   Streamable HTTP transport at /mcp, with /health and /metrics

Examples:
  uibridge serve --app gedit
  uibridge serve --transport streamable-http --port 8080
  uibridge serve --cache-ttl -1ms --metrics-addr 127.0.0.1:9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", config.TransportStdio, "Transport: stdio, streamable-http")
	serveCmd.Flags().Int("port", 8080, "HTTP port for streamable-http transport")
	serveCmd.Flags().Duration("cache-ttl", 250*time.Millisecond, "Element tree cache TTL (negative disables the cache)")
	serveCmd.Flags().Float64("rate-limit", 0, "Max HTTP requests per second for streamable-http (0 = unlimited)")
	serveCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBridge(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open bridge: %w", err)
	}
	defer b.Close()

	srv := server.New(server.Options{
		Name:       "uibridge",
		Version:    version.Version,
		App:        cfg.App.Name,
		Dispatcher: b.disp,
		Metrics:    b.metrics,
		Logger:     logger,
	})

	if addr := cfg.Metrics.Addr; addr != "" {
		ms := &http.Server{Addr: addr, Handler: b.metrics.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", addr, "err", err)
			}
		}()
		defer shutdown(ms)
		logger.Info("serving metrics", "addr", addr)
	}

	switch cfg.Server.Transport {
	case config.TransportStdio:
		logger.Info("serving MCP", "transport", "stdio")
		err := srv.ServeStdio(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case config.TransportHTTP:
		return serveHTTP(ctx, srv, b)
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", cfg.Server.Transport)
	}
}

func serveHTTP(ctx context.Context, srv *server.Server, b *bridge) error {
	hs := srv.NewHTTPServer(server.HTTPOptions{
		Addr:      fmt.Sprintf(":%d", cfg.Server.Port),
		RateLimit: cfg.Server.RateLimit,
		Burst:     cfg.Server.Burst,
		Metrics:   b.metrics.Handler(),
	})
	errc := make(chan error, 1)
	go func() {
		logger.Info("serving MCP", "transport", "streamable-http", "addr", hs.Addr)
		errc <- hs.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown(hs)
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdown(hs *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", "addr", hs.Addr, "err", err)
	}
}
