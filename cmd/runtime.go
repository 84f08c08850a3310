package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/mj1618/uibridge/internal/channel"
	"github.com/mj1618/uibridge/internal/config"
	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/indexer"
	"github.com/mj1618/uibridge/internal/metrics"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/poll"
)

// bridge holds the live connections to one target application.
type bridge struct {
	provider platform.Provider
	client   *channel.Client
	disp     *dispatch.Dispatcher
	metrics  *metrics.Metrics
}

// openBridge connects the accessibility source and prepares the agent
// channel. A missing source is logged, not fatal: agent tools keep working
// and tree tools report TargetUnavailable.
func openBridge(ctx context.Context, c *config.Config, log *slog.Logger) (*bridge, error) {
	m := metrics.New()

	src, err := platform.NewSource(ctx, platform.SourceOptions{
		AppName:     c.App.Name,
		PID:         c.App.PID,
		CallTimeout: c.Tree.CallTimeout,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, platform.ErrUnsupported) {
			log.Warn("accessibility source unavailable", "err", err)
		} else {
			log.Info("accessibility source unsupported on this platform")
		}
		src = nil
	}

	var limiter *rate.Limiter
	if c.Agent.InputRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.Agent.InputRate), max(c.Agent.InputBurst, 1))
	}
	client := channel.New(channel.Options{
		SocketPath:   c.Agent.Socket,
		AppName:      c.App.Name,
		DialTimeout:  c.Agent.DialTimeout,
		CallTimeout:  c.Agent.CallTimeout,
		MinBackoff:   c.Agent.MinBackoff,
		MaxBackoff:   c.Agent.MaxBackoff,
		MaxFrame:     c.Agent.MaxFrame,
		InputLimiter: limiter,
		Logger:       log,
		Metrics:      m,
	})

	b := &bridge{
		provider: platform.Provider{Source: src, Agent: client},
		client:   client,
		metrics:  m,
	}

	var ix *indexer.Indexer
	if src != nil {
		ix = indexer.New(src, indexer.Options{
			CallTimeout: c.Tree.CallTimeout,
			MaxNodes:    c.Tree.MaxNodes,
			CacheTTL:    c.Tree.CacheTTL,
			Logger:      log,
			Metrics:     m,
		})
	}
	b.disp = dispatch.New(src, client, ix, dispatch.Options{
		Wait:   poll.Options{Timeout: c.Wait.Timeout, Interval: c.Wait.Interval},
		Logger: log,
	})
	return b, nil
}

func (b *bridge) Close() error {
	return errors.Join(b.client.Close(), b.provider.Close())
}

// withBridge opens a bridge for one command and closes it afterwards.
func withBridge(cmd *cobra.Command, fn func(ctx context.Context, b *bridge) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	b, err := openBridge(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}
