// Package server exposes the dispatcher as MCP tools over stdio or
// streamable HTTP.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/metrics"
	"github.com/mj1618/uibridge/internal/snapshot"
)

// Options configures a Server.
type Options struct {
	Name       string
	Version    string
	App        string // reported in tree results
	Dispatcher *dispatch.Dispatcher
	Snapshots  *snapshot.Store // nil: a fresh in-memory store
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Server wraps the MCP server with the dispatcher and snapshot store.
type Server struct {
	d       *dispatch.Dispatcher
	snaps   *snapshot.Store
	metrics *metrics.Metrics
	log     *slog.Logger
	app     string
	mcp     *mcpserver.MCPServer
}

// New creates an MCP server with every uibridge tool registered.
func New(opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "uibridge"
	}
	if opts.Snapshots == nil {
		opts.Snapshots = snapshot.NewStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		d:       opts.Dispatcher,
		snaps:   opts.Snapshots,
		metrics: opts.Metrics,
		log:     logger.With("component", "server"),
		app:     opts.App,
	}
	s.mcp = mcpserver.NewMCPServer(opts.Name, opts.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	s.registerTools()
	return s
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

// Snapshots returns the snapshot store.
func (s *Server) Snapshots() *snapshot.Store { return s.snaps }

// ServeStdio serves MCP over in and out until ctx ends or in closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// HTTPOptions configures the streamable HTTP transport.
type HTTPOptions struct {
	Addr      string
	RateLimit float64 // requests per second, 0 = unlimited
	Burst     int
	Metrics   http.Handler // mounted at /metrics when non-nil
}

// NewHTTPServer returns an http.Server carrying the MCP endpoint at /mcp,
// /health, and optionally /metrics.
func (s *Server) NewHTTPServer(opts HTTPOptions) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.mcp))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.Burst, 1))
	}
	return &http.Server{
		Addr:              opts.Addr,
		Handler:           RateLimit(limiter, mux),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}
}

// RateLimit rejects requests beyond limiter's budget with 429. /health and
// /metrics are exempt. A nil limiter passes everything through.
func RateLimit(limiter *rate.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
