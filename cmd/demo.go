package cmd

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/uibridge/internal/imaging"
	"github.com/mj1618/uibridge/pkg/agent"
)

var demoAgentCmd = &cobra.Command{
	Use:   "demo-agent",
	Short: "Run a headless host that serves the agent socket",
	Long: `Run a synthetic application that embeds the agent: it draws a test canvas,
records frame timings, replays queued input onto the canvas and serves the
agent socket. Use it to try the agent tools without a real GUI.

Examples:
  uibridge demo-agent --app demo
  uibridge demo-agent --socket /tmp/demo.sock --fps 30`,
	Args: cobra.NoArgs,
	RunE: runDemoAgent,
}

func init() {
	rootCmd.AddCommand(demoAgentCmd)
	demoAgentCmd.Flags().Int("fps", 60, "Target frame rate")
	demoAgentCmd.Flags().Int("width", 640, "Canvas width")
	demoAgentCmd.Flags().Int("height", 400, "Canvas height")
}

var (
	demoBackground = color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	demoButton     = color.RGBA{R: 0x33, G: 0x66, B: 0xcc, A: 0xff}
	demoPressed    = color.RGBA{R: 0x22, G: 0x44, B: 0x88, A: 0xff}
	demoInk        = color.RGBA{A: 0xff}
	demoWhite      = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// demoHost is a minimal immediate-mode app: one button, a text line and a
// pointer marker.
type demoHost struct {
	mu      sync.Mutex
	size    image.Point
	button  image.Rectangle
	pointer image.Point
	clicks  int
	text    string
	scrollY float64
	ag      *agent.Agent
}

func newDemoHost(w, h int) *demoHost {
	return &demoHost{
		size:   image.Pt(w, h),
		button: image.Rect(20, 20, 160, 60),
	}
}

// apply replays one queued input event onto the host state.
func (h *demoHost) apply(ev agent.InputEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := image.Pt(int(ev.X), int(ev.Y))
	switch ev.Kind {
	case agent.InputMove:
		h.pointer = p
	case agent.InputClick, agent.InputDoubleClick:
		h.pointer = p
		if p.In(h.button) {
			h.clicks++
		}
	case agent.InputDrag:
		h.pointer = image.Pt(int(ev.EndX), int(ev.EndY))
	case agent.InputKey:
		if ev.Key == "BackSpace" && h.text != "" {
			h.text = h.text[:len(h.text)-1]
		} else if len(ev.Key) == 1 {
			h.text += ev.Key
		}
	case agent.InputScroll:
		h.pointer = p
		h.scrollY += ev.DeltaY
	}
}

// render draws the current frame, overlay included.
func (h *demoHost) render() *image.RGBA {
	h.mu.Lock()
	defer h.mu.Unlock()
	img := image.NewRGBA(image.Rectangle{Max: h.size})
	draw.Draw(img, img.Bounds(), &image.Uniform{C: demoBackground}, image.Point{}, draw.Src)

	fill := demoButton
	if h.pointer.In(h.button) {
		fill = demoPressed
	}
	imaging.FillRect(img, h.button, fill)
	c := h.button.Min.Add(h.button.Max).Div(2)
	imaging.DrawLabel(img, fmt.Sprintf("Clicked %d", h.clicks), c.X, c.Y, demoWhite, fill)

	field := image.Rect(20, 80, h.size.X-20, 110)
	imaging.FillRect(img, field, demoWhite)
	imaging.DrawRect(img, field, demoInk, 1)
	c = field.Min.Add(field.Max).Div(2)
	imaging.DrawLabel(img, h.text, c.X, c.Y, demoInk, demoWhite)
	imaging.DrawLabel(img, fmt.Sprintf("scroll %.0f", h.scrollY), h.size.X/2, 130, demoInk, demoBackground)

	marker := image.Rect(h.pointer.X-3, h.pointer.Y-3, h.pointer.X+4, h.pointer.Y+4)
	imaging.FillRect(img, marker, color.RGBA{R: 0xcc, A: 0xff})

	if h.ag != nil {
		h.ag.DrawOverlay(img)
	}
	return img
}

func runDemoAgent(cmd *cobra.Command, args []string) error {
	fps, _ := cmd.Flags().GetInt("fps")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	if fps <= 0 || width <= 0 || height <= 0 {
		return fmt.Errorf("--fps, --width and --height must be positive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host := newDemoHost(width, height)
	ag := agent.New(agent.Options{
		SocketPath: cfg.Agent.Socket,
		AppName:    cfg.App.Name,
		MaxFrame:   cfg.Agent.MaxFrame,
		Capture: func(context.Context) (image.Image, error) {
			return host.render(), nil
		},
		Logger: logger,
	})
	host.ag = ag
	// Host logs are captured for get_logs and still reach stderr.
	appLog := slog.New(ag.LogHandler(logger.Handler())).With("component", "demo")

	if err := ag.Start(ctx); err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}
	defer func() {
		ag.Close()
		ag.Wait()
	}()
	appLog.Info("demo agent listening", "socket", ag.Addr(), "fps", fps)
	fmt.Fprintln(cmd.OutOrStdout(), ag.Addr())

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			appLog.Info("demo agent stopping")
			return nil
		case now := <-ticker.C:
			ag.RecordFrame(now.Sub(last))
			last = now
			for _, ev := range ag.TakeInputs() {
				host.apply(ev)
				appLog.Debug("input", "kind", ev.Kind, "x", ev.X, "y", ev.Y, "key", ev.Key)
			}
		}
	}
}
