package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/imaging"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/poll"
	"github.com/mj1618/uibridge/pkg/protocol"
)

// ActionResult is the output of an action command.
type ActionResult struct {
	OK     bool   `yaml:"ok"               json:"ok"`
	Action string `yaml:"action"           json:"action"`
	ID     uint64 `yaml:"id,omitempty"     json:"id,omitempty"`
	Detail string `yaml:"detail,omitempty" json:"detail,omitempty"`
}

var clickCmd = &cobra.Command{
	Use:   "click",
	Short: "Click on an element or at coordinates",
	Long: `Invoke an element's click action by ID (from "uibridge tree"), or click at
window coordinates through the in-app agent.

Examples:
  uibridge click --id 42
  uibridge click --x 120 --y 48 --button right
  uibridge click --x 120 --y 48 --double`,
	Args: cobra.NoArgs,
	RunE: runClick,
}

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Move keyboard focus to an element",
	Args:  cobra.NoArgs,
	RunE:  runFocus,
}

var setValueCmd = &cobra.Command{
	Use:   "set-value",
	Short: "Set a range element's value directly",
	Long: `Set a slider, spin button or progress value through the accessibility
Value interface. The value must lie within the element's range.`,
	Args: cobra.NoArgs,
	RunE: runSetValue,
}

var typeCmd = &cobra.Command{
	Use:   "type",
	Short: "Replace an element's text or send keys",
	Long: `With --id, replace an editable element's text through the accessibility
EditableText interface. With --key, send a key name, combination or text to
the focused widget through the in-app agent.

Examples:
  uibridge type --id 17 --text "hello"
  uibridge type --key ctrl+a
  uibridge type --key Enter`,
	Args: cobra.NoArgs,
	RunE: runType,
}

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for a UI condition to be met",
	Long: `Poll the accessibility tree until an element matching --label and/or
--role appears (or disappears with --gone), or until element --id reaches
--state.

Examples:
  uibridge wait --label Saved --timeout 10s
  uibridge wait --role dialog --gone
  uibridge wait --id 42 --state enabled`,
	Args: cobra.NoArgs,
	RunE: runWait,
}

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture the target window through the in-app agent",
	Long: `Capture the target window, or one element's bounds with --id, as PNG.
Without --output the image is written to stdout as base64.`,
	Args: cobra.NoArgs,
	RunE: runScreenshot,
}

func init() {
	rootCmd.AddCommand(clickCmd)
	clickCmd.Flags().Uint64("id", 0, "Element ID to click")
	clickCmd.Flags().Float64("x", 0, "Window X coordinate")
	clickCmd.Flags().Float64("y", 0, "Window Y coordinate")
	clickCmd.Flags().String("button", "left", "Mouse button: left, right, middle")
	clickCmd.Flags().Bool("double", false, "Double-click (coordinates only)")

	rootCmd.AddCommand(focusCmd)
	focusCmd.Flags().Uint64("id", 0, "Element ID to focus")
	_ = focusCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(setValueCmd)
	setValueCmd.Flags().Uint64("id", 0, "Element ID")
	setValueCmd.Flags().Float64("value", 0, "New value")
	_ = setValueCmd.MarkFlagRequired("id")
	_ = setValueCmd.MarkFlagRequired("value")

	rootCmd.AddCommand(typeCmd)
	typeCmd.Flags().Uint64("id", 0, "Editable element ID")
	typeCmd.Flags().String("text", "", "Replacement text (with --id)")
	typeCmd.Flags().String("key", "", "Key name, combination or text to send")

	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().String("label", "", "Label substring to wait for")
	waitCmd.Flags().Bool("exact", false, "Require an exact label match")
	waitCmd.Flags().String("role", "", "Role to wait for")
	waitCmd.Flags().Bool("gone", false, "Wait until no element matches")
	waitCmd.Flags().Uint64("id", 0, "Element ID for --state")
	waitCmd.Flags().String("state", "", "State to wait for: visible, enabled, focused, checked")
	waitCmd.Flags().Bool("expected", true, "Expected state value")
	waitCmd.Flags().Duration("timeout", 0, "Max time to wait (default: wait.timeout)")
	waitCmd.Flags().Duration("interval", 0, "Polling interval (default: wait.interval)")

	rootCmd.AddCommand(screenshotCmd)
	screenshotCmd.Flags().Uint64("id", 0, "Capture this element's bounds")
	screenshotCmd.Flags().Float64("scale", 0, "Scale factor up to 4 (window captures only)")
	screenshotCmd.Flags().String("output", "", "Output PNG path (default: stdout as base64)")
	screenshotCmd.Flags().String("annotate", "", "Draw element boxes labelled with ids or coords")
}

func runClick(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetUint64("id")
	x, _ := cmd.Flags().GetFloat64("x")
	y, _ := cmd.Flags().GetFloat64("y")
	button, _ := cmd.Flags().GetString("button")
	double, _ := cmd.Flags().GetBool("double")
	byID := cmd.Flags().Changed("id")
	byPoint := cmd.Flags().Changed("x") || cmd.Flags().Changed("y")
	if byID == byPoint {
		return fmt.Errorf("specify either --id or --x/--y")
	}

	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		if byID {
			res, err := b.disp.ClickElement(ctx, id)
			if err != nil {
				return err
			}
			return printAction("click", id, res.Action, cmd)
		}
		var err error
		if double {
			err = b.disp.DoubleClick(ctx, x, y, button)
		} else {
			err = b.disp.ClickAt(ctx, x, y, button)
		}
		if err != nil {
			return err
		}
		return printAction("click", 0, fmt.Sprintf("%s at %.0f,%.0f", button, x, y), cmd)
	})
}

func runFocus(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetUint64("id")
	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		if err := b.disp.FocusElement(ctx, id); err != nil {
			return err
		}
		return printAction("focus", id, "", cmd)
	})
}

func runSetValue(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetUint64("id")
	v, _ := cmd.Flags().GetFloat64("value")
	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		val, err := b.disp.SetValue(ctx, id, v)
		if err != nil {
			return err
		}
		return output.Fprint(cmd.OutOrStdout(), val)
	})
}

func runType(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetUint64("id")
	text, _ := cmd.Flags().GetString("text")
	key, _ := cmd.Flags().GetString("key")
	byID := cmd.Flags().Changed("id")
	if byID == (key != "") {
		return fmt.Errorf("specify either --id with --text, or --key")
	}
	if byID && !cmd.Flags().Changed("text") {
		return fmt.Errorf("--text is required with --id")
	}

	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		if byID {
			if err := b.disp.SetText(ctx, id, text); err != nil {
				return err
			}
			return printAction("set_text", id, "", cmd)
		}
		if err := b.disp.KeyboardInput(ctx, key); err != nil {
			return err
		}
		return printAction("keyboard_input", 0, key, cmd)
	})
}

func runWait(cmd *cobra.Command, args []string) error {
	label, _ := cmd.Flags().GetString("label")
	exact, _ := cmd.Flags().GetBool("exact")
	role, _ := cmd.Flags().GetString("role")
	gone, _ := cmd.Flags().GetBool("gone")
	id, _ := cmd.Flags().GetUint64("id")
	state, _ := cmd.Flags().GetString("state")
	expected, _ := cmd.Flags().GetBool("expected")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	interval, _ := cmd.Flags().GetDuration("interval")

	opts := poll.Options{Timeout: cfg.Wait.Timeout, Interval: cfg.Wait.Interval}
	if timeout > 0 {
		opts.Timeout = timeout
	}
	if interval > 0 {
		opts.Interval = interval
	}

	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		if state != "" {
			res, err := b.disp.WaitForState(ctx, id, state, expected, opts)
			if perr := output.Fprint(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
			return err
		}
		q := dispatch.ElementQuery{Label: label, Exact: exact, Role: role}
		res, err := b.disp.WaitForElement(ctx, q, !gone, opts)
		if perr := output.Fprint(cmd.OutOrStdout(), res); perr != nil {
			return perr
		}
		return err
	})
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetUint64("id")
	scale, _ := cmd.Flags().GetFloat64("scale")
	path, _ := cmd.Flags().GetString("output")
	annotate, _ := cmd.Flags().GetString("annotate")

	var mode imaging.LabelMode
	switch annotate {
	case "":
	case "ids":
		mode = imaging.LabelIDs
	case "coords":
		mode = imaging.LabelCenters
	default:
		return fmt.Errorf("unsupported --annotate mode: %s (use ids or coords)", annotate)
	}
	byID := cmd.Flags().Changed("id")
	if byID && annotate != "" {
		return fmt.Errorf("--annotate applies to window captures only")
	}

	return withBridge(cmd, func(ctx context.Context, b *bridge) error {
		var (
			shot protocol.ScreenshotPayload
			err  error
		)
		if byID {
			shot, err = b.disp.ScreenshotElement(ctx, id)
		} else {
			shot, err = b.disp.TakeScreenshot(ctx, scale)
		}
		if err != nil {
			return err
		}
		data, err := base64.StdEncoding.DecodeString(shot.Data)
		if err != nil {
			return fmt.Errorf("decode screenshot: %w", err)
		}
		if annotate != "" {
			if data, err = annotateShot(ctx, b, data, mode); err != nil {
				return err
			}
		}
		if path == "" {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(data))
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write screenshot: %w", err)
		}
		return printAction("screenshot", id, fmt.Sprintf("%dx%d %s", shot.Width, shot.Height, path), cmd)
	})
}

// annotateShot draws the visible elements of a fresh tree onto a window
// capture. The root element's bounds map screen coordinates to pixels.
func annotateShot(ctx context.Context, b *bridge, data []byte, mode imaging.LabelMode) ([]byte, error) {
	img, err := imaging.DecodePNG(data)
	if err != nil {
		return nil, err
	}
	t, err := b.disp.Build(ctx)
	if err != nil {
		return nil, err
	}
	root, ok := t.Get(t.Root)
	if !ok || root.Bounds == nil || root.Bounds.Empty() {
		return nil, fmt.Errorf("window bounds unknown; cannot annotate")
	}
	nodes := model.FilterNodes(t.Nodes, nil, root.Bounds, true)
	return imaging.EncodePNG(imaging.Annotate(img, nodes, *root.Bounds, mode))
}

func printAction(action string, id uint64, detail string, cmd *cobra.Command) error {
	return output.Fprint(cmd.OutOrStdout(), ActionResult{OK: true, Action: action, ID: id, Detail: detail})
}
