package server

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mj1618/uibridge/internal/dispatch"
)

func idParam() mcp.ToolOption {
	return mcp.WithNumber("id", mcp.Description("Element ID from get_ui_tree or a find tool"), mcp.Required())
}

func buttonParam() mcp.ToolOption {
	return mcp.WithString("button", mcp.Description("Mouse button: left, right, middle (default: left)"))
}

func saveParam() mcp.ToolOption {
	return mcp.WithBoolean("save", mcp.Description("Write the PNG to a temp file and return its path instead of the image"))
}

func waitParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("timeout_ms", mcp.Description("Max time to wait in ms (default: 5000)")),
		mcp.WithNumber("interval_ms", mcp.Description("Polling interval in ms (default: 100)")),
	}
}

func highlightParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("color", mcp.Description("Outline color #RRGGBB or #RRGGBBAA (default: #ff0000)")),
		mcp.WithNumber("duration_ms", mcp.Description("How long the overlay stays, in ms (default: 3000)")),
		mcp.WithString("label", mcp.Description("Text drawn next to the outline")),
	}
}

func matchParam() mcp.ToolOption {
	return mcp.WithString("match", mcp.Description("Pair nodes by 'id' (default) or by 'content' when ids are traversal-order"))
}

func imagePairParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("image_a", mcp.Description("First image as base64 PNG")),
		mcp.WithString("image_b", mcp.Description("Second image as base64 PNG")),
		mcp.WithString("path_a", mcp.Description("First image as a PNG file path")),
		mcp.WithString("path_b", mcp.Description("Second image as a PNG file path")),
	}
}

func (s *Server) add(name, desc string, fn toolFunc, opts ...mcp.ToolOption) {
	opts = append([]mcp.ToolOption{mcp.WithDescription(desc)}, opts...)
	s.mcp.AddTool(mcp.NewTool(name, opts...), s.handler(name, fn))
}

func (s *Server) registerTools() {
	// tree and queries
	s.add("get_ui_tree", "Read the target application's accessibility tree. Returns elements with IDs, roles, labels, bounds and states.", s.getUITree,
		mcp.WithBoolean("fresh", mcp.Description("Bypass the tree cache")),
		mcp.WithString("roles", mcp.Description("Comma-separated roles to keep (e.g. 'button,textfield' or 'interactive')")),
		mcp.WithBoolean("visible_only", mcp.Description("Only return visible elements")),
	)
	s.add("find_by_label", "Find elements whose label contains a substring (case-sensitive)", s.findByLabel,
		mcp.WithString("label", mcp.Description("Label substring"), mcp.Required()))
	s.add("find_by_label_exact", "Find elements whose label equals the given text", s.findByLabelExact,
		mcp.WithString("label", mcp.Description("Exact label"), mcp.Required()))
	s.add("find_by_role", "Find elements by role (button, checkbox, textfield, ...)", s.findByRole,
		mcp.WithString("role", mcp.Description("Role name"), mcp.Required()))
	s.add("get_element", "Get one element by ID", withID(s.getElement), idParam())

	// element actions
	s.add("click_element", "Invoke the element's click action (click, press, activate, jump or toggle)", withID(s.clickElement), idParam())
	s.add("get_bounds", "Get the element's screen rectangle", withID(s.getBounds), idParam())
	s.add("focus_element", "Move keyboard focus to the element", withID(s.focusElement), idParam())
	s.add("scroll_to_element", "Scroll the element into view", withID(s.scrollToElement), idParam())
	s.add("drag_element", "Drag from the element's centre to a point", withID(s.dragElement), idParam(),
		mcp.WithNumber("end_x", mcp.Description("Drop X coordinate"), mcp.Required()),
		mcp.WithNumber("end_y", mcp.Description("Drop Y coordinate"), mcp.Required()),
		buttonParam(),
	)
	s.add("get_value", "Read a range element's value with min, max and step", withID(s.getValue), idParam())
	s.add("set_value", "Set a range element's value", withID(s.setValue), idParam(),
		mcp.WithNumber("value", mcp.Description("New value within the element's range"), mcp.Required()))

	// text
	s.add("get_text", "Read an element's text, character count, caret and selections", withID(s.getText), idParam())
	s.add("set_text", "Replace an editable element's text", withID(s.setText), idParam(),
		mcp.WithString("text", mcp.Description("New contents"), mcp.Required()))
	s.add("get_text_selection", "Get the selected character range", withID(s.getTextSelection), idParam())
	s.add("set_text_selection", "Select a character range in the focused element; -1 means end of text", withID(s.setTextSelection), idParam(),
		mcp.WithNumber("start", mcp.Description("Start offset"), mcp.Required()),
		mcp.WithNumber("end", mcp.Description("End offset"), mcp.Required()),
	)
	s.add("get_caret_position", "Get the caret offset", withID(s.getCaretPosition), idParam())
	s.add("set_caret_position", "Move the caret in the focused element; -1 means end of text", withID(s.setCaretPosition), idParam(),
		mcp.WithNumber("offset", mcp.Description("Caret offset"), mcp.Required()))

	// selection
	s.add(dispatch.OpSelectItem, "Select the child item at index. Not available for combo boxes; use click_at instead.", withID(s.selectItem), idParam(),
		mcp.WithNumber("index", mcp.Description("Child index"), mcp.Required()))
	s.add(dispatch.OpDeselectItem, "Deselect the child item at index", withID(s.deselectItem), idParam(),
		mcp.WithNumber("index", mcp.Description("Child index"), mcp.Required()))
	s.add(dispatch.OpSelectedCount, "Count selected child items", withID(s.getSelectedCount), idParam())
	s.add(dispatch.OpSelectAll, "Select every child item", withID(s.selectAll), idParam())
	s.add(dispatch.OpClearSelection, "Deselect every child item", withID(s.clearSelection), idParam())

	// state
	s.add("is_visible", "Report whether the element is visible and showing", s.stateTool(dispatch.StateVisible, s.d.IsVisible), idParam())
	s.add("is_enabled", "Report whether the element is enabled", s.stateTool(dispatch.StateEnabled, s.d.IsEnabled), idParam())
	s.add("is_focused", "Report whether the element has focus", s.stateTool(dispatch.StateFocused, s.d.IsFocused), idParam())
	s.add("is_checked", "Report checked, unchecked or not_checkable", withID(s.isChecked), idParam())

	// coordinate input through the agent
	s.add("click_at", "Click at window coordinates", s.clickAt,
		mcp.WithNumber("x", mcp.Required()), mcp.WithNumber("y", mcp.Required()), buttonParam())
	s.add("double_click", "Double-click at window coordinates", s.doubleClick,
		mcp.WithNumber("x", mcp.Required()), mcp.WithNumber("y", mcp.Required()), buttonParam())
	s.add("hover", "Move the pointer to window coordinates", s.hover,
		mcp.WithNumber("x", mcp.Required()), mcp.WithNumber("y", mcp.Required()))
	s.add("drag", "Press at a start point and release at an end point", s.drag,
		mcp.WithNumber("start_x", mcp.Required()), mcp.WithNumber("start_y", mcp.Required()),
		mcp.WithNumber("end_x", mcp.Required()), mcp.WithNumber("end_y", mcp.Required()),
		buttonParam(),
	)
	s.add("keyboard_input", "Send a key name (e.g. 'Enter', 'ctrl+a') or text to the focused widget", s.keyboardInput,
		mcp.WithString("key", mcp.Description("Key name, combination or text"), mcp.Required()))
	s.add("scroll", "Scroll at window coordinates", s.scroll,
		mcp.WithNumber("x", mcp.Required()), mcp.WithNumber("y", mcp.Required()),
		mcp.WithNumber("delta_x", mcp.Description("Horizontal scroll amount")),
		mcp.WithNumber("delta_y", mcp.Description("Vertical scroll amount, positive is down")),
	)

	// screenshots
	s.add("take_screenshot", "Capture the target window as PNG", s.takeScreenshot,
		mcp.WithNumber("scale", mcp.Description("Scale factor up to 4 (default: native size)")), saveParam())
	s.add("screenshot_element", "Capture an element's bounds as PNG", withID(s.screenshotElement), idParam(), saveParam())
	s.add("screenshot_region", "Capture a window region as PNG", s.screenshotRegion,
		mcp.WithNumber("x", mcp.Required()), mcp.WithNumber("y", mcp.Required()),
		mcp.WithNumber("width", mcp.Required()), mcp.WithNumber("height", mcp.Required()),
		saveParam(),
	)
	s.add("compare_screenshots", "Score the similarity of two PNGs in [0, 1]", s.compareScreenshots,
		append(imagePairParams(),
			mcp.WithString("algorithm", mcp.Description("mssim, rms or hybrid (default: hybrid)")))...)
	s.add("diff_screenshots", "Render changed pixels of two PNGs in red", s.diffScreenshots,
		append(imagePairParams(), saveParam())...)

	// waits
	s.add("wait_for_element", "Wait until an element matching label and/or role appears, or disappears", s.waitForElement,
		append(waitParams(),
			mcp.WithString("label", mcp.Description("Label substring, or exact label with exact")),
			mcp.WithBoolean("exact", mcp.Description("Require an exact label match")),
			mcp.WithString("role", mcp.Description("Role name")),
			mcp.WithBoolean("disappear", mcp.Description("Wait until no element matches")),
		)...)
	s.add("wait_for_state", "Wait until an element's state flag has the expected value", withID(s.waitForState),
		append(waitParams(), idParam(),
			mcp.WithString("state", mcp.Description("visible, enabled, focused or checked"), mcp.Required()),
			mcp.WithBoolean("expected", mcp.Description("Expected value (default: true)")),
		)...)

	// highlights
	s.add("highlight_element", "Draw an overlay outline over an element", withID(s.highlightElement),
		append(highlightParams(), idParam())...)
	s.add("highlight_region", "Draw an overlay outline over a window region", s.highlightRegion,
		append(highlightParams(),
			mcp.WithNumber("x", mcp.Required()), mcp.WithNumber("y", mcp.Required()),
			mcp.WithNumber("width", mcp.Required()), mcp.WithNumber("height", mcp.Required()),
		)...)
	s.add("clear_highlights", "Remove every overlay", s.clearHighlights)

	// snapshots
	s.add("save_snapshot", "Build a fresh tree and save it under a name, replacing any previous one", s.saveSnapshot,
		mcp.WithString("name", mcp.Required()))
	s.add("load_snapshot", "Return a saved tree", s.loadSnapshot, mcp.WithString("name", mcp.Required()))
	s.add("diff_snapshots", "Diff two saved trees", s.diffSnapshots,
		mcp.WithString("a", mcp.Description("Earlier snapshot"), mcp.Required()),
		mcp.WithString("b", mcp.Description("Later snapshot"), mcp.Required()),
		matchParam(),
	)
	s.add("diff_current", "Diff a saved tree against a fresh one", s.diffCurrent,
		mcp.WithString("name", mcp.Required()), matchParam())
	s.add("list_snapshots", "List saved snapshots", s.listSnapshots)
	s.add("delete_snapshot", "Delete a saved snapshot", s.deleteSnapshot, mcp.WithString("name", mcp.Required()))

	// telemetry
	s.add("get_frame_stats", "Live frame timing statistics", s.getFrameStats)
	s.add("start_perf_recording", "Start recording frame timings; 0 records until stopped", s.startPerfRecording,
		mcp.WithNumber("duration_ms", mcp.Description("Recording length in ms")))
	s.add("stop_perf_recording", "Stop an open-ended recording", s.stopPerfRecording)
	s.add("get_perf_report", "Summarize the last recording with percentiles", s.getPerfReport)
	s.add("get_logs", "Captured application logs at or above a level, oldest first", s.getLogs,
		mcp.WithString("level", mcp.Description("TRACE, DEBUG, INFO, WARN or ERROR (default: all)")),
		mcp.WithNumber("limit", mcp.Description("Most recent entries to return (default: all)")),
	)
	s.add("clear_logs", "Empty the captured log buffer", s.clearLogs)

	// connection
	s.add("ping", "Round-trip to the in-app agent", s.ping)
	s.add("check_connection", "Report agent and accessibility reachability", s.checkConnection)
}
