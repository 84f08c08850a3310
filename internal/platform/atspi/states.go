package atspi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/mj1618/uibridge/internal/platform"
)

// AT-SPI state bit positions (AtspiStateType).
const (
	stateActive     = 1
	stateChecked    = 4
	stateDefunct    = 6
	stateEditable   = 7
	stateEnabled    = 8
	stateFocusable  = 11
	stateFocused    = 12
	statePressed    = 20
	stateSelected   = 23
	stateSensitive  = 24
	stateShowing    = 25
	stateVisible    = 30
	stateCheckable  = 41
	interfacePrefix = "org.a11y.atspi."
)

func hasState(words []uint32, bit int) bool {
	w := bit / 32
	if w >= len(words) {
		return false
	}
	return words[w]&(1<<(uint(bit)%32)) != 0
}

// decodeStates converts the two-word AT-SPI state bitfield.
func decodeStates(words []uint32) platform.StateSet {
	return platform.StateSet{
		Visible:   hasState(words, stateVisible),
		Showing:   hasState(words, stateShowing),
		Enabled:   hasState(words, stateEnabled),
		Sensitive: hasState(words, stateSensitive),
		Focusable: hasState(words, stateFocusable),
		Focused:   hasState(words, stateFocused),
		Checkable: hasState(words, stateCheckable),
		Checked:   hasState(words, stateChecked),
		Pressed:   hasState(words, statePressed),
		Selected:  hasState(words, stateSelected),
		Editable:  hasState(words, stateEditable),
		Defunct:   hasState(words, stateDefunct),
	}
}

// shortInterfaces strips the AT-SPI namespace from interface names.
func shortInterfaces(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, strings.TrimPrefix(n, interfacePrefix))
	}
	return out
}

// formatHandle encodes a bus reference as a Handle.
func formatHandle(bus string, path dbus.ObjectPath) platform.Handle {
	return platform.Handle(bus + "|" + string(path))
}

// parseHandle decodes a Handle produced by formatHandle.
func parseHandle(h platform.Handle) (string, dbus.ObjectPath, error) {
	bus, path, ok := strings.Cut(string(h), "|")
	if !ok || bus == "" || !dbus.ObjectPath(path).IsValid() {
		return "", "", fmt.Errorf("invalid handle %q: %w", h, platform.ErrElementGone)
	}
	return bus, dbus.ObjectPath(path), nil
}

// nullPath is the AT-SPI reference for "no object".
const nullPath = dbus.ObjectPath("/org/a11y/atspi/null")

// classify maps D-Bus error names onto platform errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch dbusErrorName(err) {
	case "org.freedesktop.DBus.Error.UnknownObject",
		"org.freedesktop.DBus.Error.ServiceUnknown",
		"org.freedesktop.DBus.Error.NameHasNoOwner":
		return fmt.Errorf("%s: %w", op, platform.ErrElementGone)
	case "org.freedesktop.DBus.Error.UnknownMethod",
		"org.freedesktop.DBus.Error.UnknownInterface",
		"org.freedesktop.DBus.Error.UnknownProperty":
		return fmt.Errorf("%s: %w", op, platform.ErrInterfaceMissing)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func dbusErrorName(err error) string {
	var de dbus.Error
	if errors.As(err, &de) {
		return de.Name
	}
	var dp *dbus.Error
	if errors.As(err, &dp) && dp != nil {
		return dp.Name
	}
	return ""
}
