package atspi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/mj1618/uibridge/internal/platform"
)

func TestDecodeStates(t *testing.T) {
	var words [2]uint32
	set := func(bit int) { words[bit/32] |= 1 << (uint(bit) % 32) }
	set(stateVisible)
	set(stateShowing)
	set(stateEnabled)
	set(stateFocused)
	set(stateCheckable)

	st := decodeStates(words[:])
	if !st.Visible || !st.Showing || !st.Enabled || !st.Focused || !st.Checkable {
		t.Errorf("expected set flags, got %+v", st)
	}
	if st.Checked || st.Defunct || st.Editable {
		t.Errorf("unexpected flags, got %+v", st)
	}
}

func TestDecodeStates_ShortInput(t *testing.T) {
	st := decodeStates([]uint32{1 << stateChecked})
	if !st.Checked {
		t.Error("expected checked")
	}
	if st.Checkable {
		t.Error("high word missing; checkable must be false")
	}
	if decodeStates(nil) != (platform.StateSet{}) {
		t.Error("nil words should decode to zero state")
	}
}

func TestHandleRoundTrip(t *testing.T) {
	h := formatHandle(":1.42", "/org/a11y/atspi/accessible/17")
	if h != ":1.42|/org/a11y/atspi/accessible/17" {
		t.Errorf("formatHandle = %q", h)
	}
	bus, path, err := parseHandle(h)
	if err != nil {
		t.Fatal(err)
	}
	if bus != ":1.42" || path != "/org/a11y/atspi/accessible/17" {
		t.Errorf("parseHandle = %q %q", bus, path)
	}
}

func TestParseHandle_Invalid(t *testing.T) {
	for _, h := range []platform.Handle{"", "no-separator", "|/path", ":1.1|not a path"} {
		if _, _, err := parseHandle(h); !errors.Is(err, platform.ErrElementGone) {
			t.Errorf("parseHandle(%q) = %v, want ErrElementGone", h, err)
		}
	}
}

func TestShortInterfaces(t *testing.T) {
	got := shortInterfaces([]string{"org.a11y.atspi.Accessible", "org.a11y.atspi.Text", "Custom"})
	want := []string{"Accessible", "Text", "Custom"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("shortInterfaces[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unknown object", dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownObject"}, platform.ErrElementGone},
		{"service gone", dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}, platform.ErrElementGone},
		{"no interface", dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownMethod"}, platform.ErrInterfaceMissing},
		{"pointer error", &dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownInterface"}, platform.ErrInterfaceMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify("GetRoleName", tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}

	plain := fmt.Errorf("broken pipe")
	if got := classify("GetState", plain); !errors.Is(got, plain) {
		t.Errorf("unclassified error should wrap the cause, got %v", got)
	}
	if classify("x", nil) != nil {
		t.Error("nil stays nil")
	}
}
