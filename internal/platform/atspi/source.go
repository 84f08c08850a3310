package atspi

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
)

const (
	registryBus  = "org.a11y.atspi.Registry"
	registryRoot = dbus.ObjectPath("/org/a11y/atspi/accessible/root")

	ifaceAccessible   = "org.a11y.atspi.Accessible"
	ifaceAction       = "org.a11y.atspi.Action"
	ifaceComponent    = "org.a11y.atspi.Component"
	ifaceValue        = "org.a11y.atspi.Value"
	ifaceText         = "org.a11y.atspi.Text"
	ifaceEditableText = "org.a11y.atspi.EditableText"
	ifaceSelection    = "org.a11y.atspi.Selection"
	ifaceProperties   = "org.freedesktop.DBus.Properties"

	coordTypeScreen = uint32(0)
	scrollAnywhere  = uint32(6)

	defaultCallTimeout = 2 * time.Second
)

// reference is the (so) struct AT-SPI uses to point at an object.
type reference struct {
	Bus  string
	Path dbus.ObjectPath
}

type extents struct {
	X, Y, Width, Height int32
}

type actionInfo struct {
	Name        string
	Description string
	KeyBinding  string
}

// Source is a platform.TreeSource backed by the AT-SPI2 bus. Calls are
// serialized onto the single bus connection.
type Source struct {
	conn    *dbus.Conn
	opts    platform.SourceOptions
	mu      sync.Mutex
	timeout time.Duration
}

// Open connects to the accessibility bus. The bus address comes from
// AT_SPI_BUS_ADDRESS or, failing that, from the org.a11y.Bus service on the
// session bus.
func Open(ctx context.Context, opts platform.SourceOptions) (*Source, error) {
	addr := os.Getenv("AT_SPI_BUS_ADDRESS")
	if addr == "" {
		var err error
		addr, err = busAddress(ctx)
		if err != nil {
			return nil, err
		}
	}
	conn, err := dbus.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("connect accessibility bus: %v: %w", err, platform.ErrSourceUnavailable)
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Source{conn: conn, opts: opts, timeout: timeout}, nil
}

func busAddress(ctx context.Context) (string, error) {
	session, err := dbus.ConnectSessionBus()
	if err != nil {
		return "", fmt.Errorf("connect session bus: %v: %w", err, platform.ErrSourceUnavailable)
	}
	defer session.Close()
	var addr string
	err = session.Object("org.a11y.Bus", "/org/a11y/bus").
		CallWithContext(ctx, "org.a11y.Bus.GetAddress", 0).Store(&addr)
	if err != nil {
		return "", fmt.Errorf("get accessibility bus address: %v: %w", err, platform.ErrSourceUnavailable)
	}
	return addr, nil
}

func (s *Source) Close() error {
	return s.conn.Close()
}

func (s *Source) StableHandles() bool { return true }

// call invokes method on the object behind h with a per-call timeout and
// stores the reply into out.
func (s *Source) call(ctx context.Context, h platform.Handle, method string, args []any, out ...any) error {
	bus, path, err := parseHandle(h)
	if err != nil {
		return err
	}
	return s.callObject(ctx, bus, path, method, args, out...)
}

func (s *Source) callObject(ctx context.Context, bus string, path dbus.ObjectPath, method string, args []any, out ...any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conn.Object(bus, path).CallWithContext(ctx, method, 0, args...)
	if c.Err != nil {
		return classify(method, c.Err)
	}
	if len(out) == 0 {
		return nil
	}
	if err := c.Store(out...); err != nil {
		return fmt.Errorf("%s: decode reply: %w", method, err)
	}
	return nil
}

func (s *Source) property(ctx context.Context, h platform.Handle, iface, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := s.call(ctx, h, ifaceProperties+".Get", []any{iface, name}, &v)
	return v, err
}

// callBool invokes a method returning a success flag; false maps to
// ErrRejected.
func (s *Source) callBool(ctx context.Context, h platform.Handle, method string, args ...any) error {
	var ok bool
	if err := s.call(ctx, h, method, args, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", method, platform.ErrRejected)
	}
	return nil
}

// Root finds the target application among the registry's children by
// name or process id.
func (s *Source) Root(ctx context.Context) (platform.Handle, error) {
	var apps []reference
	if err := s.callObject(ctx, registryBus, registryRoot, ifaceAccessible+".GetChildren", nil, &apps); err != nil {
		return "", fmt.Errorf("list applications: %v: %w", err, platform.ErrSourceUnavailable)
	}
	for _, app := range apps {
		if app.Path == nullPath {
			continue
		}
		if s.matches(ctx, app) {
			return formatHandle(app.Bus, app.Path), nil
		}
	}
	return "", fmt.Errorf("application %q (pid %d) not on accessibility bus: %w",
		s.opts.AppName, s.opts.PID, platform.ErrSourceUnavailable)
}

func (s *Source) matches(ctx context.Context, app reference) bool {
	if s.opts.PID > 0 {
		var pid uint32
		err := s.callObject(ctx, "org.freedesktop.DBus", "/org/freedesktop/DBus",
			"org.freedesktop.DBus.GetConnectionUnixProcessID", []any{app.Bus}, &pid)
		if err != nil || int(pid) != s.opts.PID {
			return false
		}
		if s.opts.AppName == "" {
			return true
		}
	}
	if s.opts.AppName == "" {
		return false
	}
	var name dbus.Variant
	err := s.callObject(ctx, app.Bus, app.Path, ifaceProperties+".Get", []any{ifaceAccessible, "Name"}, &name)
	if err != nil {
		return false
	}
	n, _ := name.Value().(string)
	return strings.EqualFold(n, s.opts.AppName)
}

func (s *Source) Element(ctx context.Context, h platform.Handle) (platform.ElementInfo, error) {
	var info platform.ElementInfo

	var props map[string]dbus.Variant
	if err := s.call(ctx, h, ifaceProperties+".GetAll", []any{ifaceAccessible}, &props); err != nil {
		return info, err
	}
	info.Name, _ = props["Name"].Value().(string)
	info.Description, _ = props["Description"].Value().(string)

	if err := s.call(ctx, h, ifaceAccessible+".GetRoleName", nil, &info.Role); err != nil {
		return info, err
	}
	var words []uint32
	if err := s.call(ctx, h, ifaceAccessible+".GetState", nil, &words); err != nil {
		return info, err
	}
	info.States = decodeStates(words)
	if info.States.Defunct {
		return info, fmt.Errorf("%s: %w", h, platform.ErrElementGone)
	}
	var ifaces []string
	if err := s.call(ctx, h, ifaceAccessible+".GetInterfaces", nil, &ifaces); err != nil {
		return info, err
	}
	info.Interfaces = shortInterfaces(ifaces)

	if info.Implements(platform.InterfaceComponent) {
		var e extents
		if err := s.call(ctx, h, ifaceComponent+".GetExtents", []any{coordTypeScreen}, &e); err == nil {
			info.Bounds = &model.Bounds{X: float64(e.X), Y: float64(e.Y), Width: float64(e.Width), Height: float64(e.Height)}
		}
	}
	return info, nil
}

func (s *Source) Children(ctx context.Context, h platform.Handle) ([]platform.Handle, error) {
	var refs []reference
	if err := s.call(ctx, h, ifaceAccessible+".GetChildren", nil, &refs); err != nil {
		return nil, err
	}
	out := make([]platform.Handle, 0, len(refs))
	for _, r := range refs {
		if r.Path == nullPath || r.Bus == "" {
			continue
		}
		out = append(out, formatHandle(r.Bus, r.Path))
	}
	return out, nil
}

func (s *Source) Actions(ctx context.Context, h platform.Handle) ([]string, error) {
	var actions []actionInfo
	if err := s.call(ctx, h, ifaceAction+".GetActions", nil, &actions); err != nil {
		return nil, err
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name
	}
	return names, nil
}

func (s *Source) DoAction(ctx context.Context, h platform.Handle, index int) error {
	return s.callBool(ctx, h, ifaceAction+".DoAction", int32(index))
}

func (s *Source) GrabFocus(ctx context.Context, h platform.Handle) error {
	return s.callBool(ctx, h, ifaceComponent+".GrabFocus")
}

func (s *Source) ScrollTo(ctx context.Context, h platform.Handle) error {
	return s.callBool(ctx, h, ifaceComponent+".ScrollTo", scrollAnywhere)
}

func (s *Source) Value(ctx context.Context, h platform.Handle) (platform.Value, error) {
	var props map[string]dbus.Variant
	if err := s.call(ctx, h, ifaceProperties+".GetAll", []any{ifaceValue}, &props); err != nil {
		return platform.Value{}, err
	}
	cur, ok := props["CurrentValue"].Value().(float64)
	if !ok {
		return platform.Value{}, platform.MissingInterface(platform.InterfaceValue)
	}
	v := platform.Value{Current: cur}
	v.Min, _ = props["MinimumValue"].Value().(float64)
	v.Max, _ = props["MaximumValue"].Value().(float64)
	v.Step, _ = props["MinimumIncrement"].Value().(float64)
	return v, nil
}

func (s *Source) SetValue(ctx context.Context, h platform.Handle, v float64) error {
	return s.call(ctx, h, ifaceProperties+".Set", []any{ifaceValue, "CurrentValue", dbus.MakeVariant(v)})
}

func (s *Source) Text(ctx context.Context, h platform.Handle) (platform.TextState, error) {
	var st platform.TextState
	count, err := s.property(ctx, h, ifaceText, "CharacterCount")
	if err != nil {
		return st, err
	}
	n, _ := count.Value().(int32)
	st.CharCount = int(n)
	if err := s.call(ctx, h, ifaceText+".GetText", []any{int32(0), int32(-1)}, &st.Text); err != nil {
		return st, err
	}
	caret, err := s.property(ctx, h, ifaceText, "CaretOffset")
	if err != nil {
		return st, err
	}
	c, _ := caret.Value().(int32)
	st.Caret = int(c)

	var nsel int32
	if err := s.call(ctx, h, ifaceText+".GetNSelections", nil, &nsel); err != nil {
		return st, err
	}
	for i := int32(0); i < nsel; i++ {
		var start, end int32
		if err := s.call(ctx, h, ifaceText+".GetSelection", []any{i}, &start, &end); err != nil {
			return st, err
		}
		st.Selections = append(st.Selections, platform.TextRange{Start: int(start), End: int(end)})
	}
	return st, nil
}

func (s *Source) SetTextContents(ctx context.Context, h platform.Handle, text string) error {
	return s.callBool(ctx, h, ifaceEditableText+".SetTextContents", text)
}

func (s *Source) SetCaret(ctx context.Context, h platform.Handle, offset int) error {
	return s.callBool(ctx, h, ifaceText+".SetCaretOffset", int32(offset))
}

func (s *Source) SetSelection(ctx context.Context, h platform.Handle, start, end int) error {
	var nsel int32
	if err := s.call(ctx, h, ifaceText+".GetNSelections", nil, &nsel); err != nil {
		return err
	}
	if nsel == 0 {
		return s.callBool(ctx, h, ifaceText+".AddSelection", int32(start), int32(end))
	}
	return s.callBool(ctx, h, ifaceText+".SetSelection", int32(0), int32(start), int32(end))
}

func (s *Source) SelectChild(ctx context.Context, h platform.Handle, index int) error {
	return s.callBool(ctx, h, ifaceSelection+".SelectChild", int32(index))
}

func (s *Source) DeselectChild(ctx context.Context, h platform.Handle, index int) error {
	return s.callBool(ctx, h, ifaceSelection+".DeselectChild", int32(index))
}

func (s *Source) SelectedCount(ctx context.Context, h platform.Handle) (int, error) {
	v, err := s.property(ctx, h, ifaceSelection, "NSelectedChildren")
	if err != nil {
		return 0, err
	}
	n, _ := v.Value().(int32)
	return int(n), nil
}

func (s *Source) SelectAll(ctx context.Context, h platform.Handle) error {
	return s.callBool(ctx, h, ifaceSelection+".SelectAll")
}

func (s *Source) ClearSelection(ctx context.Context, h platform.Handle) error {
	return s.callBool(ctx, h, ifaceSelection+".ClearSelection")
}

var _ platform.TreeSource = (*Source)(nil)
