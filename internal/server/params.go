package server

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mj1618/uibridge/internal/errs"
)

// args reads tool arguments. Missing or mistyped required values are
// InvalidArgument errors attributed to the tool.
type args struct {
	op string
	m  map[string]any
}

func newArgs(op string, m map[string]any) args {
	if m == nil {
		m = map[string]any{}
	}
	return args{op: op, m: m}
}

func (a args) has(name string) bool {
	v, ok := a.m[name]
	return ok && v != nil
}

// String returns a string argument or def.
func (a args) String(name, def string) string {
	if v, ok := a.m[name].(string); ok {
		return v
	}
	return def
}

// RequireString returns a non-empty string argument.
func (a args) RequireString(name string) (string, error) {
	v, ok := a.m[name].(string)
	if !ok || v == "" {
		return "", errs.InvalidArgument(a.op, "%s is required", name)
	}
	return v, nil
}

// Bool returns a boolean argument or def. "true"/"false" strings are
// accepted.
func (a args) Bool(name string, def bool) bool {
	switch v := a.m[name].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Float returns a numeric argument or def.
func (a args) Float(name string, def float64) (float64, error) {
	if !a.has(name) {
		return def, nil
	}
	f, ok := toFloat(a.m[name])
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errs.InvalidArgument(a.op, "%s must be a number", name)
	}
	return f, nil
}

// RequireFloat returns a required numeric argument.
func (a args) RequireFloat(name string) (float64, error) {
	if !a.has(name) {
		return 0, errs.InvalidArgument(a.op, "%s is required", name)
	}
	return a.Float(name, 0)
}

// Int returns an integral argument or def.
func (a args) Int(name string, def int) (int, error) {
	if !a.has(name) {
		return def, nil
	}
	f, err := a.Float(name, 0)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, errs.InvalidArgument(a.op, "%s must be an integer", name)
	}
	return int(f), nil
}

// RequireInt returns a required integral argument.
func (a args) RequireInt(name string) (int, error) {
	if !a.has(name) {
		return 0, errs.InvalidArgument(a.op, "%s is required", name)
	}
	return a.Int(name, 0)
}

const maxExactID = 1<<53 - 1

// ID returns the required element id.
func (a args) ID() (uint64, error) {
	const name = "id"
	if !a.has(name) {
		return 0, errs.InvalidArgument(a.op, "%s is required", name)
	}
	var digits string
	switch v := a.m[name].(type) {
	case string:
		digits = v
	case json.Number:
		digits = v.String()
	}
	if digits != "" {
		id, err := strconv.ParseUint(strings.TrimSpace(digits), 10, 64)
		if err != nil {
			return 0, errs.InvalidArgument(a.op, "%s must be a non-negative integer", name)
		}
		return id, nil
	}
	f, ok := toFloat(a.m[name])
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, errs.InvalidArgument(a.op, "%s must be a non-negative integer", name)
	}
	// Element ids fit in 53 bits; a larger float was already rounded.
	if f > maxExactID {
		return 0, errs.InvalidArgument(a.op, "%s %.0f is beyond the exact integer range of a JSON number", name, f)
	}
	return uint64(f), nil
}

// Millis returns a duration given in milliseconds, or def.
func (a args) Millis(name string, def time.Duration) (time.Duration, error) {
	if !a.has(name) {
		return def, nil
	}
	f, err := a.Float(name, 0)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, errs.InvalidArgument(a.op, "%s must not be negative", name)
	}
	return time.Duration(f * float64(time.Millisecond)), nil
}

// List splits a comma-separated string argument, or reads a string array.
func (a args) List(name string) []string {
	var raw []string
	switch v := a.m[name].(type) {
	case string:
		raw = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = v
	}
	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
