package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Highlight defaults.
const (
	DefaultHighlightColor    = "#ff0000"
	DefaultHighlightAlpha    = 200
	DefaultHighlightDuration = 3000 // ms
)

// ParseColor parses "#RRGGBB" (alpha DefaultHighlightAlpha) or "#RRGGBBAA".
// The leading '#' is optional and the empty string selects the default.
func ParseColor(s string) ([4]uint8, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		s = strings.TrimPrefix(DefaultHighlightColor, "#")
	}
	if len(s) != 6 && len(s) != 8 {
		return [4]uint8{}, fmt.Errorf("invalid color %q: expected #RRGGBB or #RRGGBBAA", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return [4]uint8{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	c := [4]uint8{b[0], b[1], b[2], DefaultHighlightAlpha}
	if len(b) == 4 {
		c[3] = b[3]
	}
	return c, nil
}
