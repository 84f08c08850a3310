package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want [4]uint8
	}{
		{"", [4]uint8{255, 0, 0, 200}},
		{"#00ff00", [4]uint8{0, 255, 0, 200}},
		{"0000FF", [4]uint8{0, 0, 255, 200}},
		{"#11223344", [4]uint8{0x11, 0x22, 0x33, 0x44}},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"#fff", "#gg0000", "red", "#1122334455"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}
