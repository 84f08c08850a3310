//go:build linux

package cmd

// Registers the AT-SPI accessibility source.
import _ "github.com/mj1618/uibridge/internal/platform/atspi"
