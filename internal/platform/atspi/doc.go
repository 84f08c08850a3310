// Package atspi reads and drives application UIs through the AT-SPI2
// accessibility bus on Linux desktops. Element handles are the (bus name,
// object path) pairs AT-SPI exports, which stay valid for the lifetime of
// the element, so the bridge can derive stable node ids from them.
package atspi
