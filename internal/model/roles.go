package model

import "strings"

// RoleMap maps AT-SPI role names to compact role codes.
var RoleMap = map[string]string{
	"push button":         "button",
	"button":              "button",
	"toggle button":       "toggle",
	"switch":              "toggle",
	"check box":           "checkbox",
	"check menu item":     "checkbox",
	"radio button":        "radio",
	"radio menu item":     "radio",
	"text":                "textfield",
	"entry":               "textfield",
	"password text":       "textfield",
	"editbar":             "textfield",
	"label":               "text",
	"static":              "text",
	"paragraph":           "text",
	"caption":             "text",
	"heading":             "heading",
	"link":                "link",
	"image":               "image",
	"icon":                "image",
	"slider":              "slider",
	"spin button":         "spinbutton",
	"scroll bar":          "scrollbar",
	"progress bar":        "progressbar",
	"combo box":           "combobox",
	"list":                "list",
	"list box":            "list",
	"list item":           "listitem",
	"menu":                "menu",
	"menu bar":            "menubar",
	"menu item":           "menuitem",
	"page tab":            "tab",
	"page tab list":       "tablist",
	"table":               "table",
	"tree table":          "table",
	"table row":           "row",
	"table cell":          "cell",
	"table column header": "cell",
	"tree":                "tree",
	"tree item":           "treeitem",
	"tool bar":            "toolbar",
	"status bar":          "statusbar",
	"tool tip":            "tooltip",
	"separator":           "separator",
	"frame":               "window",
	"window":              "window",
	"dialog":              "dialog",
	"alert":               "dialog",
	"file chooser":        "dialog",
	"panel":               "group",
	"filler":              "group",
	"section":             "group",
	"grouping":            "group",
	"scroll pane":         "group",
	"viewport":            "group",
	"document frame":      "document",
	"document web":        "document",
	"application":         "application",
	"canvas":              "canvas",
}

// MetaRoles maps meta-role names to the concrete roles they expand to.
var MetaRoles = map[string][]string{
	"interactive": {"button", "toggle", "checkbox", "radio", "textfield", "link", "slider", "spinbutton", "combobox", "listitem", "menuitem", "tab", "treeitem"},
	"input":       {"textfield", "spinbutton", "slider", "combobox"},
}

// ExpandRoles expands any meta-roles in the given list to their concrete roles.
// Non-meta roles are passed through unchanged. Duplicates are removed.
func ExpandRoles(roles []string) []string {
	seen := make(map[string]bool, len(roles))
	var expanded []string
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if concrete, ok := MetaRoles[r]; ok {
			for _, c := range concrete {
				if !seen[c] {
					seen[c] = true
					expanded = append(expanded, c)
				}
			}
		} else if r != "" && !seen[r] {
			seen[r] = true
			expanded = append(expanded, r)
		}
	}
	return expanded
}

// MapRole converts a raw accessibility role name to a compact code. Names
// that are already compact codes pass through; anything else is "other".
func MapRole(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if short, ok := RoleMap[key]; ok {
		return short
	}
	if isCompactRole(key) {
		return key
	}
	return "other"
}

func isCompactRole(r string) bool {
	for _, v := range RoleMap {
		if v == r {
			return true
		}
	}
	return false
}

// SelectionLimits lists selection operations a role cannot support through
// the accessibility source. Combo boxes do not expose their popup items as
// children, so item-level selection must fall back to coordinate input.
var SelectionLimits = map[string][]string{
	"combobox": {"select_item", "deselect_item", "get_selected_count", "select_all", "clear_selection"},
}
