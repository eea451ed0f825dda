package tui

import "github.com/charmbracelet/x/ansi"

// truncate shortens a string to a maximum display width
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if ansi.StringWidth(s) <= max {
		return s
	}
	if max <= 3 {
		return ansi.Truncate(s, max, "")
	}
	return ansi.Truncate(s, max, "...")
}

// paneSize is the viewport size left by the layout
func (m Model) paneSize() (int, int) {
	w := m.width - chromeWidth
	h := m.height - chromeHeight
	if w < 10 {
		w = 10
	}
	if h < 3 {
		h = 3
	}
	return w, h
}
