package tui

import "github.com/charmbracelet/lipgloss"

// View renders the TUI interface
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	body := m.renderPanePanel()
	if m.showHelp {
		body = m.renderHelpPanel()
	}

	bar := m.help.View(m.keys)
	if m.showHelp {
		bar = ""
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTopBar(),
		body,
		m.renderStatusBar(),
		bar,
	)
}
