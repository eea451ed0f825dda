package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderTopBar renders the container tabs and the watcher state
func (m Model) renderTopBar() string {
	var tabs []string
	for i, k := range m.order {
		label := fmt.Sprintf("%d %s", i+1, m.panes[k].title)
		if i == m.active {
			tabs = append(tabs, selectedStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	left := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	var state string
	switch {
	case m.busy > 0:
		state = m.spinner.View() + " reloading"
	case m.watcherRunning:
		state = runningStyle.Render("● watching")
	default:
		state = stoppedStyle.Render("○ watcher stopped")
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(state)
	if gap < 1 {
		return truncate(left, m.width)
	}
	return left + strings.Repeat(" ", gap) + state
}

// renderPanePanel renders the active container's log pane
func (m Model) renderPanePanel() string {
	p := m.activePane()
	if p == nil {
		return panelStyle.Width(m.width - 2).Render("No containers")
	}
	return panelStyle.
		BorderForeground(paneBorder(p.key)).
		Width(m.width - 2).
		Render(p.View())
}

// renderHelpPanel renders the full key list in place of the pane
func (m Model) renderHelpPanel() string {
	w, h := m.paneSize()
	var s strings.Builder
	s.WriteString(titleStyle.Render("Keys") + "\n\n")
	s.WriteString(m.help.View(m.keys))
	panel := helpPanelStyle.Render(s.String())
	return lipgloss.Place(w+chromeWidth, h+2, lipgloss.Center, lipgloss.Center, panel)
}

// renderStatusBar renders the last status line and the run history
func (m Model) renderStatusBar() string {
	right := ""
	if m.summary != nil {
		right = fmt.Sprintf("24h: %d runs, %d failed, %d fell back",
			m.summary.Total, m.summary.Failed, m.summary.FellBack)
	}
	left := truncate(m.message, m.width-lipgloss.Width(right)-1)
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return statusBarStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func paneBorder(key string) lipgloss.Color {
	if key == "db" {
		return lipgloss.Color("#89B4FA")
	}
	return lipgloss.Color("#585B70")
}
