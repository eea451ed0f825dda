package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#B4BEFE"))

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6ADC8")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1E1E2E")).
			Background(lipgloss.Color("#89B4FA")).
			Padding(0, 1)

	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))

	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))

	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6ADC8"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#585B70")).
			Padding(0, 1)

	helpPanelStyle = panelStyle.
			BorderForeground(lipgloss.Color("#CBA6F7")).
			Padding(1, 2)
)

// Space taken around the viewport: border plus horizontal padding,
// and the top bar, border, status and help rows.
const (
	chromeWidth  = 4
	chromeHeight = 5
)
