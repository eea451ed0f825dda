package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the dashboard until the user quits or ctx is cancelled
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(NewModel(deps),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()

	// ctx cancellation skips the quit key path
	deps.Bridge.Close()
	deps.Tailer.StopAll()
	deps.Watcher.Shutdown()

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
