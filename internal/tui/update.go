package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rusenback/subzero-devtools/internal/model"
	"github.com/rusenback/subzero-devtools/internal/reload"
)

const (
	reloadStartBanner = "Starting code reload ------------------------"
	reloadEndBanner   = "Ready ---------------------------------------"
)

// Update handles messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizePanes()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if p := m.activePane(); p != nil {
			var cmd tea.Cmd
			p.vp, cmd = p.vp.Update(msg)
			return m, cmd
		}

	case logLineMsg:
		if p, ok := m.panes[msg.line.Key]; ok {
			p.Append(msg.line.Text)
		}
		return m, waitForEvent(m.deps.Bridge)

	case statusMsg:
		m.status(msg.text)
		return m, waitForEvent(m.deps.Bridge)

	case watcherReadyMsg:
		m.watcherRunning = true
		m.status(fmt.Sprintf("Watching %s for changes.", strings.Join(msg.patterns, ", ")))
		if m.deps.AppDir != "" {
			m.status("in " + m.deps.AppDir)
		}
		return m, waitForEvent(m.deps.Bridge)

	case reloadStartMsg:
		m.status(msg.path + " changed")
		m.status(reloadStartBanner)
		return m, tea.Batch(waitForEvent(m.deps.Bridge), m.beginBusy())

	case reloadEndMsg:
		m.endBusy()
		if !msg.result.OK() {
			m.status(msg.result.String())
		}
		m.status(reloadEndBanner)
		return m, tea.Batch(waitForEvent(m.deps.Bridge), m.refreshHistory())

	case watcherMsg:
		if msg.err != nil && !errors.Is(msg.err, reload.ErrNotWatching) {
			m.status(fmt.Sprintf("Watcher error: %v", msg.err))
		}
		if msg.ticket >= m.watchTicket {
			m.watcherRunning = msg.running
		}

	case restartMsg:
		if msg.err != nil {
			m.status(fmt.Sprintf("Error: %v", msg.err))
		}
		if len(msg.titles) > 0 {
			m.status("Done")
		}

	case resetMsg:
		m.endBusy()
		m.status(msg.result.String())
		return m, m.refreshHistory()

	case historyMsg:
		if msg.err != nil {
			m.logger.Debug("summarize history", "err", msg.err)
			return m, nil
		}
		sum := msg.summary
		m.summary = &sum

	case historyTickMsg:
		return m, tea.Batch(m.refreshHistory(), historyTick())

	case spinner.TickMsg:
		if m.busy == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.message = "Stopping..."
		return m, shutdown(m.deps)

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp

	case key.Matches(msg, m.keys.Prev):
		if n := len(m.order); n > 0 {
			m.active = (m.active - 1 + n) % n
		}

	case key.Matches(msg, m.keys.Next):
		if n := len(m.order); n > 0 {
			m.active = (m.active + 1) % n
		}

	case key.Matches(msg, m.keys.Jump):
		if idx := int(msg.String()[0] - '1'); idx < len(m.order) {
			m.active = idx
		}

	case key.Matches(msg, m.keys.Clear):
		if p := m.activePane(); p != nil {
			p.Clear()
		}

	case key.Matches(msg, m.keys.Restart):
		c, ok := m.activeContainer()
		if !ok {
			return m, nil
		}
		m.status(fmt.Sprintf("Restarting container %s...", c.Title))
		return m, restartContainers(m.deps.Restarter, m.deps.Tailer, []model.Container{c})

	case key.Matches(msg, m.keys.RestartAll):
		m.status("Restarting all containers...")
		return m, restartContainers(m.deps.Restarter, m.deps.Tailer, m.deps.Containers.All())

	case key.Matches(msg, m.keys.Watch):
		m.watchTicket = m.watchOrder.ticket()
		if m.watcherRunning {
			m.watcherRunning = false
			m.status("Stopping watcher")
			return m, stopWatcher(m.deps.Watcher, m.watchOrder, m.watchTicket)
		}
		m.watcherRunning = true
		m.status("Starting watcher")
		return m, startWatcher(m.deps.Watcher, m.watchOrder, m.watchTicket)

	case key.Matches(msg, m.keys.Reset):
		m.status("Resetting database")
		return m, tea.Batch(resetDatabase(m.deps.Resetter, m.deps.Bridge), m.beginBusy())

	default:
		if p := m.activePane(); p != nil {
			var cmd tea.Cmd
			p.vp, cmd = p.vp.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

// status writes a line to the active pane and the command bar
func (m *Model) status(text string) {
	m.message = text
	if p := m.activePane(); p != nil {
		p.Append(text)
	}
	m.logger.Debug("status", "line", text)
}

func (m *Model) beginBusy() tea.Cmd {
	m.busy++
	if m.busy == 1 {
		return m.spinner.Tick
	}
	return nil
}

func (m *Model) endBusy() {
	if m.busy > 0 {
		m.busy--
	}
}

func (m Model) refreshHistory() tea.Cmd {
	if m.deps.History == nil {
		return nil
	}
	return fetchHistory(m.deps.History)
}

func (m Model) resizePanes() {
	w, h := m.paneSize()
	for _, p := range m.panes {
		p.Resize(w, h)
	}
}
