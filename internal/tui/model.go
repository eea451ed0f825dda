package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rusenback/subzero-devtools/internal/journal"
	"github.com/rusenback/subzero-devtools/internal/model"
	"github.com/rusenback/subzero-devtools/internal/reload"
)

// Tailer follows the logs of the dashboard containers
type Tailer interface {
	Start(c model.Container, since time.Time)
	Restart(c model.Container)
	StopAll()
}

// Watcher is the reload orchestrator as seen by the dashboard
type Watcher interface {
	Start() error
	Stop() error
	Shutdown()
}

// Resetter rebuilds the database on request
type Resetter interface {
	Reset(ctx context.Context, log reload.LogFunc) reload.Result
}

// Restarter restarts a container by engine name
type Restarter interface {
	RestartContainer(ctx context.Context, name string) error
}

// History summarizes past reloads. Optional.
type History interface {
	Summarize(window time.Duration) (journal.Summary, error)
}

// Deps are the collaborators of the dashboard. Containers, Bridge,
// Tailer, Watcher, Resetter and Restarter are required.
type Deps struct {
	Containers *model.ContainerSet
	Bridge     *Bridge
	Tailer     Tailer
	Watcher    Watcher
	Resetter   Resetter
	Restarter  Restarter
	History    History
	LogLength  int
	AppDir     string
	Logger     *slog.Logger
}

// Model represents the TUI application state
type Model struct {
	deps   Deps
	logger *slog.Logger

	order  []string
	panes  map[string]*pane
	active int

	watcherRunning bool
	watchOrder     *watchOrder
	watchTicket    int // latest watcher command; older results are stale
	busy           int // reloads and resets in progress
	showHelp       bool
	quitting       bool
	message        string
	summary        *journal.Summary

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	width  int
	height int
}

// Message types for Bubbletea update loop
type logLineMsg struct {
	line model.LogLine
}

type statusMsg struct {
	text string
}

type watcherReadyMsg struct {
	patterns []string
}

type reloadStartMsg struct {
	path string
}

type reloadEndMsg struct {
	result reload.Result
}

type watcherMsg struct {
	ticket  int
	running bool
	err     error
}

type restartMsg struct {
	titles []string
	err    error
}

type resetMsg struct {
	result reload.Result
}

type historyMsg struct {
	summary journal.Summary
	err     error
}

type historyTickMsg time.Time

// NewModel creates a new TUI model with one pane per container
func NewModel(deps Deps) Model {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := Model{
		deps:       deps,
		logger:     logger,
		panes:      make(map[string]*pane),
		watchOrder: newWatchOrder(),
		keys:       defaultKeyMap(),
		help:       help.New(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#CBA6F7"))),
		),
	}
	for _, c := range deps.Containers.All() {
		m.order = append(m.order, c.Key)
		m.panes[c.Key] = newPane(c.Key, c.Title, deps.LogLength, 80, 20)
	}
	return m
}

// Init starts every tailer and the watcher
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		startTailers(m.deps.Tailer, m.deps.Containers.All()),
		startWatcher(m.deps.Watcher, m.watchOrder, m.watchOrder.ticket()),
		waitForEvent(m.deps.Bridge),
	}
	if m.deps.History != nil {
		cmds = append(cmds, fetchHistory(m.deps.History), historyTick())
	}
	return tea.Batch(cmds...)
}

// ActiveKey is the key of the visible pane
func (m Model) ActiveKey() string {
	if len(m.order) == 0 {
		return ""
	}
	return m.order[m.active]
}

// WatcherRunning reports the watcher state as the dashboard knows it
func (m Model) WatcherRunning() bool {
	return m.watcherRunning
}

func (m Model) activePane() *pane {
	return m.panes[m.ActiveKey()]
}

func (m Model) activeContainer() (model.Container, bool) {
	return m.deps.Containers.Get(m.ActiveKey())
}
