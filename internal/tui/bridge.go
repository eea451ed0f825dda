package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rusenback/subzero-devtools/internal/model"
	"github.com/rusenback/subzero-devtools/internal/reload"
	"github.com/rusenback/subzero-devtools/internal/tailer"
)

// DefaultBridgeSize is the event buffer of a Bridge created with size <= 0
const DefaultBridgeSize = 512

// Bridge carries everything produced outside the event loop (log lines,
// orchestrator callbacks) into the program as messages. It is the
// reload.Listener of the dashboard; Panes() is the tailer sink.
type Bridge struct {
	events chan tea.Msg
	done   chan struct{}
	once   sync.Once
}

// NewBridge creates an open bridge
func NewBridge(size int) *Bridge {
	if size <= 0 {
		size = DefaultBridgeSize
	}
	return &Bridge{
		events: make(chan tea.Msg, size),
		done:   make(chan struct{}),
	}
}

// send blocks while the buffer is full and gives up once the bridge is closed
func (b *Bridge) send(msg tea.Msg) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.events <- msg:
	case <-b.done:
	}
}

// Close releases every blocked sender. Later sends are dropped.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

// Panes returns the sink the tailers write into
func (b *Bridge) Panes() tailer.Sink {
	return paneSink{b}
}

func (b *Bridge) WatcherReady(patterns []string) {
	b.send(watcherReadyMsg{patterns: patterns})
}

func (b *Bridge) ReloadStart(relPath string) {
	b.send(reloadStartMsg{path: relPath})
}

func (b *Bridge) ReloadEnd(res reload.Result) {
	b.send(reloadEndMsg{result: res})
}

// Log shows a status line in the active pane
func (b *Bridge) Log(line string) {
	b.send(statusMsg{text: line})
}

type paneSink struct {
	b *Bridge
}

func (s paneSink) Log(line model.LogLine) {
	s.b.send(logLineMsg{line: line})
}
