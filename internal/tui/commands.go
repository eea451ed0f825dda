package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rusenback/subzero-devtools/internal/model"
)

const (
	historyWindow   = 24 * time.Hour
	historyInterval = 30 * time.Second
	restartTimeout  = time.Minute
)

// waitForEvent waits for the next message from the bridge. Update re-arms it
// after every bridge message.
func waitForEvent(b *Bridge) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.events:
			return msg
		case <-b.done:
			return nil
		}
	}
}

func startTailers(t Tailer, containers []model.Container) tea.Cmd {
	return func() tea.Msg {
		for _, c := range containers {
			t.Start(c, time.Time{})
		}
		return nil
	}
}

// watchOrder runs watcher commands in the order their tickets were issued.
// Bubbletea runs each command on its own goroutine.
type watchOrder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	issued int
	next   int
}

func newWatchOrder() *watchOrder {
	o := &watchOrder{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

func (o *watchOrder) ticket() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.issued
	o.issued++
	return t
}

// run waits for every earlier ticket to finish before calling fn
func (o *watchOrder) run(t int, fn func()) {
	o.mu.Lock()
	for o.next != t {
		o.cond.Wait()
	}
	o.mu.Unlock()

	fn()

	o.mu.Lock()
	o.next++
	o.cond.Broadcast()
	o.mu.Unlock()
}

func startWatcher(w Watcher, order *watchOrder, t int) tea.Cmd {
	return func() tea.Msg {
		var err error
		order.run(t, func() { err = w.Start() })
		return watcherMsg{ticket: t, running: err == nil, err: err}
	}
}

func stopWatcher(w Watcher, order *watchOrder, t int) tea.Cmd {
	return func() tea.Msg {
		var err error
		order.run(t, func() { err = w.Stop() })
		return watcherMsg{ticket: t, running: false, err: err}
	}
}

// restartContainers restarts each container and then its tailer from now
func restartContainers(r Restarter, t Tailer, containers []model.Container) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), restartTimeout)
		defer cancel()

		var titles []string
		var errs []error
		for _, c := range containers {
			if err := r.RestartContainer(ctx, c.Name); err != nil {
				errs = append(errs, fmt.Errorf("restart %s: %w", c.Name, err))
				continue
			}
			t.Restart(c)
			titles = append(titles, c.Title)
		}
		return restartMsg{titles: titles, err: errors.Join(errs...)}
	}
}

func resetDatabase(r Resetter, b *Bridge) tea.Cmd {
	return func() tea.Msg {
		return resetMsg{result: r.Reset(context.Background(), b.Log)}
	}
}

func fetchHistory(h History) tea.Cmd {
	return func() tea.Msg {
		sum, err := h.Summarize(historyWindow)
		return historyMsg{summary: sum, err: err}
	}
}

// historyTick refreshes the history line periodically
func historyTick() tea.Cmd {
	return tea.Tick(historyInterval, func(t time.Time) tea.Msg {
		return historyTickMsg(t)
	})
}

// shutdown stops every child before quitting. The bridge closes first so
// tailers blocked on a full buffer can exit.
func shutdown(d Deps) tea.Cmd {
	return func() tea.Msg {
		d.Bridge.Close()
		d.Tailer.StopAll()
		d.Watcher.Shutdown()
		return tea.Quit()
	}
}
