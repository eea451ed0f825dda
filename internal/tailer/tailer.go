// Package tailer keeps one log follow-stream per container and feeds the
// highlighted lines to a sink.
package tailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rusenback/subzero-devtools/internal/engine"
	"github.com/rusenback/subzero-devtools/internal/highlight"
	"github.com/rusenback/subzero-devtools/internal/model"
)

// DefaultTail is how many historic lines a fresh stream starts with
const DefaultTail = 500

// Source opens log streams
type Source interface {
	FollowLogs(ctx context.Context, name string, opts engine.LogOptions) (io.ReadCloser, error)
}

// Sink receives formatted lines. Log is called from the tail goroutines.
type Sink interface {
	Log(line model.LogLine)
}

type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Tailer owns the tail handle of every container it has started.
type Tailer struct {
	source Source
	sink   Sink
	logger *slog.Logger
	tail   int
	now    func() time.Time

	mu      sync.Mutex
	handles map[string]*handle
}

// New creates a tailer; tail <= 0 means DefaultTail
func New(source Source, sink Sink, tail int, logger *slog.Logger) *Tailer {
	if tail <= 0 {
		tail = DefaultTail
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tailer{
		source:  source,
		sink:    sink,
		logger:  logger,
		tail:    tail,
		now:     time.Now,
		handles: make(map[string]*handle),
	}
}

// Start follows c's log from since (zero means from the beginning). A handle
// already running for c.Key is stopped, and waited for, before the new one
// opens its stream.
func (t *Tailer) Start(c model.Container, since time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.handles[c.Key]; ok {
		old.cancel()
		<-old.done
		delete(t.handles, c.Key)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{cancel: cancel, done: make(chan struct{})}
	t.handles[c.Key] = h

	go t.follow(ctx, h, c, engine.LogOptions{Since: since, Tail: t.tail})
}

// Restart tails c again from the current second, so output from before a
// container restart is not replayed.
func (t *Tailer) Restart(c model.Container) {
	t.Start(c, t.now().Truncate(time.Second))
}

// Stop kills the tail of one container and waits for it
func (t *Tailer) Stop(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.handles[key]; ok {
		h.cancel()
		<-h.done
		delete(t.handles, key)
	}
}

// StopAll kills every tail
func (t *Tailer) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, h := range t.handles {
		h.cancel()
		<-h.done
		delete(t.handles, key)
	}
}

func (t *Tailer) follow(ctx context.Context, h *handle, c model.Container, opts engine.LogOptions) {
	defer close(h.done)

	rc, err := t.source.FollowLogs(ctx, c.Name, opts)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("follow logs", "container", c.Name, "error", err)
			t.emit(ctx, c.Key, "Error following logs: "+err.Error())
		}
		return
	}
	stop := context.AfterFunc(ctx, func() { rc.Close() })
	defer func() {
		stop()
		rc.Close()
	}()

	printer := highlight.ForContainer(c.Key)
	buf := make([]byte, 32*1024)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			for _, line := range printer.Write(buf[:n]) {
				t.emit(ctx, c.Key, line)
			}
		}
		if err != nil {
			for _, line := range printer.Flush() {
				t.emit(ctx, c.Key, line)
			}
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				t.logger.Warn("log stream", "container", c.Name, "error", err)
				t.emit(ctx, c.Key, "Log stream ended: "+err.Error())
			}
			return
		}
	}
}

// emit drops lines once the handle was cancelled
func (t *Tailer) emit(ctx context.Context, key, text string) {
	if ctx.Err() != nil {
		return
	}
	t.sink.Log(model.LogLine{Key: key, Text: text, At: t.now()})
}
