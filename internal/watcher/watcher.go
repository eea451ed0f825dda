// Package watcher delivers settled file changes matching a set of ** glob
// patterns below a project directory.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/rusenback/subzero-devtools/internal/model"
)

// DefaultSettle coalesces the burst of events one editor save produces
const DefaultSettle = 100 * time.Millisecond

// Subscription is one active watch. It must be closed to release the
// underlying inotify/kqueue handles.
type Subscription struct {
	root     string
	patterns []string // relative to root, slash separated
	ignore   string
	settle   time.Duration
	logger   *slog.Logger

	w      *fsnotify.Watcher
	events chan model.WatchEvent
	ready  chan struct{}
	errs   chan error
	fired  chan string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start subscribes to patterns below root, skipping anything matching ignore.
// Ready is closed once the directories that exist at start are watched.
func Start(root string, patterns []string, ignore string, settle time.Duration, logger *slog.Logger) (*Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	rel := make([]string, 0, len(patterns))
	for _, p := range patterns {
		r, err := relPattern(root, p)
		if err != nil {
			return nil, err
		}
		rel = append(rel, r)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		root:     root,
		patterns: rel,
		ignore:   filepath.ToSlash(ignore),
		settle:   settle,
		logger:   logger,
		w:        w,
		events:   make(chan model.WatchEvent),
		ready:    make(chan struct{}),
		errs:     make(chan error, 8),
		fired:    make(chan string, 64),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go s.run()
	return s, nil
}

func relPattern(root, p string) (string, error) {
	if !filepath.IsAbs(p) {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	r, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(r, "..") {
		return "", fmt.Errorf("pattern %s is outside %s", p, root)
	}
	return filepath.ToSlash(r), nil
}

// Events delivers one event per settled change, in arrival order. Closed
// after Close.
func (s *Subscription) Events() <-chan model.WatchEvent { return s.events }

// Ready is closed after the baseline scan
func (s *Subscription) Ready() <-chan struct{} { return s.ready }

// Errors reports watcher failures; values are dropped when nobody reads them
func (s *Subscription) Errors() <-chan error { return s.errs }

// Patterns returns the patterns relative to the root
func (s *Subscription) Patterns() []string {
	return append([]string(nil), s.patterns...)
}

// Close stops delivery and waits for the watch loop to exit. Safe to call
// more than once.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.w.Close()
		<-s.done
	})
	return err
}

func (s *Subscription) run() {
	defer close(s.done)
	defer close(s.events)

	s.baseline()
	close(s.ready)

	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return

		case event, ok := <-s.w.Events:
			if !ok {
				return
			}
			s.handle(event, pending)

		case rel := <-s.fired:
			delete(pending, rel)
			if !s.deliver(rel) {
				return
			}

		case err, ok := <-s.w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("file watcher error", "err", err)
			select {
			case s.errs <- err:
			default:
			}
		}
	}
}

func (s *Subscription) handle(event fsnotify.Event, pending map[string]*time.Timer) {
	rel, ok := s.rel(event.Name)
	if !ok {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			s.addTree(event.Name)
			return
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if !s.Matches(rel) {
		return
	}

	if s.settle <= 0 {
		s.deliver(rel)
		return
	}
	if t, ok := pending[rel]; ok {
		t.Stop()
	}
	pending[rel] = time.AfterFunc(s.settle, func() {
		select {
		case s.fired <- rel:
		case <-s.ctx.Done():
		}
	})
}

// deliver blocks until the consumer takes the event; false means closed
func (s *Subscription) deliver(rel string) bool {
	ev := model.WatchEvent{
		Path:      filepath.Join(s.root, filepath.FromSlash(rel)),
		RelPath:   "./" + rel,
		ChangedAt: time.Now(),
	}
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Matches reports whether rel (slash separated, relative to root) is watched
func (s *Subscription) Matches(rel string) bool {
	if s.ignored(rel) {
		return false
	}
	for _, p := range s.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (s *Subscription) ignored(rel string) bool {
	if s.ignore == "" {
		return false
	}
	ok, _ := doublestar.Match(s.ignore, rel)
	return ok
}

func (s *Subscription) rel(path string) (string, bool) {
	r, err := filepath.Rel(s.root, path)
	if err != nil || r == "." || strings.HasPrefix(r, "..") {
		return "", false
	}
	return filepath.ToSlash(r), true
}

// baseline watches every existing directory under each pattern's static prefix
func (s *Subscription) baseline() {
	seen := make(map[string]bool)
	for _, p := range s.patterns {
		if s.ctx.Err() != nil {
			return
		}
		base, _ := doublestar.SplitPattern(p)
		dir := filepath.Join(s.root, filepath.FromSlash(base))
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			s.logger.Debug("watch base missing", "dir", dir)
			continue
		}
		s.addTree(dir)
	}
}

func (s *Subscription) addTree(dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if s.ctx.Err() != nil {
			return filepath.SkipAll
		}
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := s.rel(path); ok && s.ignored(rel+"/x") {
			return filepath.SkipDir
		}
		if err := s.w.Add(path); err != nil {
			// Close cancels before closing the fsnotify watcher
			if s.ctx.Err() != nil {
				return filepath.SkipAll
			}
			s.logger.Warn("watch dir", "dir", path, "err", err)
		}
		return nil
	})
}
