package reload

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rusenback/subzero-devtools/internal/model"
	"github.com/rusenback/subzero-devtools/internal/watcher"
)

// ErrNotWatching is returned by Stop when no subscription is active
var ErrNotWatching = errors.New("watcher is not running")

// Subscription is an active file watch
type Subscription interface {
	Events() <-chan model.WatchEvent
	Ready() <-chan struct{}
	Errors() <-chan error
	Patterns() []string
	Close() error
}

// SubscribeFunc opens a watch subscription
type SubscribeFunc func(root string, patterns []string, ignore string, settle time.Duration) (Subscription, error)

// Options for the orchestrator
type Options struct {
	Root      string
	Patterns  []string // globs below Root, absolute or relative to it
	Ignore    string
	Settle    time.Duration
	SourceDir string   // host SQL tree relative to Root, mounted at the resetter's DBDir
	HupOther  []string // container keys signalled after a non-SQL change
}

// Orchestrator turns file changes into reloads: SQL files are applied
// incrementally and fall back to a full reset, anything else HUPs the gateway.
type Orchestrator struct {
	opts      Options
	db        *Resetter
	listener  Listener
	logger    *slog.Logger
	subscribe SubscribeFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	sub       Subscription
	reloading bool
}

// NewOrchestrator creates a stopped orchestrator
func NewOrchestrator(opts Options, db *Resetter, listener Listener, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		opts:     opts,
		db:       db,
		listener: listener,
		logger:   logger,
		subscribe: func(root string, patterns []string, ignore string, settle time.Duration) (Subscription, error) {
			s, err := watcher.Start(root, patterns, ignore, settle, logger)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetSubscribe replaces how subscriptions are opened
func (o *Orchestrator) SetSubscribe(fn SubscribeFunc) {
	o.subscribe = fn
}

// Start opens a new subscription. A running one is closed first, so at most
// one subscription ever delivers events.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx.Err() != nil {
		return o.ctx.Err()
	}
	if o.sub != nil {
		o.sub.Close()
		o.sub = nil
	}

	sub, err := o.subscribe(o.opts.Root, o.opts.Patterns, o.opts.Ignore, o.opts.Settle)
	if err != nil {
		return err
	}
	o.sub = sub
	o.logger.Info("watcher started", "root", o.opts.Root, "patterns", o.opts.Patterns)

	o.wg.Add(1)
	go o.loop(sub)
	return nil
}

// Stop closes the subscription. A reload in flight finishes; no further
// events are handled.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sub == nil {
		return ErrNotWatching
	}
	err := o.sub.Close()
	o.sub = nil
	o.logger.Info("watcher stopped")
	return err
}

// Shutdown stops watching, cancels any running reload and waits for the
// event loops to exit.
func (o *Orchestrator) Shutdown() {
	o.Stop()
	o.cancel()
	o.wg.Wait()
}

// State reports Stopped, Watching or Reloading
func (o *Orchestrator) State() model.ReloadState {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.reloading:
		return model.Reloading
	case o.sub != nil:
		return model.Watching
	default:
		return model.Stopped
	}
}

func (o *Orchestrator) current(sub Subscription) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sub == sub
}

// announce reports a finished baseline unless sub was stopped or replaced
func (o *Orchestrator) announce(sub Subscription) {
	if o.current(sub) {
		o.listener.WatcherReady(sub.Patterns())
	}
}

func (o *Orchestrator) setReloading(v bool) {
	o.mu.Lock()
	o.reloading = v
	o.mu.Unlock()
}

func (o *Orchestrator) loop(sub Subscription) {
	defer o.wg.Done()

	ready := sub.Ready()
	errs := sub.Errors()
	for {
		// ready goes out before any change of the same subscription
		if ready != nil {
			select {
			case <-ready:
				ready = nil
				o.announce(sub)
			default:
			}
		}

		select {
		case <-ready:
			ready = nil
			o.announce(sub)

		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if !o.current(sub) {
				continue
			}
			o.handle(ev)

		case err := <-errs:
			o.listener.Log("Watcher error: " + err.Error())

		case <-o.ctx.Done():
			return
		}
	}
}

// handle runs one reload sequence; the database lock spans all of it
func (o *Orchestrator) handle(ev model.WatchEvent) {
	if err := o.db.Lock.Acquire(o.ctx); err != nil {
		return
	}
	defer o.db.Lock.Release()

	o.setReloading(true)
	defer o.setReloading(false)

	log := o.listener.Log
	o.listener.ReloadStart(ev.RelPath)

	var res Result
	if strings.HasSuffix(ev.Path, ".sql") {
		res = o.applySQL(ev, log)
	} else {
		res = newResult(model.RunHUP, ev.RelPath)
		hup(o.ctx, o.db.Signaler, o.db.Containers, o.opts.HupOther, log, o.logger)
		res.finish(0, nil)
	}

	o.logger.Info("reload finished", "path", ev.RelPath, "kind", res.Kind, "code", res.ExitCode, "fell_back", res.FellBack)
	o.db.record(res)
	o.listener.ReloadEnd(res)
}

// applySQL tries the changed file alone and rebuilds the database if psql fails
func (o *Orchestrator) applySQL(ev model.WatchEvent, log LogFunc) Result {
	res := newResult(model.RunIncremental, ev.RelPath)

	file := o.containerPath(ev.RelPath)
	out, err := o.db.SQL.Exec(o.ctx, o.db.DBName, "-f", file)
	if err == nil {
		forward(log, out.Stderr)
	}
	if err == nil && out.OK() {
		hup(o.ctx, o.db.Signaler, o.db.Containers, o.db.HupTargets, log, o.logger)
		res.finish(0, nil)
		return res
	}

	if err != nil {
		o.logger.Warn("incremental apply", "file", file, "err", err)
	}
	if o.ctx.Err() != nil {
		res.finish(-1, o.ctx.Err())
		return res
	}
	log("Incremental reload failed, resetting the database")

	res.Kind = model.RunReset
	res.FellBack = true
	code, err := o.db.reset(o.ctx, log)
	res.finish(code, err)
	return res
}

// containerPath maps ./<SourceDir>/x.sql to <DBDir>/x.sql
func (o *Orchestrator) containerPath(relPath string) string {
	rel := strings.TrimPrefix(relPath, "./")
	src := strings.Trim(o.opts.SourceDir, "/") + "/"
	if rest, ok := strings.CutPrefix(rel, src); ok {
		return strings.TrimSuffix(o.db.DBDir, "/") + "/" + rest
	}
	return rel
}
