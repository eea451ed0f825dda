package reload

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rusenback/subzero-devtools/internal/model"
	"github.com/rusenback/subzero-devtools/internal/proc"
)

// fakeSQL records every psql call and flags overlapping ones
type fakeSQL struct {
	mu      sync.Mutex
	calls   []string
	busy    atomic.Bool
	overlap atomic.Bool
	delay   time.Duration
	gate    chan struct{} // when set, each call waits for a value
	// fail returns the exit code for a call, 0 when nil
	fail func(call string) int
}

func (f *fakeSQL) Exec(ctx context.Context, database string, args ...string) (proc.Result, error) {
	if !f.busy.CompareAndSwap(false, true) {
		f.overlap.Store(true)
	}
	defer f.busy.Store(false)

	call := database + " " + strings.Join(args, " ")
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	code := 0
	if f.fail != nil {
		code = f.fail(call)
	}
	res := proc.Result{ExitCode: code}
	if code != 0 {
		res.Stderr = []byte("psql:" + args[len(args)-1] + ": ERROR:  boom\n")
	}
	return res, nil
}

func (f *fakeSQL) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeSignaler struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSignaler) SignalContainer(ctx context.Context, name, signal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, signal+" "+name)
	return nil
}

func (f *fakeSignaler) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type event struct {
	kind string
	arg  string
	res  Result
}

type fakeListener struct {
	events chan event
}

func newFakeListener() *fakeListener {
	return &fakeListener{events: make(chan event, 256)}
}

func (l *fakeListener) WatcherReady(patterns []string) {
	l.events <- event{kind: "ready", arg: strings.Join(patterns, ",")}
}
func (l *fakeListener) ReloadStart(relPath string) { l.events <- event{kind: "start", arg: relPath} }
func (l *fakeListener) ReloadEnd(res Result)       { l.events <- event{kind: "end", res: res} }
func (l *fakeListener) Log(line string)            { l.events <- event{kind: "log", arg: line} }

// waitFor skips events until one of kind arrives
func (l *fakeListener) waitFor(t *testing.T, kind string) event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-l.events:
			if ev.kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", kind)
		}
	}
}

type fakeJournal struct {
	mu   sync.Mutex
	recs []model.RunRecord
}

func (j *fakeJournal) Record(rec model.RunRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, rec)
}

// fakeSub is a subscription fed by the test
type fakeSub struct {
	events chan model.WatchEvent
	ready  chan struct{}
	errs   chan error
	once   sync.Once
	closed atomic.Bool
	// readyOnClose finishes the baseline while Close runs
	readyOnClose bool
}

func newFakeSub() *fakeSub {
	return &fakeSub{
		events: make(chan model.WatchEvent),
		ready:  make(chan struct{}),
		errs:   make(chan error),
	}
}

func (s *fakeSub) Events() <-chan model.WatchEvent { return s.events }
func (s *fakeSub) Ready() <-chan struct{}          { return s.ready }
func (s *fakeSub) Errors() <-chan error            { return s.errs }
func (s *fakeSub) Patterns() []string              { return []string{"db/src/**/*.sql"} }

func (s *fakeSub) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		if s.readyOnClose {
			close(s.ready)
		}
		close(s.events)
	})
	return nil
}

func testContainers() *model.ContainerSet {
	set := model.NewContainerSet()
	set.Add(model.Container{Key: "db", Name: "app_db_1", Title: "PostgreSQL"})
	set.Add(model.Container{Key: "postgrest", Name: "app_postgrest_1", Title: "PostgREST"})
	set.Add(model.Container{Key: "openresty", Name: "app_openresty_1", Title: "OpenResty"})
	return set
}

func testResetter(sql SQLClient, sig Signaler) *Resetter {
	return &Resetter{
		SQL:        sql,
		Signaler:   sig,
		Containers: testContainers(),
		DBName:     "app",
		DBDir:      "/docker-entrypoint-initdb.d/",
		HupTargets: []string{"postgrest", "openresty"},
		Lock:       NewLock(),
		Journal:    &fakeJournal{},
	}
}
