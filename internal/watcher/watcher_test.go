package watcher

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rusenback/subzero-devtools/internal/model"
)

var testPatterns = []string{
	"db/src/**/*.sql",
	"openresty/lualib/**/*.lua",
}

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"db/src/api", "db/src/tests", "openresty/lualib"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range []string{"db/src/init.sql", "db/src/api/todos.sql", "db/src/tests/todos.sql", "openresty/lualib/hooks.lua", "db/src/notes.txt"} {
		if err := os.WriteFile(filepath.Join(root, f), []byte("-- start\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func startReady(t *testing.T, root string) *Subscription {
	t.Helper()
	s, err := Start(root, testPatterns, "**/tests/**", 80*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never became ready")
	}
	return s
}

func touch(t *testing.T, root, rel string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, rel), []byte("-- changed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func expectEvent(t *testing.T, s *Subscription, rel string) model.WatchEvent {
	t.Helper()
	select {
	case ev := <-s.Events():
		if ev.RelPath != rel {
			t.Fatalf("RelPath = %q, want %q", ev.RelPath, rel)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event for %s", rel)
	}
	return model.WatchEvent{}
}

func expectQuiet(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestMatches(t *testing.T) {
	s := &Subscription{patterns: testPatterns, ignore: "**/tests/**"}
	tests := map[string]bool{
		"db/src/init.sql":            true,
		"db/src/api/deep/x.sql":      true,
		"db/src/tests/todos.sql":     false,
		"tests/db/src/x.sql":         false,
		"db/src/notes.txt":           false,
		"openresty/lualib/hooks.lua": true,
		"openresty/nginx/a.conf":     false,
	}
	for rel, want := range tests {
		if got := s.Matches(rel); got != want {
			t.Errorf("Matches(%q) = %v, want %v", rel, got, want)
		}
	}
}

func TestChangeDeliversRelativePath(t *testing.T) {
	root := setupProject(t)
	s := startReady(t, root)

	touch(t, root, "db/src/api/todos.sql")
	ev := expectEvent(t, s, "./db/src/api/todos.sql")
	if ev.Path != filepath.Join(s.root, "db/src/api/todos.sql") {
		t.Errorf("Path = %q", ev.Path)
	}
	if ev.ChangedAt.IsZero() {
		t.Error("ChangedAt not set")
	}

	touch(t, root, "openresty/lualib/hooks.lua")
	expectEvent(t, s, "./openresty/lualib/hooks.lua")
}

func TestIgnoredAndUnmatchedAreSilent(t *testing.T) {
	root := setupProject(t)
	s := startReady(t, root)

	touch(t, root, "db/src/tests/todos.sql")
	touch(t, root, "db/src/notes.txt")
	expectQuiet(t, s)
}

func TestBurstIsCoalesced(t *testing.T) {
	root := setupProject(t)
	s := startReady(t, root)

	for i := 0; i < 5; i++ {
		touch(t, root, "db/src/init.sql")
	}
	expectEvent(t, s, "./db/src/init.sql")
	expectQuiet(t, s)
}

func TestNewDirectoryIsWatched(t *testing.T) {
	root := setupProject(t)
	s := startReady(t, root)

	if err := os.MkdirAll(filepath.Join(root, "db/src/auth"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	touch(t, root, "db/src/auth/login.sql")
	expectEvent(t, s, "./db/src/auth/login.sql")
}

func TestCloseStopsEvents(t *testing.T) {
	root := setupProject(t)
	s := startReady(t, root)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	touch(t, root, "db/src/init.sql")
	select {
	case _, ok := <-s.Events():
		if ok {
			t.Fatal("event delivered after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Events not closed after Close")
	}
}

func TestPatternsAreRelative(t *testing.T) {
	root := t.TempDir()
	s, err := Start(root, []string{filepath.Join(root, "db/src/**/*.sql")}, "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if got := s.Patterns(); len(got) != 1 || got[0] != "db/src/**/*.sql" {
		t.Errorf("Patterns() = %v", got)
	}
}

// lockedBuffer is a log sink shared with the watch goroutine
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCloseDuringBaselineStopsWalk(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 300; i++ {
		dir := filepath.Join(root, "db/src", fmt.Sprintf("schema%03d", i), "views")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	var logs lockedBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	s, err := Start(root, testPatterns, "", 80*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	if out := logs.String(); strings.Contains(out, "watch dir") {
		t.Errorf("baseline kept adding directories after Close:\n%s", out)
	}
	select {
	case <-s.Ready():
	default:
		t.Error("Ready not closed after Close")
	}
}

func TestAbsolutePatternsBelowRoot(t *testing.T) {
	root := setupProject(t)
	abs := []string{
		filepath.ToSlash(filepath.Join(root, "db/src/**/*.sql")),
		filepath.ToSlash(filepath.Join(root, "openresty/lualib/**/*.lua")),
	}
	s, err := Start(root, abs, "**/tests/**", 80*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never became ready")
	}

	if got := strings.Join(s.Patterns(), ","); got != strings.Join(testPatterns, ",") {
		t.Errorf("Patterns() = %q", got)
	}
	touch(t, root, "openresty/lualib/hooks.lua")
	expectEvent(t, s, "./openresty/lualib/hooks.lua")
}

func TestPatternOutsideRoot(t *testing.T) {
	root := setupProject(t)
	outside := filepath.ToSlash(filepath.Join(filepath.Dir(root), "elsewhere/**/*.sql"))
	if _, err := Start(root, []string{outside}, "", 0, nil); err == nil {
		t.Fatal("Start() accepted a pattern outside the root")
	}
}
