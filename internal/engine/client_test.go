package engine

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
)

// fakeDaemon serves the handful of engine endpoints used here on a unix socket
type fakeDaemon struct {
	mu      sync.Mutex
	names   []string
	signals []string
	restart []string
	lastLog string
}

func startFakeDaemon(t *testing.T, fd *fakeDaemon) *Client {
	t.Helper()

	sock := filepath.Join(t.TempDir(), "d.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /_ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Api-Version", "1.47")
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("HEAD /_ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Api-Version", "1.47")
	})
	mux.HandleFunc("GET /containers/json", func(w http.ResponseWriter, r *http.Request) {
		var list []map[string]any
		for _, n := range fd.names {
			list = append(list, map[string]any{"Id": n, "Names": []string{"/" + n}})
		}
		json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("POST /containers/{id}/kill", func(w http.ResponseWriter, r *http.Request) {
		fd.mu.Lock()
		fd.signals = append(fd.signals, r.PathValue("id")+":"+r.URL.Query().Get("signal"))
		fd.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /containers/{id}/restart", func(w http.ResponseWriter, r *http.Request) {
		fd.mu.Lock()
		fd.restart = append(fd.restart, r.PathValue("id"))
		fd.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /containers/{id}/json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"Id":     r.PathValue("id"),
			"Config": map[string]any{"Tty": false},
		})
	})
	mux.HandleFunc("GET /containers/{id}/logs", func(w http.ResponseWriter, r *http.Request) {
		fd.mu.Lock()
		fd.lastLog = r.URL.RawQuery
		fd.mu.Unlock()
		stdout := stdcopy.NewStdWriter(w, stdcopy.Stdout)
		stderr := stdcopy.NewStdWriter(w, stdcopy.Stderr)
		stdout.Write([]byte("out line\n"))
		stderr.Write([]byte("err line\n"))
	})

	// The SDK prefixes every path with /v1.xx
	strip := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.Path; strings.HasPrefix(p, "/v") {
			if i := strings.IndexByte(p[2:], '/'); i >= 0 {
				r.URL.Path = p[2+i:]
			}
		}
		mux.ServeHTTP(w, r)
	})

	srv := &http.Server{Handler: strip}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	c, err := NewClient(context.Background(), Config{Host: "unix://" + sock, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientListContainersStripsSlash(t *testing.T) {
	fd := &fakeDaemon{names: []string{"app_db_1", "app_postgrest_1"}}
	c := startFakeDaemon(t, fd)

	names, err := c.ListContainers(context.Background(), "app")
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	if strings.Join(names, ",") != "app_db_1,app_postgrest_1" {
		t.Errorf("names = %v", names)
	}
}

func TestClientSignalAndRestart(t *testing.T) {
	fd := &fakeDaemon{}
	c := startFakeDaemon(t, fd)
	ctx := context.Background()

	if err := c.SignalContainer(ctx, "app_postgrest_1", "HUP"); err != nil {
		t.Fatalf("SignalContainer() error = %v", err)
	}
	if err := c.RestartContainer(ctx, "app_db_1"); err != nil {
		t.Fatalf("RestartContainer() error = %v", err)
	}

	fd.mu.Lock()
	defer fd.mu.Unlock()
	if len(fd.signals) != 1 || fd.signals[0] != "app_postgrest_1:HUP" {
		t.Errorf("signals = %v", fd.signals)
	}
	if len(fd.restart) != 1 || fd.restart[0] != "app_db_1" {
		t.Errorf("restarts = %v", fd.restart)
	}
}

func TestClientFollowLogsDemuxes(t *testing.T) {
	fd := &fakeDaemon{}
	c := startFakeDaemon(t, fd)

	since := time.Unix(1700000000, 0)
	rc, err := c.FollowLogs(context.Background(), "app_db_1", LogOptions{Since: since, Tail: 50})
	if err != nil {
		t.Fatalf("FollowLogs() error = %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "out line\nerr line\n" {
		t.Errorf("logs = %q", data)
	}

	fd.mu.Lock()
	q := fd.lastLog
	fd.mu.Unlock()
	for _, want := range []string{"follow=1", "since=1700000000", "tail=50"} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q missing %s", q, want)
		}
	}
}
