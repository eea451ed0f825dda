package migrations

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rusenback/subzero-devtools/internal/proc"
)

type fakeRunner struct {
	calls []proc.Cmd
	// results by program name
	results map[string]proc.Result
	dir     string
}

func (f *fakeRunner) Run(ctx context.Context, c proc.Cmd) (proc.Result, error) {
	f.calls = append(f.calls, c)
	if c.Name == "sqitch" && len(c.Args) > 0 && c.Args[0] == "init" {
		os.WriteFile(filepath.Join(f.dir, "sqitch.conf"), []byte("[core]\n"), 0o644)
	}
	return f.results[c.Name], nil
}

func (f *fakeRunner) Start(ctx context.Context, c proc.Cmd) (*proc.Process, error) {
	return nil, errors.New("not supported")
}

func (f *fakeRunner) commands() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Name+" "+strings.Join(c.Args, " "))
	}
	return out
}

func newMigrator(t *testing.T) (*Migrator, *fakeRunner, *bytes.Buffer) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db", "migrations")
	fr := &fakeRunner{
		dir: dir,
		results: map[string]proc.Result{
			"java": {Stdout: []byte("BEGIN;\nCREATE TABLE x();\nCOMMIT;\n"), Stderr: []byte("warning\n")},
		},
	}
	var out bytes.Buffer
	m := &Migrator{
		Runner:     fr,
		Dir:        dir,
		DBName:     "app",
		Sqitch:     "sqitch",
		PgDump:     "pg_dump",
		Java:       "java",
		ApgdiffJar: "/usr/local/bin/apgdiff.jar",
		DevURI:     "postgres://dev",
		ProdURI:    "postgres://prod",
		Out:        &out,
	}
	return m, fr, &out
}

func TestInit(t *testing.T) {
	m, fr, out := newMigrator(t)

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tmp := filepath.Join(m.Dir, "tmp")
	want := []string{
		"sqitch init app --engine pg",
		"pg_dump postgres://dev -f " + tmp + "/dev-initial.sql --schema-only --no-owner --no-privileges",
		"sqitch add initial -n Add initial migration",
		"java -jar /usr/local/bin/apgdiff.jar --add-transaction " + tmp + "/dev-initial.sql " + tmp + "/prod-initial.sql",
		"java -jar /usr/local/bin/apgdiff.jar --add-transaction " + tmp + "/prod-initial.sql " + tmp + "/dev-initial.sql",
	}
	if got := fr.commands(); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("commands =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if fr.calls[0].Dir != m.Dir || !fr.calls[0].ExitOnError {
		t.Errorf("sqitch init cmd = %+v", fr.calls[0])
	}

	for _, f := range []string{"deploy/initial.sql", "revert/initial.sql"} {
		data, err := os.ReadFile(filepath.Join(m.Dir, f))
		if err != nil || !strings.Contains(string(data), "CREATE TABLE") {
			t.Errorf("%s = %q, %v", f, data, err)
		}
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Errorf("tmp dir left behind: %v", err)
	}
	if !strings.Contains(out.String(), "warning") {
		t.Errorf("apgdiff stderr not printed: %q", out.String())
	}
}

func TestAddRequiresSqitchConf(t *testing.T) {
	m, fr, _ := newMigrator(t)

	err := m.Add(context.Background(), "todos", "", true)
	if !errors.Is(err, ErrNoSqitchConf) {
		t.Fatalf("Add() error = %v, want ErrNoSqitchConf", err)
	}
	if len(fr.calls) != 0 {
		t.Errorf("commands ran without sqitch.conf: %v", fr.commands())
	}
}

func TestAddDumpsBothAndDiffs(t *testing.T) {
	m, fr, _ := newMigrator(t)
	os.MkdirAll(m.Dir, 0o755)
	os.WriteFile(filepath.Join(m.Dir, "sqitch.conf"), []byte("[core]\n"), 0o644)

	if err := m.Add(context.Background(), "todos", "todo table", true); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got := fr.commands()
	if len(got) != 5 {
		t.Fatalf("commands = %v", got)
	}
	if !strings.HasPrefix(got[0], "pg_dump postgres://dev") || !strings.HasPrefix(got[1], "pg_dump postgres://prod") {
		t.Errorf("dumps = %v", got[:2])
	}
	if got[2] != "sqitch add todos -n todo table" {
		t.Errorf("sqitch = %q", got[2])
	}
}

func TestAddWithoutDiff(t *testing.T) {
	m, fr, _ := newMigrator(t)
	os.MkdirAll(m.Dir, 0o755)
	os.WriteFile(filepath.Join(m.Dir, "sqitch.conf"), []byte("[core]\n"), 0o644)

	if err := m.Add(context.Background(), "blank", "", false); err != nil {
		t.Fatal(err)
	}
	if got := fr.commands(); len(got) != 1 || got[0] != "sqitch add blank -n Add blank migration" {
		t.Errorf("commands = %v", got)
	}
}

func TestFailingStepStops(t *testing.T) {
	m, fr, _ := newMigrator(t)
	fr.results["pg_dump"] = proc.Result{ExitCode: 2}

	err := m.Init(context.Background())
	var exitErr *proc.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("Init() error = %v, want exit 2", err)
	}
	if n := len(fr.calls); n != 2 {
		t.Errorf("ran %d commands, want 2", n)
	}
}
