package reload

import (
	"context"
	"strings"
	"testing"

	"github.com/rusenback/subzero-devtools/internal/model"
)

var resetCalls = []string{
	"postgres -c SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = 'app';",
	"postgres -c DROP DATABASE if exists app;",
	"postgres -c CREATE DATABASE app;",
	"app -f /docker-entrypoint-initdb.d/init.sql",
}

func collect() (LogFunc, *[]string) {
	var lines []string
	return func(l string) { lines = append(lines, l) }, &lines
}

func TestResetSequence(t *testing.T) {
	sql := &fakeSQL{}
	sig := &fakeSignaler{}
	r := testResetter(sql, sig)
	log, _ := collect()

	res := r.Reset(context.Background(), log)
	if !res.OK() {
		t.Fatalf("Reset() = %v", res)
	}
	if res.Kind != model.RunManualReset || res.ID == "" {
		t.Errorf("result = %+v", res.RunRecord)
	}

	if got := sql.Calls(); strings.Join(got, "\n") != strings.Join(resetCalls, "\n") {
		t.Errorf("calls =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(resetCalls, "\n"))
	}
	if got := sig.Sent(); strings.Join(got, ",") != "HUP app_postgrest_1,HUP app_openresty_1" {
		t.Errorf("signals = %v", got)
	}

	j := r.Journal.(*fakeJournal)
	if len(j.recs) != 1 || j.recs[0].Kind != model.RunManualReset {
		t.Errorf("journal = %+v", j.recs)
	}
	if tryAcquire(r.Lock) {
		r.Lock.Release()
	} else {
		t.Error("lock still held after Reset")
	}
}

func TestResetTwiceIsIdempotent(t *testing.T) {
	sql := &fakeSQL{}
	r := testResetter(sql, &fakeSignaler{})

	r.Reset(context.Background(), nil)
	first := sql.Calls()
	r.Reset(context.Background(), nil)
	all := sql.Calls()

	if len(all) != 2*len(first) {
		t.Fatalf("calls = %d, want %d", len(all), 2*len(first))
	}
	for i := range first {
		if all[len(first)+i] != first[i] {
			t.Errorf("second reset call %d = %q, want %q", i, all[len(first)+i], first[i])
		}
	}
}

func TestResetBootstrapFailureSkipsHUP(t *testing.T) {
	sql := &fakeSQL{fail: func(call string) int {
		if strings.Contains(call, "init.sql") {
			return 3
		}
		return 0
	}}
	sig := &fakeSignaler{}
	r := testResetter(sql, sig)
	log, lines := collect()

	res := r.Reset(context.Background(), log)
	if res.ExitCode != 3 || res.OK() {
		t.Fatalf("Reset() = %+v, want exit 3", res.RunRecord)
	}
	if len(sig.Sent()) != 0 {
		t.Errorf("signals sent after failed bootstrap: %v", sig.Sent())
	}

	// stderr reaches the log unchanged
	found := false
	for _, l := range *lines {
		if l == "psql:/docker-entrypoint-initdb.d/init.sql: ERROR:  boom" {
			found = true
		}
	}
	if !found {
		t.Errorf("stderr not forwarded, log = %q", *lines)
	}
}

func TestResetAbortsWhenDropFails(t *testing.T) {
	sql := &fakeSQL{fail: func(call string) int {
		if strings.Contains(call, "DROP DATABASE") {
			return 1
		}
		return 0
	}}
	r := testResetter(sql, &fakeSignaler{})

	res := r.Reset(context.Background(), nil)
	if res.ExitCode != 1 {
		t.Fatalf("ExitCode = %d, want 1", res.ExitCode)
	}
	if got := sql.Calls(); len(got) != 2 {
		t.Errorf("calls = %v, want terminate and drop only", got)
	}
}

func TestHUPSkipsMissingContainers(t *testing.T) {
	sql := &fakeSQL{}
	sig := &fakeSignaler{}
	r := testResetter(sql, sig)
	r.Containers = model.NewContainerSet()
	r.Containers.Add(model.Container{Key: "db", Name: "app_db_1"})
	r.Containers.Add(model.Container{Key: "openresty", Name: "app_openresty_1"})
	log, lines := collect()

	if res := r.Reset(context.Background(), log); !res.OK() {
		t.Fatalf("Reset() = %v", res)
	}
	if got := sig.Sent(); len(got) != 1 || got[0] != "HUP app_openresty_1" {
		t.Errorf("signals = %v", got)
	}
	if !strings.Contains(strings.Join(*lines, "\n"), "No postgrest container") {
		t.Errorf("missing container not reported: %q", *lines)
	}
}
