package scaffold

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rusenback/subzero-devtools/internal/proc"
)

type fakeRunner struct {
	calls []proc.Cmd
	res   proc.Result
}

func (f *fakeRunner) Run(ctx context.Context, c proc.Cmd) (proc.Result, error) {
	f.calls = append(f.calls, c)
	return f.res, nil
}

func (f *fakeRunner) Start(ctx context.Context, c proc.Cmd) (*proc.Process, error) {
	return nil, errors.New("not supported")
}

func baseOptions() Options {
	return Options{
		Dir:      "myapp",
		Kit:      "rest",
		WithDB:   true,
		CWD:      "/home/me",
		Image:    "subzerocloud/subzero-cli-tools",
		MountDir: "/src",
		UID:      1000,
		GID:      1000,
	}
}

func TestDownload(t *testing.T) {
	fr := &fakeRunner{}
	if err := Download(context.Background(), fr, baseOptions()); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(fr.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(fr.calls))
	}

	got := strings.Join(fr.calls[0].Args, " ")
	want := "run --rm -u 1000:1000 -v /home/me/:/src -w /src subzerocloud/subzero-cli-tools sh -c " +
		"mkdir -p myapp && wget -qO- " + Kits["rest"].URL + " | tar xz -C myapp --strip-components=1"
	if got != want {
		t.Errorf("args =\n%s\nwant\n%s", got, want)
	}
}

func TestDownloadWithoutDB(t *testing.T) {
	fr := &fakeRunner{}
	opts := baseOptions()
	opts.WithDB = false

	if err := Download(context.Background(), fr, opts); err != nil {
		t.Fatal(err)
	}
	if len(fr.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(fr.calls))
	}
	script := fr.calls[1].Args[len(fr.calls[1].Args)-1]
	if !strings.HasPrefix(script, "cd /src/myapp && rm -rf db") {
		t.Errorf("strip script = %q", script)
	}
}

func TestDownloadRejectsBadInput(t *testing.T) {
	tests := map[string]func(*Options){
		"unknown kit": func(o *Options) { o.Kit = "soap" },
		"empty dir":   func(o *Options) { o.Dir = "" },
		"outside cwd": func(o *Options) { o.Dir = "../elsewhere" },
		"absolute":    func(o *Options) { o.Dir = "/tmp/x" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			fr := &fakeRunner{}
			opts := baseOptions()
			mutate(&opts)
			if err := Download(context.Background(), fr, opts); err == nil {
				t.Error("expected error")
			}
			if len(fr.calls) != 0 {
				t.Errorf("docker ran for invalid input")
			}
		})
	}
}

func TestDownloadFailure(t *testing.T) {
	fr := &fakeRunner{res: proc.Result{ExitCode: 1, Stderr: []byte("wget: bad address\n")}}
	err := Download(context.Background(), fr, baseOptions())
	if err == nil || !strings.Contains(err.Error(), "bad address") {
		t.Fatalf("err = %v", err)
	}
}
