// Package proc runs the external developer tools (docker, psql, sqitch, ...)
// either to completion or as a stream of output chunks.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Cmd describes one invocation
type Cmd struct {
	Name string
	Args []string
	Dir  string
	Env  []string // KEY=VALUE overrides appended to the current environment

	// ExitOnError terminates the program with the child's exit code when it fails.
	// Used by the one-shot subcommands where a failed tool leaves nothing to recover.
	ExitOnError bool
	// Echo writes the captured output to the runner's Output after the command exits.
	Echo bool
}

func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result of a synchronous run
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// OK reports a zero exit code
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Executor is what the rest of the tool depends on, so tests can substitute it.
type Executor interface {
	Run(ctx context.Context, c Cmd) (Result, error)
	Start(ctx context.Context, c Cmd) (*Process, error)
}

// ExitError is returned by Run in ExitOnError mode when Exit did not terminate the process.
type ExitError struct {
	Cmd  string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Cmd, e.Code)
}

// Runner executes commands on the host, or inside the tool image when configured.
type Runner struct {
	Tools  ToolImage
	Output io.Writer // destination of Echo output, stdout by default
	Exit   func(code int)
	Logger *slog.Logger
}

// NewRunner creates a runner that prints to stdout and exits via os.Exit
func NewRunner(tools ToolImage) *Runner {
	return &Runner{
		Tools:  tools,
		Output: os.Stdout,
		Exit:   os.Exit,
		Logger: slog.Default(),
	}
}

var _ Executor = (*Runner)(nil)

func (r *Runner) command(ctx context.Context, c Cmd) *exec.Cmd {
	c = r.Tools.Rewrite(c)
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	r.logger().Debug("exec", "cmd", c.String(), "dir", c.Dir)
	return cmd
}

// Run blocks until the command exits. A non-zero exit code is not an error
// unless ExitOnError is set; failing to start the command is.
func (r *Runner) Run(ctx context.Context, c Cmd) (Result, error) {
	cmd := r.command(ctx, c)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCodeFromError(runErr),
	}

	if c.Echo || (c.ExitOnError && res.ExitCode != 0) {
		r.echo(res)
	}

	if res.ExitCode == -1 {
		if c.ExitOnError {
			r.exit(1)
			return res, &ExitError{Cmd: c.String(), Code: 1}
		}
		return res, fmt.Errorf("run %s: %w", c.Name, runErr)
	}
	if c.ExitOnError && res.ExitCode != 0 {
		r.logger().Error("command failed", "cmd", c.String(), "code", res.ExitCode)
		r.exit(res.ExitCode)
		return res, &ExitError{Cmd: c.String(), Code: res.ExitCode}
	}
	return res, nil
}

func (r *Runner) echo(res Result) {
	out := r.Output
	if out == nil {
		out = os.Stdout
	}
	for _, b := range [][]byte{res.Stdout, res.Stderr} {
		if len(b) > 0 {
			out.Write(b)
		}
	}
}

func (r *Runner) exit(code int) {
	if r.Exit != nil {
		r.Exit(code)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// exitCodeFromError maps a cmd.Run/Wait error to an exit code;
// -1 means the process never ran to completion.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
