package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rusenback/subzero-devtools/internal/proc"
)

// CLI drives the docker command line instead of the API socket.
type CLI struct {
	Exec   proc.Executor
	Binary string
}

// NewCLI uses the docker binary on PATH
func NewCLI(exec proc.Executor) *CLI {
	return &CLI{Exec: exec, Binary: "docker"}
}

func (c *CLI) run(ctx context.Context, args ...string) (proc.Result, error) {
	res, err := c.Exec.Run(ctx, proc.Cmd{Name: c.Binary, Args: args})
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("docker %s: exit %d: %s", args[0], res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return res, nil
}

func (c *CLI) ListContainers(ctx context.Context, prefix string) ([]string, error) {
	args := []string{"ps", "-a", "--format", "{{.Names}}"}
	if prefix != "" {
		args = append(args, "-f", "name="+prefix)
	}
	res, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var names []string
	sc := bufio.NewScanner(bytes.NewReader(res.Stdout))
	for sc.Scan() {
		if n := strings.TrimSpace(sc.Text()); n != "" {
			names = append(names, n)
		}
	}
	return names, sc.Err()
}

func (c *CLI) RestartContainer(ctx context.Context, name string) error {
	_, err := c.run(ctx, "restart", name)
	return err
}

func (c *CLI) SignalContainer(ctx context.Context, name, signal string) error {
	_, err := c.run(ctx, "kill", "-s", signal, name)
	return err
}

func (c *CLI) FollowLogs(ctx context.Context, name string, opts LogOptions) (io.ReadCloser, error) {
	args := []string{"logs", "--tail", opts.tail()}
	if s := opts.since(); s != "" {
		args = append(args, "--since", s)
	}
	args = append(args, "-f", name)

	p, err := c.Exec.Start(ctx, proc.Cmd{Name: c.Binary, Args: args})
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		// stdout and stderr interleave in arrival order
		for chunk := range p.Output() {
			if _, err := pw.Write(chunk.Data); err != nil {
				p.Kill()
				break
			}
		}
		pw.Close()
	}()
	return &processReader{PipeReader: pr, proc: p}, nil
}

func (c *CLI) Close() error { return nil }

type processReader struct {
	*io.PipeReader
	proc *proc.Process
	once sync.Once
}

func (r *processReader) Close() error {
	r.once.Do(func() { r.proc.Kill() })
	return r.PipeReader.Close()
}
