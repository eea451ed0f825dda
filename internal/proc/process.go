package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Stream identifies which pipe a chunk came from
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Chunk is one read from a child's pipe, not aligned to lines.
type Chunk struct {
	Stream Stream
	Data   []byte
}

// Process is a background child. Output must be drained until it is closed
// (or Kill called); Done is closed once the child has exited.
type Process struct {
	output chan Chunk
	done   chan struct{}
	quit   chan struct{}

	proc     *os.Process
	exitCode int
	err      error
	killOnce sync.Once
}

// Start launches c and streams its output
func (r *Runner) Start(ctx context.Context, c Cmd) (*Process, error) {
	cmd := r.command(ctx, c)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.Name, err)
	}

	p := &Process{
		output: make(chan Chunk, 64),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
		proc:   cmd.Process,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go p.pump(&wg, Stdout, stdout)
	go p.pump(&wg, Stderr, stderr)

	go func() {
		wg.Wait()
		close(p.output)
		// Wait only after both pipes are drained
		p.err = cmd.Wait()
		p.exitCode = exitCodeFromError(p.err)
		close(p.done)
	}()

	return p, nil
}

func (p *Process) pump(wg *sync.WaitGroup, s Stream, r io.Reader) {
	defer wg.Done()
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case p.output <- Chunk{Stream: s, Data: data}:
			case <-p.quit:
				io.Copy(io.Discard, r)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Output delivers chunks as they are read; closed when both pipes hit EOF
func (p *Process) Output() <-chan Chunk { return p.output }

// Done is closed after the child exited
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitCode is valid once Done is closed
func (p *Process) ExitCode() int { return p.exitCode }

// Wait blocks until exit and returns the exit code
func (p *Process) Wait() int {
	<-p.done
	return p.exitCode
}

// Kill terminates the child. Pending output is discarded.
func (p *Process) Kill() error {
	var err error
	p.killOnce.Do(func() {
		close(p.quit)
		if p.proc == nil {
			return
		}
		err = p.proc.Kill()
		if errors.Is(err, os.ErrProcessDone) {
			err = nil
		}
	})
	return err
}

// NewProcess builds a Process fed by the caller, for test doubles of Executor.
// Closing output ends the stream; finish records the exit code and closes Done.
func NewProcess() (p *Process, output chan<- Chunk, finish func(code int)) {
	p = &Process{
		output: make(chan Chunk, 64),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
	}
	var once sync.Once
	finish = func(code int) {
		once.Do(func() {
			p.exitCode = code
			close(p.done)
		})
	}
	return p, p.output, finish
}
