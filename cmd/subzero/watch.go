package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rusenback/subzero-devtools/internal/logging"
	"github.com/rusenback/subzero-devtools/internal/reload"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	containerPoll = 5 * time.Second
	recentRuns    = 5
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6ADC8"))
)

func watchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload code on changes without the dashboard ('r' resets the database)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := configureLogging(opts.level(cfg.LogLevel)); err != nil {
				return err
			}
			logger := slog.Default().With("component", "watch")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			s, err := openStack(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			out := &console{out: os.Stdout, eol: "\n", appDir: cfg.AppDir}
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				lipgloss.SetColorProfile(termenv.Ascii)
			}

			stdin := int(os.Stdin.Fd())
			if term.IsTerminal(stdin) {
				state, err := term.MakeRaw(stdin)
				if err != nil {
					return fmt.Errorf("raw terminal: %w", err)
				}
				defer term.Restore(stdin, state)
				out.setEOL("\r\n")
				go readKeys(ctx, os.Stdin, out, s.resetter, cancel)
			}

			printHistory(out, s)

			orch := s.orchestrator(out, logger)
			if err := orch.Start(); err != nil {
				return err
			}
			defer orch.Shutdown()

			return waitForContainers(ctx, s, out)
		},
	}
}

// configureLogging writes to stderr at warn unless debug was asked for.
// Raw mode has no newline translation, so info records would stair-step.
func configureLogging(level string) error {
	if level == "" || level == logging.LevelInfo {
		level = logging.LevelWarn
	}
	return logging.Configure(level, os.Stderr)
}

// readKeys handles 'r' and ctrl+c while the terminal is raw
func readKeys(ctx context.Context, in io.Reader, out *console, r *reload.Resetter, quit context.CancelFunc) {
	buf := make([]byte, 1)
	for ctx.Err() == nil {
		n, err := in.Read(buf)
		if err != nil {
			quit()
			return
		}
		if n == 0 {
			continue
		}
		switch buf[0] {
		case 'r':
			go func() {
				res := r.Reset(ctx, out.Log)
				out.result(res)
			}()
		case 'q', 3: // 3 is ctrl+c in raw mode
			quit()
			return
		}
	}
}

// waitForContainers returns once the project has no containers left or ctx ends
func waitForContainers(ctx context.Context, s *stack, out *console) error {
	ticker := time.NewTicker(containerPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			names, err := s.engine.ListContainers(ctx, s.cfg.ComposeProjectName)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				out.Log(failStyle.Render("List containers: " + err.Error()))
				continue
			}
			if len(names) == 0 {
				out.Log("No project containers left, exiting")
				return nil
			}
		}
	}
}

func printHistory(out *console, s *stack) {
	if s.history == nil {
		return
	}
	runs, err := s.history.Recent(recentRuns)
	if err != nil || len(runs) == 0 {
		return
	}
	out.Log(dimStyle.Render("Recent runs:"))
	for _, r := range runs {
		status := okStyle.Render("ok")
		if !r.OK() {
			status = failStyle.Render(fmt.Sprintf("exit %d", r.ExitCode))
		}
		out.Log(dimStyle.Render(fmt.Sprintf("  %s %-12s %s %s",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Kind, status, r.Path)))
	}
}

// console is the reload listener of the watch command
type console struct {
	mu     sync.Mutex
	out    io.Writer
	eol    string
	appDir string
}

var _ reload.Listener = (*console)(nil)

func (c *console) setEOL(eol string) {
	c.mu.Lock()
	c.eol = eol
	c.mu.Unlock()
}

func (c *console) WatcherReady(patterns []string) {
	c.Log(okStyle.Render(fmt.Sprintf("Watching %s for changes.", strings.Join(patterns, ", "))))
	c.Log("in " + c.appDir)
}

func (c *console) ReloadStart(relPath string) {
	c.Log(relPath + " changed")
	c.Log("Starting code reload ------------------------")
}

func (c *console) ReloadEnd(res reload.Result) {
	c.result(res)
	c.Log(okStyle.Render("Ready ---------------------------------------"))
}

func (c *console) result(res reload.Result) {
	if res.OK() {
		c.Log(dimStyle.Render(res.String()))
		return
	}
	c.Log(failStyle.Render(res.String()))
}

func (c *console) Log(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, line+c.eol)
}
