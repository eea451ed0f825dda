// Package migrations manages the sqitch project under db/migrations, using
// pg_dump and apgdiff to generate deploy and revert scripts.
package migrations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rusenback/subzero-devtools/internal/config"
	"github.com/rusenback/subzero-devtools/internal/proc"
)

// InitialName is the first migration created by Init
const InitialName = "initial"

// ErrNoSqitchConf means Init has not been run
var ErrNoSqitchConf = errors.New("sqitch.conf not found, run `subzero migrations init` first")

// Migrator runs the migration tool chain
type Migrator struct {
	Runner     proc.Executor
	Dir        string
	DBName     string
	Sqitch     string
	PgDump     string
	Java       string
	ApgdiffJar string
	DevURI     string
	ProdURI    string
	Out        io.Writer
}

// New builds a migrator from the project configuration
func New(cfg *config.Config, r proc.Executor) *Migrator {
	return &Migrator{
		Runner:     r,
		Dir:        cfg.MigrationsDir,
		DBName:     cfg.DBName,
		Sqitch:     cfg.SqitchCmd,
		PgDump:     cfg.PgDumpCmd,
		Java:       cfg.JavaCmd,
		ApgdiffJar: cfg.ApgdiffJarPath,
		DevURI:     cfg.DevDBURI,
		ProdURI:    cfg.ProdDBURI,
		Out:        os.Stdout,
	}
}

func (m *Migrator) tmpDir() string { return filepath.Join(m.Dir, "tmp") }

// Init creates the sqitch project and an initial migration holding the
// whole dev schema.
func (m *Migrator) Init(ctx context.Context) error {
	if err := os.MkdirAll(m.tmpDir(), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", m.tmpDir(), err)
	}
	defer os.RemoveAll(m.tmpDir())

	if err := m.run(ctx, proc.Cmd{Name: m.Sqitch, Args: []string{"init", m.DBName, "--engine", "pg"}, Dir: m.Dir}); err != nil {
		return err
	}

	dev, prod := m.dumpPaths(InitialName)
	if err := m.dumpSchema(ctx, m.DevURI, dev); err != nil {
		return err
	}
	// nothing is deployed yet
	if err := os.WriteFile(prod, nil, 0o644); err != nil {
		return fmt.Errorf("create %s: %w", prod, err)
	}

	if err := m.addSqitch(ctx, InitialName, ""); err != nil {
		return err
	}
	return m.diffBoth(ctx, InitialName, dev, prod)
}

// Add creates migration name from the difference between the dev and prod
// schemas. With diff false only the empty sqitch change is added.
func (m *Migrator) Add(ctx context.Context, name, note string, diff bool) error {
	conf := filepath.Join(m.Dir, "sqitch.conf")
	if info, err := os.Stat(conf); err != nil || !info.Mode().IsRegular() {
		return ErrNoSqitchConf
	}

	if err := os.MkdirAll(m.tmpDir(), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", m.tmpDir(), err)
	}
	defer os.RemoveAll(m.tmpDir())

	dev, prod := m.dumpPaths(name)
	if diff {
		if err := m.dumpSchema(ctx, m.DevURI, dev); err != nil {
			return err
		}
		if err := m.dumpSchema(ctx, m.ProdURI, prod); err != nil {
			return err
		}
	}

	if err := m.addSqitch(ctx, name, note); err != nil {
		return err
	}
	if !diff {
		return nil
	}
	return m.diffBoth(ctx, name, dev, prod)
}

func (m *Migrator) dumpPaths(name string) (dev, prod string) {
	return filepath.Join(m.tmpDir(), "dev-"+name+".sql"), filepath.Join(m.tmpDir(), "prod-"+name+".sql")
}

func (m *Migrator) addSqitch(ctx context.Context, name, note string) error {
	if note == "" {
		note = fmt.Sprintf("Add %s migration", name)
	}
	return m.run(ctx, proc.Cmd{Name: m.Sqitch, Args: []string{"add", name, "-n", note}, Dir: m.Dir})
}

func (m *Migrator) dumpSchema(ctx context.Context, uri, file string) error {
	return m.run(ctx, proc.Cmd{
		Name: m.PgDump,
		Args: []string{uri, "-f", file, "--schema-only", "--no-owner", "--no-privileges"},
	})
}

// diffBoth writes revert (dev -> prod) and deploy (prod -> dev) scripts
func (m *Migrator) diffBoth(ctx context.Context, name, dev, prod string) error {
	if err := m.apgdiffToFile(ctx, dev, prod, filepath.Join(m.Dir, "revert", name+".sql")); err != nil {
		return err
	}
	return m.apgdiffToFile(ctx, prod, dev, filepath.Join(m.Dir, "deploy", name+".sql"))
}

// apgdiffToFile writes the diff from `from` to `to` into dest. An empty diff
// leaves dest as sqitch created it.
func (m *Migrator) apgdiffToFile(ctx context.Context, from, to, dest string) error {
	res, err := m.Runner.Run(ctx, proc.Cmd{
		Name: m.Java,
		Args: []string{"-jar", m.ApgdiffJar, "--add-transaction", from, to},
	})
	if err != nil {
		return fmt.Errorf("apgdiff: %w", err)
	}
	if len(res.Stderr) > 0 {
		m.out().Write(res.Stderr)
	}
	if len(res.Stdout) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, res.Stdout, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

// run executes c in exit-on-error mode and echoes its output
func (m *Migrator) run(ctx context.Context, c proc.Cmd) error {
	c.ExitOnError = true
	c.Echo = true
	res, err := m.Runner.Run(ctx, c)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &proc.ExitError{Cmd: c.String(), Code: res.ExitCode}
	}
	return nil
}

func (m *Migrator) out() io.Writer {
	if m.Out != nil {
		return m.Out
	}
	return os.Stdout
}
