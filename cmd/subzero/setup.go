package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rusenback/subzero-devtools/internal/config"
	"github.com/rusenback/subzero-devtools/internal/engine"
	"github.com/rusenback/subzero-devtools/internal/journal"
	"github.com/rusenback/subzero-devtools/internal/model"
	"github.com/rusenback/subzero-devtools/internal/proc"
	"github.com/rusenback/subzero-devtools/internal/registry"
	"github.com/rusenback/subzero-devtools/internal/reload"
	"github.com/rusenback/subzero-devtools/internal/watcher"
)

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRunner(cfg *config.Config) *proc.Runner {
	tools := proc.NewToolImage(cfg.UseDockerImage, cfg.DockerImage, cfg.AppDir, cfg.DockerAppDir)
	return proc.NewRunner(tools)
}

func newEngine(ctx context.Context, cfg *config.Config, r proc.Executor) (engine.Engine, error) {
	if cfg.Engine == "cli" {
		return engine.NewCLI(r), nil
	}
	ec := engine.DefaultConfig()
	ec.Host = cfg.DockerHost
	c, err := engine.NewClient(ctx, ec)
	if err != nil {
		return nil, fmt.Errorf("connect to docker (is the daemon running?): %w", err)
	}
	return c, nil
}

// stack is what the dashboard and the watch command share
type stack struct {
	cfg        *config.Config
	runner     *proc.Runner
	engine     engine.Engine
	containers *model.ContainerSet
	history    *journal.Journal
	resetter   *reload.Resetter
}

func openStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stack, error) {
	s := &stack{cfg: cfg, runner: newRunner(cfg)}
	s.runner.Logger = logger

	eng, err := newEngine(ctx, cfg, s.runner)
	if err != nil {
		return nil, err
	}
	s.engine = eng

	containers, err := registry.Discover(ctx, eng, cfg.ComposeProjectName, cfg.Titles)
	if err != nil {
		eng.Close()
		return nil, err
	}
	s.containers = containers

	// the dashboard works without history
	if h, err := journal.Open(cfg.HistoryPath); err != nil {
		logger.Warn("history disabled", "path", cfg.HistoryPath, "err", err)
	} else {
		s.history = h
	}

	db, ok := containers.Get("db")
	if !ok {
		logger.Warn("no db container, SQL reloads will fail", "project", cfg.ComposeProjectName)
	}
	s.resetter = &reload.Resetter{
		SQL:        &reload.Psql{Runner: s.runner, Container: db.Name, User: cfg.SuperUser},
		Signaler:   eng,
		Containers: containers,
		DBName:     cfg.DBName,
		DBDir:      cfg.DBDir,
		HupTargets: cfg.HupTargets,
		Lock:       reload.NewLock(),
		Logger:     logger,
	}
	if s.history != nil {
		s.resetter.Journal = s.history
	}
	return s, nil
}

func (s *stack) orchestrator(listener reload.Listener, logger *slog.Logger) *reload.Orchestrator {
	return reload.NewOrchestrator(reload.Options{
		Root:      s.cfg.AppDir,
		Patterns:  s.cfg.WatchGlobs(),
		Ignore:    s.cfg.IgnorePattern,
		Settle:    watcher.DefaultSettle,
		SourceDir: s.cfg.SourceDir,
		HupOther:  s.cfg.HupOther,
	}, s.resetter, listener, logger)
}

func (s *stack) Close() {
	if s.history != nil {
		s.history.Close()
	}
	s.engine.Close()
}
