package main

import (
	"log/slog"

	"github.com/rusenback/subzero-devtools/internal/logging"
	"github.com/rusenback/subzero-devtools/internal/tailer"
	"github.com/rusenback/subzero-devtools/internal/tui"
	"github.com/spf13/cobra"
)

func dashboardCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"dash"},
		Short:   "Tail the project containers and reload code on changes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			// the terminal belongs to the dashboard, logs go to a file
			logFile, err := logging.OpenFile(cfg.LogFile)
			if err != nil {
				return err
			}
			defer logFile.Close()
			if err := logging.Configure(opts.level(cfg.LogLevel), logFile); err != nil {
				return err
			}
			logger := slog.Default().With("component", "dashboard")

			s, err := openStack(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			bridge := tui.NewBridge(0)
			deps := tui.Deps{
				Containers: s.containers,
				Bridge:     bridge,
				Tailer:     tailer.New(s.engine, bridge.Panes(), tailer.DefaultTail, logger),
				Watcher:    s.orchestrator(bridge, logger),
				Resetter:   s.resetter,
				Restarter:  s.engine,
				LogLength:  cfg.LogLength,
				AppDir:     cfg.AppDir,
				Logger:     logger,
			}
			if s.history != nil {
				deps.History = s.history
			}
			logger.Info("dashboard starting", "containers", s.containers.Keys(), "engine", cfg.Engine)
			return tui.Run(ctx, deps)
		},
	}
}
