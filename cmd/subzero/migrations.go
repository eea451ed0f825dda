package main

import (
	"github.com/rusenback/subzero-devtools/internal/migrations"
	"github.com/spf13/cobra"
)

func migrationsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrations",
		Short: "Manage sqitch migrations generated from schema diffs",
	}
	cmd.AddCommand(migrationsInitCmd(opts))
	cmd.AddCommand(migrationsAddCmd(opts))
	return cmd
}

func migrationsInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the sqitch project with an initial migration of the dev schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrator(opts)
			if err != nil {
				return err
			}
			return m.Init(cmd.Context())
		},
	}
}

func migrationsAddCmd(opts *rootOptions) *cobra.Command {
	var (
		note   string
		noDiff bool
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a migration holding the diff between the dev and prod schemas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrator(opts)
			if err != nil {
				return err
			}
			return m.Add(cmd.Context(), args[0], note, !noDiff)
		},
	}
	cmd.Flags().StringVarP(&note, "note", "n", "", "Migration note")
	cmd.Flags().BoolVar(&noDiff, "no-diff", false, "Create empty deploy/revert scripts")
	return cmd
}

func newMigrator(opts *rootOptions) (*migrations.Migrator, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return migrations.New(cfg, newRunner(cfg)), nil
}
