package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rusenback/subzero-devtools/internal/config"
	"github.com/rusenback/subzero-devtools/internal/proc"
	"github.com/rusenback/subzero-devtools/internal/scaffold"
	"github.com/spf13/cobra"
)

func baseProjectCmd() *cobra.Command {
	opts := scaffold.Options{
		Image:    config.DefaultDockerImage,
		MountDir: config.DefaultDockerAppDir,
		UID:      os.Getuid(),
		GID:      os.Getgid(),
	}
	cmd := &cobra.Command{
		Use:   "base-project",
		Short: "Download a starter kit into a new project directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scaffold.Download(cmd.Context(), proc.NewRunner(proc.ToolImage{}), opts); err != nil {
				return err
			}
			fmt.Printf("Project created in %s\n", opts.Dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "Directory of the new project")
	cmd.Flags().StringVar(&opts.Kit, "kit", "rest", "Starter kit ("+strings.Join(scaffold.KitNames(), ", ")+")")
	cmd.Flags().BoolVar(&opts.WithDB, "with-db", true, "Keep the db component of the kit")
	cmd.Flags().StringVar(&opts.Image, "image", opts.Image, "Image used to download the kit")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}
