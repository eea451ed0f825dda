// cmd/subzero/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rusenback/subzero-devtools/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile string
	debug   bool
}

func (o *rootOptions) level(configured string) string {
	if o.debug {
		return logging.LevelDebug
	}
	return configured
}

func main() {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "subzero",
		Short:         "Development tools for subZero / PostgREST projects",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Configure(opts.level(logging.LevelWarn), os.Stderr)
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "Path to the project .env file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(dashboardCmd(opts))
	root.AddCommand(watchCmd(opts))
	root.AddCommand(migrationsCmd(opts))
	root.AddCommand(baseProjectCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
