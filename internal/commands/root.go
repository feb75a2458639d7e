// Package commands implements the timetablectl operator CLI.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/app"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
)

// SetVersion sets the version information.
func SetVersion(v, c string) {
	version = v
	commit = c
}

// env carries the loaded configuration between the root and subcommands.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	e := &env{}
	var verbose bool

	root := &cobra.Command{
		Use:           "timetablectl",
		Short:         "Operate the timetable allocation service",
		Long:          "timetablectl bootstraps the database, runs allocations and repairs, imports CSV data and exports the weekly grid.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg.Log.Format = "console"
			cfg.Log.Level = "warn"
			if verbose {
				cfg.Log.Level = "debug"
			}
			l, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			e.cfg, e.logger = cfg, l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newMigrateCommand(e),
		newAllocateCommand(e),
		newRepairCommand(e),
		newImportCommand(e),
		newExportCommand(e),
		newScheduleCommand(e),
		newTokenCommand(e),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// withApp connects to the database for the duration of fn.
func (e *env) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.New(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "timetablectl %s (%s)\n", version, commit)
		},
	}
}
