package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable-api/internal/app"
)

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema, migrate legacy year groups and repair the grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.AcquireInstanceLock(cmd.Context()); err != nil {
					return err
				}
				if err := a.Bootstrap(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
				return nil
			})
		},
	}
}

func newAllocateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "allocate",
		Short: "Reassign teachers to every grid session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(a *app.App) error {
				run, err := a.Services.Allocation.Run(cmd.Context(), "cli")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d assigned, %d unassigned\n", run.ID, run.Assigned, run.Unassigned)
				return nil
			})
		},
	}
}

func newRepairCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Collapse duplicate cells and clear double bookings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Services.Grid.Repair(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "removed %d duplicate sessions, cleared %d double bookings\n", result.Removed, result.ConflictsCleared)

				orphans, err := a.Services.Grid.Orphans(cmd.Context())
				if err != nil {
					return err
				}
				if len(orphans) > 0 {
					fmt.Fprintf(out, "%d sessions sit outside the grid and are ignored:\n", len(orphans))
					for _, s := range orphans {
						fmt.Fprintf(out, "  #%d day=%q slot=%q year_group=%q\n", s.ID, s.Day, s.Slot, s.YearGroup)
					}
				}
				return nil
			})
		},
	}
}
