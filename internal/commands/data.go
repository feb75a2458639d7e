package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-timetable-api/internal/app"
	"github.com/noah-isme/sma-timetable-api/internal/service"
)

func newImportCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load skills or teachers from a CSV file",
	}
	cmd.AddCommand(
		newImportKindCommand(e, "skills", func(a *app.App) importFunc { return a.Services.Imports.ImportSkills }),
		newImportKindCommand(e, "teachers", func(a *app.App) importFunc { return a.Services.Imports.ImportTeachers }),
	)
	return cmd
}

type importFunc = func(ctx context.Context, filename string, content []byte) (*service.ImportResult, error)

func newImportKindCommand(e *env, kind string, pick func(*app.App) importFunc) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <file.csv>",
		Short: "Import " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return e.withApp(cmd.Context(), func(a *app.App) error {
				result, err := pick(a)(cmd.Context(), filepath.Base(args[0]), content)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d added, %d skipped", kind, result.Added, result.Skipped)
				if result.CreatedSkills > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), ", %d skills created", result.CreatedSkills)
				}
				if result.DefaultedSlots > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), ", %d given default availability", result.DefaultedSlots)
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
}

func newExportCommand(e *env) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the weekly grid as CSV or PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(a *app.App) error {
				file, err := a.Services.Export.Export(cmd.Context(), format)
				if err != nil {
					return err
				}
				target := out
				if target == "" {
					target = file.Filename
				}
				if err := os.WriteFile(target, file.Data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", target, len(file.Data))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", service.ExportFormatCSV, "csv or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default: generated name)")
	return cmd
}

func newScheduleCommand(e *env) *cobra.Command {
	var day, output string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the weekly grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(a *app.App) error {
				view, _, err := a.Services.Grid.Schedule(cmd.Context(), day)
				if err != nil {
					return err
				}
				return renderSchedule(cmd.OutOrStdout(), view, output)
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "active day")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "text, json or yaml")
	return cmd
}

func renderSchedule(w io.Writer, view *service.ScheduleView, output string) error {
	switch strings.ToLower(output) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(view)
	case "text", "":
		return renderScheduleText(w, view)
	default:
		return fmt.Errorf("unknown output %q: want text, json or yaml", output)
	}
}

func renderScheduleText(w io.Writer, view *service.ScheduleView) error {
	for _, day := range view.Days {
		if day.Day != view.ActiveDay {
			continue
		}
		fmt.Fprintf(w, "%s (%d unassigned this week)\n", day.Day, view.Unassigned)
		for _, row := range day.Rows {
			if row.IsLunch {
				fmt.Fprintf(w, "  %-12s LUNCH\n", row.Slot)
				continue
			}
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				label := "-"
				if cell.SessionID != nil {
					label = "unassigned"
					if cell.AssignedTeacherName != nil {
						label = *cell.AssignedTeacherName
					}
				}
				cells = append(cells, fmt.Sprintf("%s: %s", cell.YearGroup, label))
			}
			fmt.Fprintf(w, "  %-12s %s\n", row.Slot, strings.Join(cells, " | "))
		}
	}
	return nil
}
