package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"basegraph.app/storepilot/internal/app"
	"basegraph.app/storepilot/internal/store"
)

func newReportCmd() *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Inspect stored cycle reports",
	}
	report.AddCommand(newReportShowCmd(), newReportListCmd())
	return report
}

func newReportShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <cycle-id>",
		Short: "Print one cycle report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.FetchReport(ctx, args[0])
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("no report for cycle %s", args[0])
					}
					return err
				}
				return printReport(cmd.OutOrStdout(), report, output)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	return cmd
}

func newReportListCmd() *cobra.Command {
	var (
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent cycle reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				reports, err := a.Engine.RecentReports(ctx, limit)
				if err != nil {
					return err
				}
				return printReportList(cmd.OutOrStdout(), reports, output)
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&limit, "limit", 0, "Number of reports (0 = RECENT_REPORTS)")
	flags.StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	return cmd
}
