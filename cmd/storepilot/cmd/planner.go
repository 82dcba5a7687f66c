package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"basegraph.app/storepilot/internal/app"
)

func newPlannerCmd() *cobra.Command {
	planner := &cobra.Command{
		Use:   "planner",
		Short: "Inspect the planning provider",
	}
	planner.AddCommand(newPlannerHealthCmd())
	return planner
}

func newPlannerHealthCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Send a minimal request to the planning provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return printHealth(cmd.OutOrStdout(), a.Planner.HealthCheck(ctx), output)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	return cmd
}
