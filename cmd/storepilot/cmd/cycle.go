package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"basegraph.app/storepilot/internal/app"
	"basegraph.app/storepilot/internal/http/dto"
	"basegraph.app/storepilot/internal/model"
)

const pollInterval = 250 * time.Millisecond

func newCycleCmd() *cobra.Command {
	cycle := &cobra.Command{
		Use:   "cycle",
		Short: "Run or trigger decision cycles",
	}
	cycle.AddCommand(newCycleRunCmd(), newCycleTriggerCmd())
	return cycle
}

func newCycleRunCmd() *cobra.Command {
	var (
		hours   int
		apply   bool
		dryRun  bool
		timeout time.Duration
		output  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one cycle in-process and print its report",
		Long: `Run one decision cycle in this process against the configured store and
catalog, wait for it to finish and print the report.

Example:
  storepilot cycle run --hours 48 --dry-run
  storepilot cycle run --apply --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				runCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				go func() { _ = a.Engine.Run(runCtx) }()

				job, err := a.Engine.Enqueue(runCtx, model.CycleRequest{
					WindowHours: hours,
					DryRun:      dryRun,
					Apply:       apply,
				})
				if err != nil {
					return fmt.Errorf("enqueueing cycle: %w", err)
				}

				waitCtx, cancelWait := context.WithTimeout(runCtx, timeout)
				defer cancelWait()
				done, err := a.Engine.Wait(waitCtx, job.JobID, pollInterval)
				if err != nil {
					return fmt.Errorf("waiting for job %s: %w", job.JobID, err)
				}
				if done.Status == model.JobStatusError {
					return fmt.Errorf("cycle %s failed: %s", done.CycleID, done.Error)
				}

				report, err := a.Engine.FetchReport(ctx, done.CycleID)
				if err != nil {
					return fmt.Errorf("loading report %s: %w", done.CycleID, err)
				}
				return printReport(cmd.OutOrStdout(), report, output)
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&hours, "hours", 24, "Metrics window in hours")
	flags.BoolVar(&apply, "apply", false, "Request catalog mutations (still requires MUTATIONS_ENABLED=true)")
	flags.BoolVar(&dryRun, "dry-run", false, "Plan and govern only; execute nothing")
	flags.DurationVar(&timeout, "timeout", 30*time.Minute, "How long to wait for the cycle")
	flags.StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	return cmd
}

func newCycleTriggerCmd() *cobra.Command {
	var (
		server   string
		adminKey string
		hours    int
		apply    bool
		dryRun   bool
		wait     bool
		timeout  time.Duration
		output   string
	)

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Ask a running server to run a cycle",
		Long: `Enqueue a cycle on a running storepilot server. With --wait the command
polls the job and prints the report once the cycle finishes.

The server URL and admin key default to STOREPILOT_SERVER_URL and ADMIN_API_KEY.

Example:
  storepilot cycle trigger --hours 48 --wait
  storepilot cycle trigger --apply --server https://pilot.internal`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			if server == "" || adminKey == "" {
				if cfg, err := loadConfig(); err == nil {
					server = firstNonEmpty(server, cfg.ServerURL)
					adminKey = firstNonEmpty(adminKey, cfg.AdminAPIKey)
				}
			}
			if server == "" {
				return fmt.Errorf("--server is required")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			client := newServerClient(server, adminKey)

			accepted, err := client.TriggerCycle(ctx, dto.TriggerCycleRequest{
				WindowHours: hours,
				DryRun:      dryRun,
			}, apply)
			if err != nil {
				return fmt.Errorf("triggering cycle: %w", err)
			}

			if !wait {
				cmd.Printf("%s cycle queued\njob:   %s\ncycle: %s\n",
					statusBadge(string(accepted.Status)), accepted.JobID, accepted.CycleID)
				return nil
			}

			waitCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			job, err := client.WaitJob(waitCtx, accepted.JobID, time.Second)
			if err != nil {
				return fmt.Errorf("waiting for job %s: %w", accepted.JobID, err)
			}
			if job.Status == model.JobStatusError {
				return fmt.Errorf("cycle %s failed: %s", job.CycleID, job.Error)
			}

			report, err := client.GetReport(ctx, job.CycleID)
			if err != nil {
				return fmt.Errorf("loading report %s: %w", job.CycleID, err)
			}
			return printReport(cmd.OutOrStdout(), report, output)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&server, "server", "", "Server base URL")
	flags.StringVar(&adminKey, "admin-key", "", "Admin API key")
	flags.IntVar(&hours, "hours", 24, "Metrics window in hours")
	flags.BoolVar(&apply, "apply", false, "Request catalog mutations")
	flags.BoolVar(&dryRun, "dry-run", false, "Plan and govern only")
	flags.BoolVar(&wait, "wait", false, "Wait for the cycle and print its report")
	flags.DurationVar(&timeout, "timeout", 30*time.Minute, "How long to wait with --wait")
	flags.StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
