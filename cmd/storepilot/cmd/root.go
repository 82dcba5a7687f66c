package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"basegraph.app/storepilot/common/logger"
	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/app"
)

// The server runs as node 1.
const cliNodeID = 2

var loadConfig = func() (config.Config, error) {
	return config.Load(config.ServiceTypeCLI)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "storepilot",
		Short: "Run and inspect storepilot decision cycles",
		Long: `storepilot runs the decision cycle against the configured catalog:
snapshot, plan, govern, execute, report.

Local commands use the configured store directly:
  storepilot cycle run --hours 48 --dry-run
  storepilot report list --limit 5
  storepilot planner health

Remote commands talk to a running server:
  storepilot cycle trigger --server http://localhost:8080 --wait

Mutations reach the catalog only when MUTATIONS_ENABLED=true, --apply is set
and --dry-run is not.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newCycleCmd(), newReportCmd(), newPlannerCmd())
	return root
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		return err
	}
	return nil
}

// withApp loads configuration, wires the cycle and hands it to fn. Logs go
// to stderr so stdout stays parseable.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.SetupWithWriter(cfg, cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, cliNodeID)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.WarnContext(ctx, "failed to close", "error", err)
		}
	}()

	return fn(ctx, a)
}
