package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/growthbot/internal/cycle"
	"github.com/rcliao/growthbot/internal/logging"
)

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run cycles until the next conceptualization completes",
		Long: "Run normal research-and-post cycles until the recent knowledge log reaches the threshold,\n" +
			"then synthesize a concept and re-cluster. With --once only a single cycle runs.",
		Run: runRun,
	}
	addRunFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("force-recluster", false, "Re-derive clusters from the corpus before cycling")
	cmd.Flags().Bool("once", false, "Run exactly one cycle")
}

func runRun(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force-recluster")
	once, _ := cmd.Flags().GetBool("once")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := setup(false)
	defer e.Close()

	logger := logging.WithRun(e.logger)
	ctrl, err := e.controller(ctx, logger)
	if err != nil {
		exitErr("init", err)
	}

	if force {
		logger.Info("forced re-clustering")
		if err := ctrl.ForceRecluster(ctx); err != nil {
			exitErr("recluster", err)
		}
	}

	state, err := cycles(ctx, ctrl, once)
	if err != nil {
		exitErr("cycle", err)
	}
	logger.Info("run finished", zap.Stringer("next", state))
}

func cycles(ctx context.Context, ctrl *cycle.Controller, once bool) (cycle.State, error) {
	if once {
		return ctrl.Step(ctx)
	}
	return ctrl.Run(ctx)
}
