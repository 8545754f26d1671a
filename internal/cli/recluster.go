package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rcliao/growthbot/internal/logging"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recluster",
		Short: "Re-derive the topic clusters without touching the knowledge logs",
		Args:  cobra.NoArgs,
		Run:   runRecluster,
	}

	RootCmd.AddCommand(cmd)
}

func runRecluster(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	e := setup(false)
	defer e.Close()

	ctrl, err := e.controller(ctx, logging.WithRun(e.logger))
	if err != nil {
		exitErr("init", err)
	}
	if err := ctrl.ForceRecluster(ctx); err != nil {
		exitErr("recluster", err)
	}
}
