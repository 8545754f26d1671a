package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/growthbot/internal/logging"
	"github.com/rcliao/growthbot/internal/schedule"
)

func init() {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run one cycle on every tick of a cron schedule",
		Long:  "Stay in the foreground and run a single cycle on every tick of the schedule (UTC). Overlapping ticks are skipped.",
		Args:  cobra.NoArgs,
		Run:   runDaemon,
	}

	cmd.Flags().String("schedule", "", "Cron expression (default: config schedule)")
	cmd.Flags().Bool("now", false, "Also run a cycle immediately")

	RootCmd.AddCommand(cmd)
}

func runDaemon(cmd *cobra.Command, args []string) {
	expr, _ := cmd.Flags().GetString("schedule")
	now, _ := cmd.Flags().GetBool("now")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := setup(false)
	defer e.Close()
	if expr == "" {
		expr = e.cfg.Schedule
	}

	job := func(ctx context.Context) error {
		logger := logging.WithRun(e.logger)
		ctrl, err := e.controller(ctx, logger)
		if err != nil {
			return err
		}
		state, err := ctrl.Step(ctx)
		if err != nil {
			return err
		}
		logger.Info("cycle finished", zap.Stringer("next", state))
		return nil
	}

	d, err := schedule.New(ctx, expr, job, e.logger)
	if err != nil {
		exitErr("daemon", err)
	}
	d.Start()
	if now {
		if err := d.RunNow(); err != nil {
			exitErr("daemon", err)
		}
	}

	<-ctx.Done()
	e.logger.Info("shutting down")
	if err := d.Shutdown(); err != nil {
		exitErr("shutdown", err)
	}
}
