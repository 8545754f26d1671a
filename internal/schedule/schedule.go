// Package schedule runs a job on a cron schedule for daemon mode.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Job is the work run on every tick.
type Job func(ctx context.Context) error

// Daemon runs one Job on a cron schedule. Ticks never overlap: a tick that
// fires while the previous run is still going is skipped.
type Daemon struct {
	scheduler gocron.Scheduler
	job       gocron.Job
	logger    *zap.Logger
}

// New creates a stopped daemon for a standard five-field cron expression,
// evaluated in UTC. ctx is passed to every run of job.
func New(ctx context.Context, expr string, job Job, logger *zap.Logger) (*Daemon, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	d := &Daemon{scheduler: s, logger: logger}
	d.job, err = s.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(func() { d.run(ctx, job) }),
		gocron.WithName("growthbot-cycle"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("schedule %q: %w", expr, err)
	}
	return d, nil
}

func (d *Daemon) run(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	d.logger.Info("scheduled run started")
	if err := job(ctx); err != nil {
		d.logger.Error("scheduled run failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	d.logger.Info("scheduled run finished", zap.Duration("took", time.Since(start)))
}

// Start begins firing the schedule.
func (d *Daemon) Start() {
	d.scheduler.Start()
	if next, err := d.job.NextRun(); err == nil {
		d.logger.Info("daemon started", zap.Time("next_run", next))
	}
}

// RunNow triggers an immediate run outside the schedule.
func (d *Daemon) RunNow() error {
	return d.job.RunNow()
}

// NextRun returns the next scheduled run time.
func (d *Daemon) NextRun() (time.Time, error) {
	return d.job.NextRun()
}

// Shutdown stops the schedule and waits for a running job to return.
func (d *Daemon) Shutdown() error {
	return d.scheduler.Shutdown()
}
