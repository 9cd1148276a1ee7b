package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/internal/quota"
	"github.com/mxkodo/pubcast/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the timed-refresh scheduler in the foreground.",
	Long: `Fires one refresh action against the configured target at each
configured HH:MM slot, daily, in the configured timezone. Runs until
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if a.cfg.Schedule.Target == "" {
			return fmt.Errorf("schedule.target is not configured")
		}
		if len(a.cfg.Schedule.Times) == 0 {
			return fmt.Errorf("schedule.times is empty")
		}
		loc, err := time.LoadLocation(a.cfg.Schedule.Timezone)
		if err != nil {
			return fmt.Errorf("invalid schedule.timezone: %w", err)
		}

		sched := scheduler.New(loc, a.logger)
		for _, slot := range a.cfg.Schedule.Times {
			if err := sched.AddSlot(a.cfg.Schedule.Target, slot, a.refreshSlot); err != nil {
				return err
			}
		}

		sched.Start()
		a.logger.Info("Scheduler running",
			zap.String("target", a.cfg.Schedule.Target),
			zap.Strings("slots", a.cfg.Schedule.Times),
			zap.String("timezone", a.cfg.Schedule.Timezone))

		<-ctx.Done()
		a.logger.Info("Shutting down scheduler")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		return sched.Stop(shutdownCtx)
	},
}

// refreshSlot is the job one schedule slot runs: a single refresh attempt
// with full evidence and persistence.
func (a *app) refreshSlot(ctx context.Context, target string) {
	adapter, err := a.adapterFor(target)
	if err != nil {
		a.logger.Error("Cannot build adapter for slot", zap.String("target", target), zap.Error(err))
		return
	}
	defer func() {
		if cerr := adapter.Close(ctx); cerr != nil {
			a.logger.Warn("Adapter close failed", zap.Error(cerr))
		}
	}()

	runner := quota.NewRunner(adapter, a.recorder, a.logger, quota.Options{})
	run, err := runner.RunOnce(ctx)
	if err != nil {
		a.logger.Warn("Scheduled refresh failed", zap.String("target", target), zap.Error(err))
	}
	if _, err := a.recorder.SaveQuotaRun(run); err != nil {
		a.logger.Warn("Failed to write run evidence", zap.Error(err))
	}
	if a.store != nil {
		if err := a.store.SaveQuotaRun(ctx, run); err != nil {
			a.logger.Warn("Failed to persist run", zap.Error(err))
		}
	}
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
