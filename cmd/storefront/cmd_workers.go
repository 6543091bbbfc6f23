package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/internal/bootstrap"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/queue"
)

// untilSignal boots the app, hands it to run and blocks until SIGINT or
// SIGTERM, then drains background work.
func untilSignal(cmd *cobra.Command, run func(context.Context, *bootstrap.App)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.FromConfig(ctx)
	if err != nil {
		return err
	}
	run(ctx, a)
	<-ctx.Done()
	logger.Info("shutting down", "command", cmd.Name())

	shutdown, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout())
	defer cancel()
	return a.Close(shutdown)
}

func newQueueWorkCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "queue:work",
		Short: "Consume queued jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return untilSignal(cmd, func(ctx context.Context, a *bootstrap.App) {
				if a.QueueDriverName() != "redis" {
					logger.Warn("QUEUE_DRIVER is not redis; only jobs dispatched by this process are visible")
				}
				n := workers
				if n < 1 {
					n = config.QueueWorkers()
				}
				logger.Info("queue worker started", "workers", n, "driver", a.QueueDriverName())
				a.RunWorkers(ctx, n)
			})
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent workers (default QUEUE_WORKERS)")
	return cmd
}

func newScheduleRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule:run",
		Short: "Run scheduled tasks until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return untilSignal(cmd, func(ctx context.Context, a *bootstrap.App) {
				for _, t := range a.Scheduler.List() {
					logger.Info("task registered", "task", t)
				}
				a.Scheduler.Start(ctx)
			})
		},
	}
}

// withLedger needs a SQL store; failed jobs are only persisted there.
func withLedger(cmd *cobra.Command, fn func(*bootstrap.App, *queue.GormLedger) error) error {
	return withApp(cmd, func(a *bootstrap.App) error {
		if a.SQL == nil {
			return errors.New("failed jobs are only kept with a SQL DB_DRIVER")
		}
		ledger, err := queue.NewGormLedger(a.SQL)
		if err != nil {
			return err
		}
		return fn(a, ledger)
	})
}

func newQueueFailedCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "queue:failed",
		Short: "List jobs that exhausted their attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd, func(_ *bootstrap.App, ledger *queue.GormLedger) error {
				recs, err := ledger.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTYPE\tATTEMPTS\tFAILED AT\tERROR")
				for _, r := range recs {
					fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", r.ID, r.JobType, r.Attempts, r.FailedAt.Format("2006-01-02 15:04:05"), r.Error)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "rows to show")
	return cmd
}

func newQueueRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue:retry ID...",
		Short: "Push failed jobs back onto the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(a *bootstrap.App, ledger *queue.GormLedger) error {
				if a.QueueDriverName() != "redis" {
					return errors.New("queue:retry needs QUEUE_DRIVER=redis so a worker can pick the jobs up")
				}
				ctx := cmd.Context()
				for _, arg := range args {
					id, err := strconv.ParseUint(arg, 10, 64)
					if err != nil {
						return fmt.Errorf("bad job id %q", arg)
					}
					rec, err := ledger.Find(ctx, uint(id))
					if err != nil {
						return fmt.Errorf("job %d: %w", id, err)
					}
					if err := a.Queue.Retry(ctx, rec); err != nil {
						return err
					}
					if err := ledger.Forget(ctx, rec.ID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "retrying %d (%s)\n", rec.ID, rec.JobType)
				}
				return nil
			})
		},
	}
}
