package handlers

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"showrunner/internal/generation"
	"showrunner/internal/logger"
)

// NewWorkerCmd creates the long-running worker command: scheduler ticks plus
// generation queue consumption. Multiple worker processes can run against the
// same data directory; per-group locks keep their runs serialized.
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the scheduling and generation worker loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newFullApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			workerID := uuid.NewString()
			tickInterval := duration(viper.GetString("cadence.tick_interval"), 5*time.Minute)
			logger.Info("Worker started", "worker", workerID, "tick_interval", tickInterval.String())

			ticker := time.NewTicker(tickInterval)
			defer ticker.Stop()

			// First tick immediately so an idle deploy does not wait a full
			// interval before evaluating groups.
			runTick(ctx, app)
			drainQueue(ctx, app, workerID)

			for {
				select {
				case <-ctx.Done():
					logger.Info("Worker stopping", "worker", workerID)
					return nil
				case <-ticker.C:
					runTick(ctx, app)
					drainQueue(ctx, app, workerID)
				}
			}
		},
	}
}

func runTick(ctx context.Context, app *fullApp) {
	enqueued, err := app.Scheduler.Tick(ctx)
	if err != nil {
		logger.Error("Scheduler tick failed", err)
		return
	}
	if enqueued > 0 {
		logger.Info("Scheduler tick complete", "enqueued", enqueued)
	}
}

func drainQueue(ctx context.Context, app *fullApp, workerID string) {
	for {
		if ctx.Err() != nil {
			return
		}
		request, err := app.Store.DequeueGeneration(ctx, workerID)
		if err != nil {
			logger.Error("Failed to dequeue generation", err)
			return
		}
		if request == nil {
			return
		}

		outcome, runErr := app.Coordinator.Run(ctx, request)
		switch outcome.Status {
		case generation.OutcomeLocked:
			// Normal contention: another worker holds the group. The request
			// is consumed, not re-queued; the next tick re-evaluates.
			logger.Debug("Generation skipped, group locked", "group", request.GroupID)
		case generation.OutcomeFailed:
			logger.Warn("Generation failed", "group", request.GroupID,
				"episode", outcome.EpisodeID, "reason", outcome.Reason)
			if runErr != nil {
				logger.Debug("Generation failure detail", "error", runErr.Error())
			}
		default:
			logger.Info("Generation completed", "group", request.GroupID, "episode", outcome.EpisodeID)
		}

		if err := app.Store.CompleteGeneration(ctx, request.ID); err != nil {
			logger.Error("Failed to complete generation request", err, "request", request.ID)
			return
		}
	}
}
