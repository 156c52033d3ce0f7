// cmd/worker/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartdeals-service/internal/app"
	"smartdeals-service/internal/config"
	"smartdeals-service/internal/jobs"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// The worker runs everything time-driven: the asynq job server handling the
// one-shot campaign timers, the reconciliation loop that catches anything the
// timers missed, the timer safety check and the occurrence materializer.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[WORKER] No .env file found, relying on system env vars")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core, err := app.BuildCore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build worker core", zap.Error(err))
	}
	defer core.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPass},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues:      map[string]int{jobs.QueueCampaigns: 1},
		},
	)

	go func() {
		if err := srv.Run(jobs.NewMux(core.EventScheduler)); err != nil {
			logger.Fatal("asynq server stopped", zap.Error(err))
		}
	}()

	go runReconcileLoop(ctx, core, cfg.ReconcileInterval)
	go runMaterializeLoop(ctx, core, cfg.MaterializeInterval)
	go runSafetyCheckLoop(ctx, core)

	logger.Info("worker started",
		zap.Duration("reconcile_interval", cfg.ReconcileInterval),
		zap.Duration("materialize_interval", cfg.MaterializeInterval),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
	cancel()
	srv.Shutdown()
}

func runReconcileLoop(ctx context.Context, core *app.Core, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := core.Manager.ProcessScheduledCampaigns(ctx); err != nil {
				core.Logger.Error("reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

func runMaterializeLoop(ctx context.Context, core *app.Core, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := core.Materializer.Run(ctx)
			if err != nil {
				core.Logger.Error("materializer pass failed", zap.Error(err))
				continue
			}
			if n > 0 {
				core.Logger.Info("occurrences materialized", zap.Int("count", n))
			}
		}
	}
}

// The safety check is cheap relative to how rarely timers go missing, so it
// runs hourly.
func runSafetyCheckLoop(ctx context.Context, core *app.Core) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	core.EventScheduler.RunSafetyCheck(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			core.EventScheduler.RunSafetyCheck(ctx)
		}
	}
}
