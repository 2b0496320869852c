package main

import (
	"context"
	"os"
	"time"

	"conti/internal/cli"
	"conti/internal/services"
	"conti/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("recurring-worker")
	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	store, closeStore := cli.InitStore(context.Background(), logger, cfg)

	publisher := cli.ConnectAMQP(logger, cfg)

	processor := services.NewRecurringProcessor(store, store,
		services.WithConcurrency(cfg.RecurringConcurrency),
		services.WithForwardPreviewYears(cfg.ForwardPreviewYears),
		services.WithWarmupPublisher(cli.Publisher(publisher)))

	recurring, err := worker.NewRecurringWorker(processor, cfg.RecurringSchedule, cfg.RecurringTimeout)
	if err != nil {
		logger.Error("Invalid recurring schedule", "error", err, "schedule", cfg.RecurringSchedule)
		_ = closeStore()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		recurring.Stop()
		if publisher != nil {
			_ = publisher.Close()
		}
		if err := closeStore(); err != nil {
			logger.Warn("Store close error", "error", err)
		}
	})

	health := cli.StartHealthServer(ctx, logger, cfg.HealthGRPCAddr, "recurring-worker", store)

	logger.Info("Recurring expense processor configured",
		"schedule", cfg.RecurringSchedule,
		"concurrency", cfg.RecurringConcurrency,
		"timeout", cfg.RecurringTimeout,
		"backend", cfg.DataBackend)

	if err := recurring.Start(ctx); err != nil {
		logger.Error("Failed to start recurring worker", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if health != nil {
		health.Stop()
	}
	logger.Info("Recurring-worker shutdown complete")
}
