package main

import (
	"context"
	"errors"
	"os"
	"time"

	"conti/internal/amqp"
	"conti/internal/cache"
	"conti/internal/cli"
	"conti/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("rates-worker")
	logger.Info("Starting rates-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the rates worker")
		os.Exit(1)
	}

	store, closeStore := cli.InitStore(context.Background(), logger, cfg)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		_ = closeStore()
		os.Exit(1)
	}

	cacheManager := cache.NewManager()
	currency := cli.NewCurrencyService(cfg, store, cacheManager)
	cacheManager.StartCleanup(10 * time.Minute)
	warmup := worker.NewRateWarmupWorker(currency)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		cacheManager.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close error", "error", err)
		}
		if err := closeStore(); err != nil {
			logger.Warn("Store close error", "error", err)
		}
	})

	health := cli.StartHealthServer(ctx, logger, cfg.HealthGRPCAddr, "rates-worker", store)

	go func() {
		if err := client.ConsumeRateWarmup(ctx, warmup.HandleRateWarmup); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	logger.Info("Consuming rate warmup messages",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"rates_api", cfg.RatesAPIURL)

	cli.WaitForShutdown(ctx, done)
	if health != nil {
		health.Stop()
	}
	logger.Info("Rates-worker shutdown complete")
}
