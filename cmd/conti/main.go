package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"conti/internal/cache"
	"conti/internal/cli"
	apphttp "conti/internal/http"
	applog "conti/internal/log"
	"conti/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("conti")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	store, closeStore := cli.InitStore(ctx, logger, cfg)

	publisher := cli.ConnectAMQP(logger, cfg)

	cacheManager := cache.NewManager()
	currency := cli.NewCurrencyService(cfg, store, cacheManager)
	cacheManager.StartCleanup(10 * time.Minute)

	processor := services.NewRecurringProcessor(store, store,
		services.WithConcurrency(cfg.RecurringConcurrency),
		services.WithForwardPreviewYears(cfg.ForwardPreviewYears),
		services.WithWarmupPublisher(cli.Publisher(publisher)))

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Expenses:  services.NewExpenseService(store, processor, cli.Publisher(publisher)),
		Recurring: processor,
		Rates:     currency,
		Reports:   services.NewReportService(store, currency, cfg.RecurringConcurrency),
		Defaults:  services.NewDefaultsService(store),
		Taxonomy:  services.NewTaxonomyService(store),
		Wallets:   services.NewWalletService(store),
		Store:     store,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             applog.New(applog.ConfigFromEnv(applog.ComponentHTTP)),
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := closeStore(); err != nil {
			logger.Warn("Store close error", "error", err)
		}
	})

	logger.Info("Starting conti server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"rate_memo_size", cfg.RateMemoSize,
		"amqp_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = closeStore()
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
