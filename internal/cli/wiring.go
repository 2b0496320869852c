package cli

import (
	"context"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/cache"
	"conti/internal/config"
	"conti/internal/core"
	"conti/internal/pkg/grpcserver"
	"conti/internal/ports"
	"conti/internal/rates"
	"conti/internal/services"
)

// NewCurrencyService wires the rate client, the snapshot store and, when
// RATE_MEMO_SIZE is positive, an in-process memo registered with manager.
func NewCurrencyService(cfg *config.Config, store ports.RateSnapshotStore, manager *cache.Manager) *services.CurrencyService {
	fetcher := rates.NewClient(cfg.RatesAPIURL, cfg.RatesHTTPTimeout)
	if cfg.RateMemoSize <= 0 {
		return services.NewCurrencyService(store, fetcher, nil)
	}

	memo := cache.NewLRUCache[core.ExchangeRateSnapshot](cfg.RateMemoSize, cfg.RateMemoTTL)
	if manager != nil {
		manager.Register("rate_snapshots", memo)
	}
	return services.NewCurrencyService(store, fetcher, memo)
}

// ConnectAMQP dials the broker when AMQP_URL is set. A failed dial is logged
// and nil is returned so callers run without warmup publishing.
func ConnectAMQP(logger *slog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled, rate warmups will not be queued")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without rate warmups", "error", err)
		return nil
	}
	logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// StartHealthServer serves gRPC health on HEALTH_GRPC_ADDR and mirrors the
// store's reachability into the status of service. It returns nil when the
// address is empty.
func StartHealthServer(ctx context.Context, logger *slog.Logger, addr, service string, store grpcserver.Checker) *grpcserver.Server {
	if addr == "" {
		return nil
	}
	srv := grpcserver.New(addr)
	if _, err := srv.Listen(); err != nil {
		logger.Error("Failed to bind health server", "error", err, "addr", addr)
		return nil
	}
	srv.SetServing("", true)
	go srv.Watch(ctx, service, store, 15*time.Second)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("Health server stopped", "error", err)
		}
	}()
	logger.Info("Health server listening", "addr", addr, "service", service)
	return srv
}

// Publisher adapts an optional client to the port, keeping a nil client a
// nil interface.
func Publisher(c *amqp.Client) ports.RateWarmupPublisher {
	if c == nil {
		return nil
	}
	return c
}
