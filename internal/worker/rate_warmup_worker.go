// Package worker holds the background jobs run by the worker binaries.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/core"
)

// SnapshotEnsurer caches the rate snapshot for a date.
type SnapshotEnsurer interface {
	EnsureSnapshot(ctx context.Context, date core.Date) (core.ExchangeRateSnapshot, error)
}

// RateWarmupWorker fills the rate snapshot cache ahead of report requests.
type RateWarmupWorker struct {
	rates SnapshotEnsurer
	now   func() time.Time
}

func NewRateWarmupWorker(rates SnapshotEnsurer) *RateWarmupWorker {
	return &RateWarmupWorker{rates: rates, now: time.Now}
}

// HandleRateWarmup processes a single warmup message from AMQP. Returning an
// error requeues the message.
func (w *RateWarmupWorker) HandleRateWarmup(ctx context.Context, msg *amqp.RateWarmupMessage) error {
	date, err := msg.SnapshotDate()
	if err != nil {
		return fmt.Errorf("parse warmup date: %w", err)
	}

	// no published rates exist for future dates yet
	if date.IsAfter(core.DateOf(w.now())) {
		slog.InfoContext(ctx, "Skipping rate warmup for future date",
			"date", msg.Date,
			"currency", msg.Currency)
		return nil
	}

	if core.NormalizeCurrency(msg.Currency) == core.PivotCurrency {
		return nil
	}

	start := time.Now()
	snap, err := w.rates.EnsureSnapshot(ctx, date)
	if err != nil {
		return fmt.Errorf("ensure snapshot for %s: %w", msg.Date, err)
	}

	slog.InfoContext(ctx, "Rate snapshot warm",
		"date", msg.Date,
		"currency", msg.Currency,
		"currencies", len(snap.Rates),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
