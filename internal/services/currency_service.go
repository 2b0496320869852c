package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/cache"
	"conti/internal/core"
	"conti/internal/ports"
)

// ErrRateUnavailable is returned when a snapshot lacks a usable rate for a
// requested currency.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// CurrencyService converts between currencies with date-specific rates. Daily
// snapshots are read through a persistent store and fetched on a miss.
type CurrencyService struct {
	snapshots ports.RateSnapshotStore
	fetcher   ports.RateFetcher
	memo      cache.Cache[core.ExchangeRateSnapshot]
	now       func() time.Time
}

// NewCurrencyService builds the service. memo may be nil to disable the
// in-process layer; snapshots are immutable so memoized entries never go stale.
func NewCurrencyService(snapshots ports.RateSnapshotStore, fetcher ports.RateFetcher, memo cache.Cache[core.ExchangeRateSnapshot]) *CurrencyService {
	return &CurrencyService{
		snapshots: snapshots,
		fetcher:   fetcher,
		memo:      memo,
		now:       time.Now,
	}
}

// GetRate returns how many units of target one unit of source buys on date.
func (s *CurrencyService) GetRate(ctx context.Context, date core.Date, source, target string) (float64, error) {
	source = core.NormalizeCurrency(source)
	target = core.NormalizeCurrency(target)
	if source == target {
		return 1, nil
	}

	snap, err := s.EnsureSnapshot(ctx, date)
	if err != nil {
		return 0, err
	}
	rate, ok := snap.Cross(source, target)
	if !ok {
		return 0, fmt.Errorf("%w: %s to %s on %s", ErrRateUnavailable, source, target, date)
	}
	return rate, nil
}

// GetLatestRate is GetRate for today.
func (s *CurrencyService) GetLatestRate(ctx context.Context, source, target string) (float64, error) {
	return s.GetRate(ctx, core.DateOf(s.now()), source, target)
}

// EnsureSnapshot returns the snapshot for date, fetching and storing it when
// no complete snapshot is cached. A failed store write is logged and the
// fetched rates are returned anyway.
func (s *CurrencyService) EnsureSnapshot(ctx context.Context, date core.Date) (core.ExchangeRateSnapshot, error) {
	key := date.String()
	if s.memo != nil {
		if snap, ok := s.memo.Get(key); ok {
			return snap, nil
		}
	}

	snap, err := s.snapshots.GetSnapshot(ctx, date)
	switch {
	case err == nil && snap.IsComplete():
		s.remember(key, snap)
		return snap, nil
	case err == nil:
		slog.WarnContext(ctx, "Stored rate snapshot is incomplete, refetching", "date", key)
	case !errors.Is(err, ports.ErrNotFound):
		slog.WarnContext(ctx, "Failed to read rate snapshot", "date", key, "error", err)
	}

	snap, err = s.fetcher.FetchRates(ctx, date, core.PivotCurrency, core.SupportedCurrencies)
	if err != nil {
		return core.ExchangeRateSnapshot{}, fmt.Errorf("%w: fetch rates for %s: %w", ErrRateUnavailable, key, err)
	}
	snap.Date = date

	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			slog.DebugContext(ctx, "Rate snapshot already stored", "date", key)
		} else {
			slog.WarnContext(ctx, "Failed to store rate snapshot", "date", key, "error", err)
		}
	} else {
		slog.InfoContext(ctx, "Stored rate snapshot", "date", key, "currencies", len(snap.Rates))
	}

	if snap.IsComplete() {
		s.remember(key, snap)
	}
	return snap, nil
}

func (s *CurrencyService) remember(key string, snap core.ExchangeRateSnapshot) {
	if s.memo != nil {
		s.memo.Set(key, snap)
	}
}

// Convert expresses amount, dated date and denominated in source, in target.
func (s *CurrencyService) Convert(ctx context.Context, date core.Date, amount core.Money, source, target string) (core.Money, error) {
	rate, err := s.GetRate(ctx, date, source, target)
	if err != nil {
		return core.Money{}, err
	}
	return amount.Scale(rate), nil
}
