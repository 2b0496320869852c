package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"conti/internal/core"
	"conti/internal/ports"
)

// RateSource returns the conversion rate between two currencies on a date.
type RateSource interface {
	GetRate(ctx context.Context, date core.Date, source, target string) (float64, error)
}

// ReportStore is the read side of the record store used by reports.
type ReportStore interface {
	ListExpenses(ctx context.Context, f ports.ExpenseFilter) ([]core.Expense, error)
	ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
	ListWallets(ctx context.Context, ownerID string) ([]core.Wallet, error)
}

// SummaryRequest selects the owner, range and display currency of a report.
type SummaryRequest struct {
	OwnerID         string
	DisplayCurrency string
	From            core.Date
	To              core.Date
}

// ReportService aggregates an owner's transactions in one display currency.
type ReportService struct {
	store       ReportStore
	rates       RateSource
	concurrency int
	now         func() time.Time
}

func NewReportService(store ReportStore, rates RateSource, concurrency int) *ReportService {
	if concurrency < 1 {
		concurrency = DefaultRecurringConcurrency
	}
	return &ReportService{
		store:       store,
		rates:       rates,
		concurrency: concurrency,
		now:         time.Now,
	}
}

type rateKey struct {
	date     string
	currency string
}

// Summarize builds the report. Amounts whose rate cannot be obtained are
// added unconverted and counted in Summary.Unconverted. Pending instances are
// projections and are left out.
func (s *ReportService) Summarize(ctx context.Context, req SummaryRequest) (core.Summary, error) {
	display := core.NormalizeCurrency(req.DisplayCurrency)
	if display == "" {
		display = core.PivotCurrency
	}
	if req.OwnerID == "" {
		return core.Summary{}, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrMissingOwner)
	}
	if err := core.ValidateCurrency(display); err != nil {
		return core.Summary{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !req.From.IsZero() && !req.To.IsZero() && req.To.IsBefore(req.From) {
		return core.Summary{}, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrInvalidDateRange)
	}

	expenses, err := s.store.ListExpenses(ctx, ports.ExpenseFilter{
		OwnerID: req.OwnerID,
		From:    req.From,
		To:      req.To,
		Status:  core.StatusCompleted,
	})
	if err != nil {
		return core.Summary{}, fmt.Errorf("list expenses: %w", err)
	}
	categories, err := s.store.ListCategories(ctx, req.OwnerID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list categories: %w", err)
	}
	wallets, err := s.store.ListWallets(ctx, req.OwnerID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list wallets: %w", err)
	}

	today := core.DateOf(s.now())
	needed := make(map[rateKey]core.Date)
	for _, e := range expenses {
		if cur := core.NormalizeCurrency(e.Currency); cur != display {
			needed[rateKey{e.Date.String(), cur}] = e.Date
		}
	}
	for _, w := range wallets {
		if cur := core.NormalizeCurrency(w.Currency); cur != display {
			needed[rateKey{today.String(), cur}] = today
		}
	}
	rates := s.prefetchRates(ctx, needed, display)

	summary := core.Summary{
		OwnerID:  req.OwnerID,
		Currency: display,
		From:     req.From,
		To:       req.To,
	}

	convert := func(amount core.Money, date core.Date, currency string) decimal.Decimal {
		cur := core.NormalizeCurrency(currency)
		if cur == display {
			return amount.Decimal()
		}
		rate, ok := rates[rateKey{date.String(), cur}]
		if !ok {
			summary.Unconverted++
			return amount.Decimal()
		}
		return amount.Decimal().Mul(decimal.NewFromFloat(rate))
	}

	catByID := make(map[string]core.Category, len(categories))
	for _, c := range categories {
		catByID[c.ID] = c
	}

	var totalExp, totalInc decimal.Decimal
	byCat := make(map[string]decimal.Decimal)
	type dayTotals struct{ exp, inc decimal.Decimal }
	byDay := make(map[string]*dayTotals)
	dayDates := make(map[string]core.Date)

	for _, e := range expenses {
		amount := convert(e.Amount, e.Date, e.Currency)
		income := catByID[e.CategoryID].Type == core.CategoryIncome

		key := e.Date.String()
		d, ok := byDay[key]
		if !ok {
			d = &dayTotals{}
			byDay[key] = d
			dayDates[key] = e.Date
		}
		if income {
			totalInc = totalInc.Add(amount)
			d.inc = d.inc.Add(amount)
		} else {
			totalExp = totalExp.Add(amount)
			d.exp = d.exp.Add(amount)
		}
		byCat[e.CategoryID] = byCat[e.CategoryID].Add(amount)
	}

	var balance decimal.Decimal
	for _, w := range wallets {
		balance = balance.Add(convert(w.Balance, today, w.Currency))
	}

	summary.TotalExpenses = core.MoneyFromDecimal(totalExp)
	summary.TotalIncome = core.MoneyFromDecimal(totalInc)
	summary.NetSavings = core.MoneyFromDecimal(totalInc.Sub(totalExp))
	summary.TotalBalance = core.MoneyFromDecimal(balance)

	for id, amount := range byCat {
		c, ok := catByID[id]
		name, typ := c.Name, c.Type
		if !ok {
			name, typ = "Uncategorized", core.CategoryExpense
		}
		summary.ByCategory = append(summary.ByCategory, core.CategoryAmount{
			CategoryID: id,
			Name:       name,
			Type:       typ,
			Amount:     core.MoneyFromDecimal(amount),
		})
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		a, b := summary.ByCategory[i], summary.ByCategory[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})

	for key, d := range byDay {
		summary.Daily = append(summary.Daily, core.DailyAmount{
			Date:     dayDates[key],
			Expenses: core.MoneyFromDecimal(d.exp),
			Income:   core.MoneyFromDecimal(d.inc),
		})
	}
	sort.Slice(summary.Daily, func(i, j int) bool {
		return summary.Daily[i].Date.IsBefore(summary.Daily[j].Date)
	})

	if summary.Unconverted > 0 {
		slog.WarnContext(ctx, "Report includes unconverted amounts",
			"owner", req.OwnerID,
			"currency", display,
			"unconverted", summary.Unconverted)
	}
	return summary, nil
}

// prefetchRates looks up every distinct (date, currency) pair once. Pairs
// whose lookup fails are absent from the result.
func (s *ReportService) prefetchRates(ctx context.Context, needed map[rateKey]core.Date, display string) map[rateKey]float64 {
	out := make(map[rateKey]float64, len(needed))
	if len(needed) == 0 {
		return out
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for key, date := range needed {
		g.Go(func() error {
			rate, err := s.rates.GetRate(ctx, date, key.currency, display)
			if err != nil {
				slog.WarnContext(ctx, "Rate lookup failed, using raw amount",
					"date", key.date,
					"from", key.currency,
					"to", display,
					"error", err)
				return nil
			}
			mu.Lock()
			out[key] = rate
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
