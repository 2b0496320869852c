package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"conti/internal/core"
	"conti/internal/ports"
)

const (
	// MaxCatchUpOccurrences bounds how many instances one catch-up call writes
	// for a single rule.
	MaxCatchUpOccurrences = 12
	// DefaultForwardPreviewYears is how far ahead an open-ended series is
	// pre-generated when the rule is created.
	DefaultForwardPreviewYears = 1
	// DefaultRecurringConcurrency is the number of rules swept in parallel.
	DefaultRecurringConcurrency = 4
)

// RecurringProcessor materializes recurrence rules into dated expense instances.
type RecurringProcessor struct {
	expenses     ports.ExpenseStore
	rules        ports.RecurrenceStore
	publisher    ports.RateWarmupPublisher
	concurrency  int
	forwardYears int
	now          func() time.Time
}

type RecurringOption func(*RecurringProcessor)

// WithConcurrency sets how many rules a sweep processes at once.
func WithConcurrency(n int) RecurringOption {
	return func(p *RecurringProcessor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithForwardPreviewYears sets the horizon of open-ended forward series.
func WithForwardPreviewYears(years int) RecurringOption {
	return func(p *RecurringProcessor) {
		if years > 0 {
			p.forwardYears = years
		}
	}
}

// WithWarmupPublisher makes catch-up announce the foreign-currency dates it wrote.
func WithWarmupPublisher(pub ports.RateWarmupPublisher) RecurringOption {
	return func(p *RecurringProcessor) { p.publisher = pub }
}

// WithClock overrides the processor's notion of today.
func WithClock(now func() time.Time) RecurringOption {
	return func(p *RecurringProcessor) { p.now = now }
}

// NewRecurringProcessor creates a new recurring expense processor
func NewRecurringProcessor(expenses ports.ExpenseStore, rules ports.RecurrenceStore, opts ...RecurringOption) *RecurringProcessor {
	p := &RecurringProcessor{
		expenses:     expenses,
		rules:        rules,
		concurrency:  DefaultRecurringConcurrency,
		forwardYears: DefaultForwardPreviewYears,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// firstUnprocessed is the earliest occurrence not yet covered by the watermark.
func firstUnprocessed(rule core.RecurrenceRule) (core.Date, error) {
	if rule.LastProcessed.IsZero() {
		return rule.StartDate, nil
	}
	return NextRuleOccurrence(rule, rule.LastProcessed)
}

// materialize writes the instances build returns for each date of rule from
// cursor through limit, advancing the watermark after every row. maxCount <= 0
// means no bound. A date that already holds an instance of the rule counts as
// materialized but is not returned. It stops at the first other failure and
// returns what it wrote.
func (p *RecurringProcessor) materialize(ctx context.Context, rule core.RecurrenceRule, cursor, limit core.Date, maxCount int, build func(core.Date) core.Expense) ([]core.Expense, error) {
	var created []core.Expense
	for !cursor.IsAfter(limit) && (maxCount <= 0 || len(created) < maxCount) {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		saved, err := p.expenses.CreateExpense(ctx, build(cursor))
		switch {
		case err == nil:
			created = append(created, saved)
		case errors.Is(err, ports.ErrConflict):
			slog.DebugContext(ctx, "Occurrence already materialized",
				"recurring_id", rule.ID,
				"date", cursor.String())
		default:
			return created, fmt.Errorf("create occurrence %s: %w", cursor, err)
		}

		if err := p.rules.UpdateLastProcessed(ctx, rule.ID, cursor); err != nil {
			return created, fmt.Errorf("advance watermark to %s: %w", cursor, err)
		}

		next, err := NextRuleOccurrence(rule, cursor)
		if err != nil {
			return created, err
		}
		cursor = next
	}
	return created, nil
}

// AdvanceDueOccurrences catches rule up to asOf, writing at most
// MaxCatchUpOccurrences completed instances. Pending instances dated on or
// before asOf are settled first. It returns how many instances it wrote.
func (p *RecurringProcessor) AdvanceDueOccurrences(ctx context.Context, rule core.RecurrenceRule, asOf core.Date) (int, error) {
	cursor, err := firstUnprocessed(rule)
	if err != nil {
		return 0, err
	}

	settled, err := p.expenses.SettlePendingExpenses(ctx, rule.ID, asOf)
	if err != nil {
		slog.WarnContext(ctx, "Failed to settle pending occurrences",
			"recurring_id", rule.ID,
			"error", err)
	} else if settled > 0 {
		slog.InfoContext(ctx, "Settled pending occurrences",
			"recurring_id", rule.ID,
			"count", settled)
	}

	limit := asOf
	if !rule.EndDate.IsZero() {
		if cursor.IsAfter(rule.EndDate) {
			return 0, nil
		}
		limit = core.MinDate(asOf, rule.EndDate)
	}

	created, err := p.materialize(ctx, rule, cursor, limit, MaxCatchUpOccurrences, rule.CatchUpInstance)
	p.publishWarmups(ctx, created)
	if err != nil {
		return len(created), fmt.Errorf("catch up rule %s: %w", rule.ID, err)
	}

	if len(created) > 0 {
		slog.InfoContext(ctx, "Created expenses from recurring template",
			"recurring_id", rule.ID,
			"description", rule.Description,
			"count", len(created),
			"frequency", rule.Frequency)
	}
	return len(created), nil
}

// ExpandForwardSeries pre-generates the pending instances of rule after its
// watermark, up to the end date or the forward preview horizon, then links
// tagIDs to all of them at once.
func (p *RecurringProcessor) ExpandForwardSeries(ctx context.Context, rule core.RecurrenceRule, tagIDs []string) (int, error) {
	cursor, err := firstUnprocessed(rule)
	if err != nil {
		return 0, err
	}

	cutoff := rule.EndDate
	if cutoff.IsZero() {
		today := core.DateOf(p.now())
		cutoff = today.AddMonthsClamped(12*p.forwardYears, 0)
	}

	created, err := p.materialize(ctx, rule, cursor, cutoff, 0, func(d core.Date) core.Expense {
		return rule.Instance(d, core.StatusPending)
	})

	if len(created) > 0 && len(tagIDs) > 0 {
		ids := make([]string, len(created))
		for i, e := range created {
			ids[i] = e.ID
		}
		if tagErr := p.expenses.AttachTags(ctx, ids, tagIDs); tagErr != nil {
			err = errors.Join(err, fmt.Errorf("tag forward series: %w", tagErr))
		}
	}
	if err != nil {
		return len(created), fmt.Errorf("expand rule %s: %w", rule.ID, err)
	}

	slog.InfoContext(ctx, "Expanded forward series",
		"recurring_id", rule.ID,
		"pending", len(created),
		"cutoff", cutoff.String())
	return len(created), nil
}

// ProcessDueExpenses runs the catch-up sweep over ownerID's rules and returns
// the number of instances generated. Rules that fail are logged and skipped.
func (p *RecurringProcessor) ProcessDueExpenses(ctx context.Context, ownerID string, now time.Time) (int, error) {
	if ownerID == "" {
		return 0, core.ErrMissingOwner
	}
	return p.sweep(ctx, ownerID, now)
}

// ProcessAll runs the catch-up sweep over every rule in the store.
func (p *RecurringProcessor) ProcessAll(ctx context.Context, now time.Time) (int, error) {
	return p.sweep(ctx, "", now)
}

func (p *RecurringProcessor) sweep(ctx context.Context, ownerID string, now time.Time) (int, error) {
	if p.expenses == nil || p.rules == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	rules, err := p.rules.ListRules(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list recurring expenses: %w", err)
	}

	asOf := core.DateOf(now)
	slog.InfoContext(ctx, "Processing recurring expenses",
		"owner", ownerID,
		"total_active", len(rules),
		"processing_date", asOf.String())

	var (
		total  atomic.Int64
		failed atomic.Int64
		g      errgroup.Group
	)
	g.SetLimit(p.concurrency)

	for _, rule := range rules {
		g.Go(func() error {
			n, err := p.AdvanceDueOccurrences(ctx, rule, asOf)
			total.Add(int64(n))
			if err != nil {
				failed.Add(1)
				slog.ErrorContext(ctx, "Failed to process recurring expense",
					"recurring_id", rule.ID,
					"generated", n,
					"error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Recurring expense processing complete",
		"processed", total.Load(),
		"failed_rules", failed.Load(),
		"total_checked", len(rules))

	return int(total.Load()), nil
}

func (p *RecurringProcessor) publishWarmups(ctx context.Context, created []core.Expense) {
	if p.publisher == nil {
		return
	}
	seen := make(map[string]bool)
	for _, e := range created {
		cur := core.NormalizeCurrency(e.Currency)
		key := e.Date.String() + "/" + cur
		if cur == core.PivotCurrency || seen[key] {
			continue
		}
		seen[key] = true
		if err := p.publisher.PublishRateWarmup(ctx, e.Date, cur); err != nil {
			slog.WarnContext(ctx, "Failed to publish rate warmup",
				"date", e.Date.String(),
				"currency", cur,
				"error", err)
		}
	}
}
