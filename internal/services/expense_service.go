package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"conti/internal/core"
	"conti/internal/ports"
)

// ErrInvalidInput wraps validation failures of caller-supplied data.
var ErrInvalidInput = errors.New("invalid input")

// ExpenseStore is the slice of the record store the expense service writes to.
type ExpenseStore interface {
	ports.ExpenseStore
	ports.RecurrenceStore
}

// RecurrenceInput describes the repetition of a new expense.
type RecurrenceInput struct {
	Frequency core.RepetitionTypes
	Interval  int
	EndDate   core.Date
}

// ExpenseInput is a new expense as submitted by a user.
type ExpenseInput struct {
	OwnerID     string
	GroupID     string
	Amount      core.Money
	Currency    string
	Description string
	Date        core.Date
	CategoryID  string
	WalletID    string
	TagIDs      []string
	Recurrence  *RecurrenceInput
}

// ExpenseService orchestrates expense creation across the store, the
// recurrence engine and the rate warmup queue.
type ExpenseService struct {
	store     ExpenseStore
	processor *RecurringProcessor
	publisher ports.RateWarmupPublisher
}

// NewExpenseService wires the service. publisher may be nil.
func NewExpenseService(store ExpenseStore, processor *RecurringProcessor, publisher ports.RateWarmupPublisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		processor: processor,
		publisher: publisher,
	}
}

// CreateExpense saves the expense as completed. With a recurrence it also
// creates the rule, links the expense to it and pre-generates the pending
// forward series.
func (s *ExpenseService) CreateExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	in.Currency = core.NormalizeCurrency(in.Currency)
	in.Description = strings.TrimSpace(in.Description)

	expense := core.Expense{
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: in.Description,
		Date:        in.Date,
		CategoryID:  in.CategoryID,
		WalletID:    in.WalletID,
		CreatedBy:   in.OwnerID,
		GroupID:     in.GroupID,
		Status:      core.StatusCompleted,
		TagIDs:      in.TagIDs,
	}
	if err := expense.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	var (
		saved core.Expense
		err   error
	)
	if in.Recurrence == nil {
		saved, err = s.store.CreateExpense(ctx, expense)
		if err != nil {
			return core.Expense{}, fmt.Errorf("save expense: %w", err)
		}
	} else {
		saved, err = s.createRecurring(ctx, in)
		if err != nil {
			return core.Expense{}, err
		}
	}

	s.publishWarmup(ctx, saved)
	slog.InfoContext(ctx, "Expense created",
		"id", saved.ID,
		"owner", saved.CreatedBy,
		"amount_cents", saved.Amount.Cents,
		"currency", saved.Currency,
		"recurring_id", saved.RecurringExpenseID)
	return saved, nil
}

func (s *ExpenseService) createRecurring(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	interval := in.Recurrence.Interval
	if interval == 0 {
		interval = 1
	}
	rule := core.RecurrenceRule{
		Frequency:   in.Recurrence.Frequency,
		Interval:    interval,
		StartDate:   in.Date,
		EndDate:     in.Recurrence.EndDate,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		WalletID:    in.WalletID,
		CreatedBy:   in.OwnerID,
		GroupID:     in.GroupID,
	}
	if err := rule.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	rule, err := s.store.CreateRule(ctx, rule)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save recurring expense: %w", err)
	}

	initial := rule.Instance(rule.StartDate, core.StatusCompleted)
	initial.TagIDs = in.TagIDs
	saved, err := s.store.CreateExpense(ctx, initial)
	if err != nil {
		if delErr := s.store.DeleteRule(ctx, rule.ID); delErr != nil {
			slog.ErrorContext(ctx, "Failed to remove orphaned recurring expense",
				"recurring_id", rule.ID,
				"error", delErr)
		}
		return core.Expense{}, fmt.Errorf("save initial occurrence: %w", err)
	}

	// The start date is materialized; a failed write here only means the
	// expansion below hits the existing row and moves on.
	if err := s.store.UpdateLastProcessed(ctx, rule.ID, rule.StartDate); err != nil {
		slog.WarnContext(ctx, "Failed to set initial watermark",
			"recurring_id", rule.ID,
			"error", err)
	} else {
		rule.LastProcessed = rule.StartDate
	}

	if s.processor != nil {
		if _, err := s.processor.ExpandForwardSeries(ctx, rule, in.TagIDs); err != nil {
			slog.ErrorContext(ctx, "Failed to expand forward series",
				"recurring_id", rule.ID,
				"error", err)
		}
	}
	return saved, nil
}

// ListExpenses returns the owner's expenses between from and to, both optional.
func (s *ExpenseService) ListExpenses(ctx context.Context, ownerID string, from, to core.Date) ([]core.Expense, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrMissingOwner)
	}
	if !from.IsZero() && !to.IsZero() && to.IsBefore(from) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrInvalidDateRange)
	}
	return s.store.ListExpenses(ctx, ports.ExpenseFilter{OwnerID: ownerID, From: from, To: to})
}

// ListRecurring returns the owner's recurrence rules.
func (s *ExpenseService) ListRecurring(ctx context.Context, ownerID string) ([]core.RecurrenceRule, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrMissingOwner)
	}
	return s.store.ListRules(ctx, ownerID)
}

func (s *ExpenseService) publishWarmup(ctx context.Context, e core.Expense) {
	if s.publisher == nil || e.Currency == core.PivotCurrency {
		return
	}
	if err := s.publisher.PublishRateWarmup(ctx, e.Date, e.Currency); err != nil {
		slog.ErrorContext(ctx, "Failed to publish rate warmup message",
			"id", e.ID,
			"date", e.Date.String(),
			"currency", e.Currency,
			"error", err)
	}
}

// RecurringUpdate changes a rule's template. Nil fields are left as they are;
// an EndDate pointing at the zero date removes the end date.
type RecurringUpdate struct {
	Amount      *core.Money
	Description *string
	CategoryID  *string
	WalletID    *string
	EndDate     *core.Date
}

func (s *ExpenseService) ownedRule(ctx context.Context, ownerID, id string) (core.RecurrenceRule, error) {
	if ownerID == "" {
		return core.RecurrenceRule{}, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrMissingOwner)
	}
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.CreatedBy != ownerID {
		return core.RecurrenceRule{}, fmt.Errorf("rule %s: %w", id, ports.ErrNotFound)
	}
	return rule, nil
}

// UpdateRecurring applies upd to the owner's rule. Completed instances are
// kept as history; the pending series is dropped and generated again from the
// new template, carrying the tags of the newest instance.
func (s *ExpenseService) UpdateRecurring(ctx context.Context, ownerID, id string, upd RecurringUpdate) (core.RecurrenceRule, error) {
	rule, err := s.ownedRule(ctx, ownerID, id)
	if err != nil {
		return core.RecurrenceRule{}, err
	}

	if upd.Amount != nil {
		rule.Amount = *upd.Amount
	}
	if upd.Description != nil {
		rule.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.CategoryID != nil {
		rule.CategoryID = *upd.CategoryID
	}
	if upd.WalletID != nil {
		rule.WalletID = *upd.WalletID
	}
	if upd.EndDate != nil {
		rule.EndDate = *upd.EndDate
	}
	if err := rule.Validate(); err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	instances, err := s.store.ListExpenses(ctx, ports.ExpenseFilter{RecurringExpenseID: rule.ID})
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("list instances: %w", err)
	}
	var tags []string
	if len(instances) > 0 {
		tags = instances[0].TagIDs
	}
	// newest first, so the first completed row is the last materialized date
	rule.LastProcessed = core.Date{}
	for _, e := range instances {
		if e.Status == core.StatusCompleted {
			rule.LastProcessed = e.Date
			break
		}
	}

	removed, err := s.store.DeletePendingExpenses(ctx, rule.ID)
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("drop pending series: %w", err)
	}
	if err := s.store.UpdateRule(ctx, rule); err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("save recurring expense: %w", err)
	}

	regenerated := 0
	if s.processor != nil {
		if regenerated, err = s.processor.ExpandForwardSeries(ctx, rule, tags); err != nil {
			slog.ErrorContext(ctx, "Failed to regenerate forward series",
				"recurring_id", rule.ID,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Recurring expense updated",
		"recurring_id", rule.ID,
		"owner", ownerID,
		"pending_removed", removed,
		"pending_created", regenerated)
	return s.store.GetRule(ctx, rule.ID)
}

// DeleteRecurring stops the owner's series. Pending instances are removed;
// completed ones stay and lose their link to the rule.
func (s *ExpenseService) DeleteRecurring(ctx context.Context, ownerID, id string) error {
	rule, err := s.ownedRule(ctx, ownerID, id)
	if err != nil {
		return err
	}
	removed, err := s.store.DeletePendingExpenses(ctx, rule.ID)
	if err != nil {
		return fmt.Errorf("drop pending series: %w", err)
	}
	if err := s.store.DeleteRule(ctx, rule.ID); err != nil {
		return fmt.Errorf("delete recurring expense: %w", err)
	}
	slog.InfoContext(ctx, "Recurring expense deleted",
		"recurring_id", rule.ID,
		"owner", ownerID,
		"pending_removed", removed)
	return nil
}
