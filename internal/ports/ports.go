// Package ports declares the outbound interfaces the services depend on.
package ports

import (
	"context"
	"errors"

	"conti/internal/core"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint,
	// such as a second instance of the same rule on the same date or a
	// second rate snapshot for the same date.
	ErrConflict = errors.New("conflict")
)

// ExpenseFilter narrows ListExpenses. Zero fields are ignored.
type ExpenseFilter struct {
	OwnerID            string
	From               core.Date
	To                 core.Date
	RecurringExpenseID string
	Status             core.ExpenseStatus
}

// Ports for outbound adapters.
type (
	ExpenseStore interface {
		// CreateExpense persists e, assigning its ID, and links e.TagIDs.
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error)
		// SettlePendingExpenses marks the rule's pending instances dated on or
		// before through as completed and returns how many changed.
		SettlePendingExpenses(ctx context.Context, ruleID string, through core.Date) (int, error)
		// AttachTags links every tag to every expense in one step.
		AttachTags(ctx context.Context, expenseIDs, tagIDs []string) error
		// DeletePendingExpenses removes the rule's pending instances and
		// returns how many were removed. Completed instances are kept.
		DeletePendingExpenses(ctx context.Context, ruleID string) (int, error)
	}

	RecurrenceStore interface {
		CreateRule(ctx context.Context, r core.RecurrenceRule) (core.RecurrenceRule, error)
		GetRule(ctx context.Context, id string) (core.RecurrenceRule, error)
		// ListRules returns the owner's rules, or every rule when ownerID is empty.
		ListRules(ctx context.Context, ownerID string) ([]core.RecurrenceRule, error)
		UpdateLastProcessed(ctx context.Context, id string, d core.Date) error
		// UpdateRule overwrites the template, end date and watermark of r.
		UpdateRule(ctx context.Context, r core.RecurrenceRule) error
		DeleteRule(ctx context.Context, id string) error
	}

	TaxonomyStore interface {
		CreateCategories(ctx context.Context, cats []core.Category) ([]core.Category, error)
		ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
		CreateTags(ctx context.Context, tags []core.Tag) ([]core.Tag, error)
		ListTags(ctx context.Context, ownerID string) ([]core.Tag, error)
		// UpdateCategory and UpdateTag overwrite name, type, icon and color of
		// the record with the same ID and owner.
		UpdateCategory(ctx context.Context, c core.Category) error
		UpdateTag(ctx context.Context, t core.Tag) error
		// DeleteCategory and DeleteTag return ErrNotFound unless ownerID owns id.
		DeleteCategory(ctx context.Context, ownerID, id string) error
		DeleteTag(ctx context.Context, ownerID, id string) error
	}

	WalletStore interface {
		CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error)
		ListWallets(ctx context.Context, ownerID string) ([]core.Wallet, error)
		// UpdateWallet overwrites the mutable fields of the wallet with w.ID
		// owned by w.CreatedBy.
		UpdateWallet(ctx context.Context, w core.Wallet) error
		DeleteWallet(ctx context.Context, ownerID, id string) error
	}

	// RateSnapshotStore is the persistent cache of daily rate snapshots.
	RateSnapshotStore interface {
		// GetSnapshot returns ErrNotFound when no snapshot exists for the date.
		GetSnapshot(ctx context.Context, date core.Date) (core.ExchangeRateSnapshot, error)
		// SaveSnapshot returns ErrConflict when the date is already stored.
		SaveSnapshot(ctx context.Context, s core.ExchangeRateSnapshot) error
	}

	// Store is the full record store used by the application.
	Store interface {
		ExpenseStore
		RecurrenceStore
		TaxonomyStore
		WalletStore
		RateSnapshotStore
		Ping(ctx context.Context) error
		Close() error
	}

	// RateFetcher retrieves historical rates from an external provider.
	RateFetcher interface {
		FetchRates(ctx context.Context, date core.Date, base string, symbols []string) (core.ExchangeRateSnapshot, error)
	}

	// RateWarmupPublisher asks a background worker to cache a snapshot ahead of use.
	RateWarmupPublisher interface {
		PublishRateWarmup(ctx context.Context, date core.Date, currency string) error
	}
)
