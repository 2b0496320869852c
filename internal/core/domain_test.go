package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func validExpense() Expense {
	return Expense{
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      Money{Cents: 100},
		Currency:    "EUR",
		Status:      StatusCompleted,
		CreatedBy:   "user-1",
	}
}

func TestExpenseValidate(t *testing.T) {
	if err := validExpense().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Expense)
		want   error
	}{
		{"empty description", func(e *Expense) { e.Description = "  " }, ErrEmptyDescription},
		{"zero amount", func(e *Expense) { e.Amount = Money{} }, ErrInvalidAmount},
		{"bad currency", func(e *Expense) { e.Currency = "EURO" }, ErrInvalidCurrency},
		{"lowercase currency", func(e *Expense) { e.Currency = "eur" }, ErrInvalidCurrency},
		{"bad status", func(e *Expense) { e.Status = "draft" }, ErrInvalidStatus},
		{"no owner", func(e *Expense) { e.CreatedBy = "" }, ErrMissingOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validExpense()
			tt.mutate(&e)
			err := e.Validate()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExpenseValidateCollectsAllErrors(t *testing.T) {
	err := Expense{}.Validate()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) < 5 {
		t.Fatalf("expected every field to be reported, got %d: %v", len(verrs), verrs)
	}
	if !errors.Is(err, ErrEmptyDescription) || !errors.Is(err, ErrMissingOwner) {
		t.Fatalf("sentinels not reachable through %v", err)
	}
}

func TestRecurrenceRuleValidate(t *testing.T) {
	base := RecurrenceRule{
		Frequency:   Monthly,
		Interval:    1,
		StartDate:   NewDate(2024, 1, 31),
		Amount:      Money{Cents: 1500},
		Currency:    "USD",
		Description: "Gym",
		CreatedBy:   "user-1",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RecurrenceRule)
		want   error
	}{
		{"unknown frequency", func(r *RecurrenceRule) { r.Frequency = "hourly" }, ErrInvalidFrequency},
		{"zero interval", func(r *RecurrenceRule) { r.Interval = 0 }, ErrInvalidInterval},
		{"end before start", func(r *RecurrenceRule) { r.EndDate = NewDate(2023, 12, 31) }, ErrInvalidDateRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			if err := r.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	sameDay := base
	sameDay.EndDate = base.StartDate
	if err := sameDay.Validate(); err != nil {
		t.Fatalf("end date equal to start should be valid, got %v", err)
	}
}

func TestRecurrenceRuleInstance(t *testing.T) {
	r := RecurrenceRule{
		ID:          "rule-1",
		Amount:      Money{Cents: 999},
		Currency:    "GBP",
		Description: "Netflix",
		CategoryID:  "cat",
		WalletID:    "wal",
		CreatedBy:   "owner",
		GroupID:     "grp",
	}
	e := r.Instance(NewDate(2024, 5, 1), StatusPending)
	if e.RecurringExpenseID != "rule-1" || e.CreatedBy != "owner" || e.Status != StatusPending {
		t.Fatalf("unexpected instance: %+v", e)
	}
	if !e.Date.Equal(NewDate(2024, 5, 1)) || e.Amount.Cents != 999 || e.Currency != "GBP" {
		t.Fatalf("template fields not copied: %+v", e)
	}
}

func TestCategoryValidate(t *testing.T) {
	c := Category{Name: "Food", Type: CategoryExpense, CreatedBy: "u"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	c.Type = "transfer"
	if err := c.Validate(); !errors.Is(err, ErrInvalidCategoryType) {
		t.Fatalf("expected ErrInvalidCategoryType, got %v", err)
	}
}

func TestCatchUpInstance(t *testing.T) {
	rule := RecurrenceRule{
		ID:          "r1",
		Frequency:   Monthly,
		Interval:    1,
		StartDate:   NewDate(2024, 1, 1),
		Amount:      Money{Cents: 999},
		Currency:    "EUR",
		Description: "Rent",
		CreatedBy:   "alice",
	}

	e := rule.CatchUpInstance(NewDate(2024, 2, 1))
	if e.Description != "Rent (Recurring)" {
		t.Errorf("description = %q", e.Description)
	}
	if e.Status != StatusCompleted || e.RecurringExpenseID != "r1" {
		t.Errorf("unexpected instance %+v", e)
	}
	if got := rule.Instance(NewDate(2024, 2, 1), StatusPending).Description; got != "Rent" {
		t.Errorf("plain instance description = %q", got)
	}

	rule.Description = strings.Repeat("x", maxDescriptionLen-len(RecurringSuffix)+1)
	if e := rule.CatchUpInstance(NewDate(2024, 2, 1)); e.Description != rule.Description {
		t.Errorf("suffix should be dropped when it would exceed the limit, got %d chars", len(e.Description))
	}
	if err := rule.CatchUpInstance(NewDate(2024, 2, 1)).Validate(); err != nil {
		t.Errorf("long description instance invalid: %v", err)
	}
}

func TestTagAndWalletValidate(t *testing.T) {
	if err := (Tag{Name: "Food", CreatedBy: "u"}).Validate(); err != nil {
		t.Fatalf("valid tag: %v", err)
	}
	if err := (Tag{Name: " ", CreatedBy: "u"}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("blank tag name: %v", err)
	}

	tests := []struct {
		name    string
		wallet  Wallet
		wantErr error
	}{
		{"valid", Wallet{Name: "Bank", Type: WalletBank, Currency: "EUR", CreatedBy: "u"}, nil},
		{"bad type", Wallet{Name: "Bank", Type: "piggy", Currency: "EUR", CreatedBy: "u"}, ErrInvalidWalletType},
		{"bad currency", Wallet{Name: "Bank", Type: WalletCash, Currency: "EURO", CreatedBy: "u"}, ErrInvalidCurrency},
		{"no owner", Wallet{Name: "Bank", Type: WalletCash, Currency: "USD"}, ErrMissingOwner},
		{"no name", Wallet{Type: WalletCash, Currency: "USD", CreatedBy: "u"}, ErrEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wallet.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
