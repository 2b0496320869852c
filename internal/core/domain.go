package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Monthly RepetitionTypes = "monthly"
	Yearly  RepetitionTypes = "yearly"
	Weekly  RepetitionTypes = "weekly"
	Daily   RepetitionTypes = "daily"
)

const (
	StatusCompleted ExpenseStatus = "completed"
	StatusPending   ExpenseStatus = "pending"
)

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
)

const (
	WalletCash          = "cash"
	WalletBank          = "bank"
	WalletCreditCard    = "credit_card"
	WalletDigitalWallet = "digital_wallet"
)

const maxDescriptionLen = 200

// RecurringSuffix marks the description of instances written by catch-up.
const RecurringSuffix = " (Recurring)"

type (
	RepetitionTypes string
	ExpenseStatus   string
	CategoryType    string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single dated transaction. Instances materialized from a
	// recurrence rule carry the rule ID in RecurringExpenseID.
	Expense struct {
		ID                 string
		Amount             Money
		Currency           string
		Description        string
		Date               Date
		CategoryID         string
		WalletID           string
		CreatedBy          string
		GroupID            string
		Status             ExpenseStatus
		RecurringExpenseID string
		TagIDs             []string
		CreatedAt          time.Time
	}

	// RecurrenceRule is the template from which expense instances are generated.
	// LastProcessed is the watermark: the most recent date already materialized.
	RecurrenceRule struct {
		ID            string
		Frequency     RepetitionTypes
		Interval      int
		StartDate     Date
		EndDate       Date // zero when open-ended
		LastProcessed Date // zero when nothing has been generated yet
		Amount        Money
		Currency      string
		Description   string
		CategoryID    string
		WalletID      string
		CreatedBy     string
		GroupID       string
		CreatedAt     time.Time
	}

	Category struct {
		ID        string
		Name      string
		Type      CategoryType
		Icon      string
		Color     string
		CreatedBy string
		GroupID   string
	}

	Tag struct {
		ID        string
		Name      string
		Color     string
		CreatedBy string
		GroupID   string
	}

	Wallet struct {
		ID        string
		Name      string
		Type      string
		Balance   Money
		Currency  string
		Color     string
		Icon      string
		CreatedBy string
		GroupID   string
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrInvalidFrequency    = errors.New("invalid repetition type")
	ErrInvalidInterval     = errors.New("interval must be at least 1")
	ErrInvalidDateRange    = errors.New("end date must not be before start date")
	ErrInvalidStatus       = errors.New("invalid expense status")
	ErrMissingOwner        = errors.New("missing owner")
	ErrEmptyName           = errors.New("empty name")
	ErrInvalidCategoryType = errors.New("invalid category type")
	ErrInvalidWalletType   = errors.New("invalid wallet type")
)

// ValidationErrors collects every field problem found by a Validate call.
// errors.Is matches any of the wrapped sentinels.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() []error {
	return v
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	// Check basic ranges
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (f RepetitionTypes) Validate() error {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
	}
}

func (s ExpenseStatus) Validate() error {
	switch s {
	case StatusCompleted, StatusPending:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
	}
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	}
	return nil
}

func (e Expense) Validate() error {
	var errs ValidationErrors
	if err := e.Date.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := validateDescription(e.Description); err != nil {
		errs = append(errs, err)
	}
	if err := e.Amount.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateCurrency(e.Currency); err != nil {
		errs = append(errs, err)
	}
	if err := e.Status.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(e.CreatedBy) == "" {
		errs = append(errs, ErrMissingOwner)
	}
	return errs.orNil()
}

func (r RecurrenceRule) Validate() error {
	var errs ValidationErrors

	if err := r.StartDate.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid start date: %w", err))
	}
	if !r.EndDate.IsZero() {
		if err := r.EndDate.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("invalid end date: %w", err))
		} else if r.EndDate.IsBefore(r.StartDate) {
			errs = append(errs, ErrInvalidDateRange)
		}
	}
	if err := r.Frequency.Validate(); err != nil {
		errs = append(errs, err)
	}
	if r.Interval < 1 {
		errs = append(errs, ErrInvalidInterval)
	}
	if err := validateDescription(r.Description); err != nil {
		errs = append(errs, err)
	}
	if err := r.Amount.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateCurrency(r.Currency); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(r.CreatedBy) == "" {
		errs = append(errs, ErrMissingOwner)
	}
	return errs.orNil()
}

// Instance builds the expense materialized by the rule on the given date.
func (r RecurrenceRule) Instance(date Date, status ExpenseStatus) Expense {
	return Expense{
		Amount:             r.Amount,
		Currency:           r.Currency,
		Description:        r.Description,
		Date:               date,
		CategoryID:         r.CategoryID,
		WalletID:           r.WalletID,
		CreatedBy:          r.CreatedBy,
		GroupID:            r.GroupID,
		Status:             status,
		RecurringExpenseID: r.ID,
	}
}

// CatchUpInstance is the completed instance catch-up writes for date. Its
// description carries RecurringSuffix when the result still fits.
func (r RecurrenceRule) CatchUpInstance(date Date) Expense {
	e := r.Instance(date, StatusCompleted)
	if len(e.Description)+len(RecurringSuffix) <= maxDescriptionLen {
		e.Description += RecurringSuffix
	}
	return e
}

func (c Category) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, ErrEmptyName)
	}
	if c.Type != CategoryExpense && c.Type != CategoryIncome {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidCategoryType, string(c.Type)))
	}
	if strings.TrimSpace(c.CreatedBy) == "" {
		errs = append(errs, ErrMissingOwner)
	}
	return errs.orNil()
}

func (t Tag) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, ErrEmptyName)
	}
	if strings.TrimSpace(t.CreatedBy) == "" {
		errs = append(errs, ErrMissingOwner)
	}
	return errs.orNil()
}

func (w Wallet) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(w.Name) == "" {
		errs = append(errs, ErrEmptyName)
	}
	switch w.Type {
	case WalletCash, WalletBank, WalletCreditCard, WalletDigitalWallet:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidWalletType, w.Type))
	}
	if err := ValidateCurrency(w.Currency); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(w.CreatedBy) == "" {
		errs = append(errs, ErrMissingOwner)
	}
	return errs.orNil()
}
