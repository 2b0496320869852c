// Package memory is an in-process ports.Store used by the memory backend and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"conti/internal/core"
	"conti/internal/ports"
)

type Store struct {
	mu         sync.Mutex
	expenses   []core.Expense
	rules      map[string]core.RecurrenceRule
	categories []core.Category
	tags       []core.Tag
	wallets    []core.Wallet
	snapshots  map[string]core.ExchangeRateSnapshot
	now        func() time.Time
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		rules:     make(map[string]core.RecurrenceRule),
		snapshots: make(map[string]core.ExchangeRateSnapshot),
		now:       time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// CreateExpense stores the expense. A second instance of the same rule on the
// same date is rejected with ports.ErrConflict, mirroring the SQL unique index.
func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.RecurringExpenseID != "" {
		for _, existing := range s.expenses {
			if existing.RecurringExpenseID == e.RecurringExpenseID && existing.Date.Equal(e.Date) {
				return core.Expense{}, fmt.Errorf("expense for rule %s on %s: %w", e.RecurringExpenseID, e.Date, ports.ErrConflict)
			}
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = s.now()
	e.TagIDs = append([]string(nil), e.TagIDs...)
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, f ports.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Expense
	for _, e := range s.expenses {
		if f.OwnerID != "" && e.CreatedBy != f.OwnerID {
			continue
		}
		if f.RecurringExpenseID != "" && e.RecurringExpenseID != f.RecurringExpenseID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && e.Date.IsBefore(f.From) {
			continue
		}
		if !f.To.IsZero() && e.Date.IsAfter(f.To) {
			continue
		}
		e.TagIDs = append([]string(nil), e.TagIDs...)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.IsAfter(out[j].Date) })
	return out, nil
}

func (s *Store) SettlePendingExpenses(_ context.Context, ruleID string, through core.Date) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.expenses {
		e := &s.expenses[i]
		if e.RecurringExpenseID == ruleID && e.Status == core.StatusPending && !e.Date.IsAfter(through) {
			e.Status = core.StatusCompleted
			n++
		}
	}
	return n, nil
}

func (s *Store) DeletePendingExpenses(_ context.Context, ruleID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.expenses[:0]
	removed := 0
	for _, e := range s.expenses {
		if e.RecurringExpenseID == ruleID && e.Status == core.StatusPending {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.expenses = kept
	return removed, nil
}

func (s *Store) AttachTags(_ context.Context, expenseIDs, tagIDs []string) error {
	if len(expenseIDs) == 0 || len(tagIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]bool, len(expenseIDs))
	for _, id := range expenseIDs {
		want[id] = true
	}
	for i := range s.expenses {
		e := &s.expenses[i]
		if !want[e.ID] {
			continue
		}
		for _, tag := range tagIDs {
			if !contains(e.TagIDs, tag) {
				e.TagIDs = append(e.TagIDs, tag)
			}
		}
	}
	return nil
}

func (s *Store) CreateRule(_ context.Context, r core.RecurrenceRule) (core.RecurrenceRule, error) {
	if err := r.Validate(); err != nil {
		return core.RecurrenceRule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = s.now()
	s.rules[r.ID] = r
	return r, nil
}

func (s *Store) GetRule(_ context.Context, id string) (core.RecurrenceRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return core.RecurrenceRule{}, fmt.Errorf("rule %s: %w", id, ports.ErrNotFound)
	}
	return r, nil
}

func (s *Store) ListRules(_ context.Context, ownerID string) ([]core.RecurrenceRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurrenceRule, 0, len(s.rules))
	for _, r := range s.rules {
		if ownerID == "" || r.CreatedBy == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateLastProcessed(_ context.Context, id string, d core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("rule %s: %w", id, ports.ErrNotFound)
	}
	r.LastProcessed = d
	s.rules[id] = r
	return nil
}

func (s *Store) UpdateRule(_ context.Context, r core.RecurrenceRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[r.ID]
	if !ok {
		return fmt.Errorf("rule %s: %w", r.ID, ports.ErrNotFound)
	}
	r.CreatedAt = existing.CreatedAt
	r.CreatedBy = existing.CreatedBy
	s.rules[r.ID] = r
	return nil
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("rule %s: %w", id, ports.ErrNotFound)
	}
	delete(s.rules, id)
	// instances keep their rows but lose the back-reference, like ON DELETE SET NULL
	for i := range s.expenses {
		if s.expenses[i].RecurringExpenseID == id {
			s.expenses[i].RecurringExpenseID = ""
		}
	}
	return nil
}

func (s *Store) CreateCategories(_ context.Context, cats []core.Category) ([]core.Category, error) {
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, len(cats))
	for i, c := range cats {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		s.categories = append(s.categories, c)
		out[i] = c
	}
	return out, nil
}

func (s *Store) ListCategories(_ context.Context, ownerID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.CreatedBy == ownerID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.categories {
		if existing.ID == c.ID && existing.CreatedBy == c.CreatedBy {
			c.GroupID = existing.GroupID
			s.categories[i] = c
			return nil
		}
	}
	return fmt.Errorf("category %s: %w", c.ID, ports.ErrNotFound)
}

func (s *Store) UpdateTag(_ context.Context, t core.Tag) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.tags {
		if existing.ID == t.ID && existing.CreatedBy == t.CreatedBy {
			t.GroupID = existing.GroupID
			s.tags[i] = t
			return nil
		}
	}
	return fmt.Errorf("tag %s: %w", t.ID, ports.ErrNotFound)
}

func (s *Store) DeleteCategory(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.categories {
		if c.ID == id && c.CreatedBy == ownerID {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("category %s: %w", id, ports.ErrNotFound)
}

func (s *Store) CreateTags(_ context.Context, tags []core.Tag) ([]core.Tag, error) {
	for _, t := range tags {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Tag, len(tags))
	for i, t := range tags {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		s.tags = append(s.tags, t)
		out[i] = t
	}
	return out, nil
}

func (s *Store) ListTags(_ context.Context, ownerID string) ([]core.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Tag
	for _, t := range s.tags {
		if t.CreatedBy == ownerID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteTag(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tags {
		if t.ID != id || t.CreatedBy != ownerID {
			continue
		}
		s.tags = append(s.tags[:i], s.tags[i+1:]...)
		for j := range s.expenses {
			e := &s.expenses[j]
			kept := e.TagIDs[:0]
			for _, tag := range e.TagIDs {
				if tag != id {
					kept = append(kept, tag)
				}
			}
			e.TagIDs = kept
		}
		return nil
	}
	return fmt.Errorf("tag %s: %w", id, ports.ErrNotFound)
}

func (s *Store) CreateWallet(_ context.Context, w core.Wallet) (core.Wallet, error) {
	if err := core.ValidateCurrency(w.Currency); err != nil {
		return core.Wallet{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Type == "" {
		w.Type = core.WalletCash
	}
	s.wallets = append(s.wallets, w)
	return w, nil
}

func (s *Store) ListWallets(_ context.Context, ownerID string) ([]core.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Wallet
	for _, w := range s.wallets {
		if w.CreatedBy == ownerID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) UpdateWallet(_ context.Context, w core.Wallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.wallets {
		if existing.ID == w.ID && existing.CreatedBy == w.CreatedBy {
			w.GroupID = existing.GroupID
			s.wallets[i] = w
			return nil
		}
	}
	return fmt.Errorf("wallet %s: %w", w.ID, ports.ErrNotFound)
}

func (s *Store) DeleteWallet(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.wallets {
		if w.ID == id && w.CreatedBy == ownerID {
			s.wallets = append(s.wallets[:i], s.wallets[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("wallet %s: %w", id, ports.ErrNotFound)
}

func (s *Store) GetSnapshot(_ context.Context, date core.Date) (core.ExchangeRateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[date.String()]
	if !ok {
		return core.ExchangeRateSnapshot{}, fmt.Errorf("snapshot %s: %w", date, ports.ErrNotFound)
	}
	return copySnapshot(snap), nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap core.ExchangeRateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := snap.Date.String()
	if _, ok := s.snapshots[key]; ok {
		return fmt.Errorf("snapshot %s: %w", key, ports.ErrConflict)
	}
	snap = copySnapshot(snap)
	snap.CreatedAt = s.now()
	s.snapshots[key] = snap
	return nil
}

func copySnapshot(in core.ExchangeRateSnapshot) core.ExchangeRateSnapshot {
	out := in
	out.Rates = make(map[string]float64, len(in.Rates))
	for k, v := range in.Rates {
		out.Rates[k] = v
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
