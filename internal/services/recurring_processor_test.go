package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"conti/internal/core"
	"conti/internal/ports"
	"conti/internal/storage/memory"
)

var errBoom = errors.New("boom")

// flakyStore wraps the memory store and fails selected writes.
type flakyStore struct {
	*memory.Store
	failCreateOn core.Date
	failRuleID   string
	listErr      error
}

func (f *flakyStore) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if !f.failCreateOn.IsZero() && e.Date.Equal(f.failCreateOn) {
		return core.Expense{}, errBoom
	}
	if f.failRuleID != "" && e.RecurringExpenseID == f.failRuleID {
		return core.Expense{}, errBoom
	}
	return f.Store.CreateExpense(ctx, e)
}

func (f *flakyStore) ListRules(ctx context.Context, ownerID string) ([]core.RecurrenceRule, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListRules(ctx, ownerID)
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingPublisher) PublishRateWarmup(_ context.Context, date core.Date, currency string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, date.String()+"/"+currency)
	return nil
}

func fixedClock(y, m, d int) func() time.Time {
	return func() time.Time { return time.Date(y, time.Month(m), d, 15, 4, 5, 0, time.UTC) }
}

func makeRule(t *testing.T, s ports.RecurrenceStore, freq core.RepetitionTypes, interval int, start core.Date, mutate ...func(*core.RecurrenceRule)) core.RecurrenceRule {
	t.Helper()
	r := core.RecurrenceRule{
		Frequency:   freq,
		Interval:    interval,
		StartDate:   start,
		Amount:      core.Money{Cents: 1500},
		Currency:    "USD",
		Description: "Gym",
		CategoryID:  "cat",
		WalletID:    "wallet",
		CreatedBy:   "alice",
	}
	for _, m := range mutate {
		m(&r)
	}
	saved, err := s.CreateRule(context.Background(), r)
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	return saved
}

func ruleDates(t *testing.T, s ports.ExpenseStore, ruleID string) []string {
	t.Helper()
	list, err := s.ListExpenses(context.Background(), ports.ExpenseFilter{RecurringExpenseID: ruleID})
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	out := make([]string, len(list))
	// ListExpenses is newest first
	for i, e := range list {
		out[len(list)-1-i] = e.Date.String()
	}
	return out
}

func watermark(t *testing.T, s ports.RecurrenceStore, id string) core.Date {
	t.Helper()
	r, err := s.GetRule(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	return r.LastProcessed
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAdvanceDueOccurrences(t *testing.T) {
	tests := []struct {
		name      string
		freq      core.RepetitionTypes
		interval  int
		start     core.Date
		end       core.Date
		last      core.Date
		asOf      core.Date
		wantDates []string
		wantMark  core.Date
	}{
		{
			name:      "monthly anchored on the 31st",
			freq:      core.Monthly,
			interval:  1,
			start:     core.NewDate(2024, 1, 31),
			asOf:      core.NewDate(2024, 4, 30),
			wantDates: []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"},
			wantMark:  core.NewDate(2024, 4, 30),
		},
		{
			name:      "resumes after watermark",
			freq:      core.Weekly,
			interval:  1,
			start:     core.NewDate(2024, 1, 1),
			last:      core.NewDate(2024, 1, 8),
			asOf:      core.NewDate(2024, 1, 22),
			wantDates: []string{"2024-01-15", "2024-01-22"},
			wantMark:  core.NewDate(2024, 1, 22),
		},
		{
			name:      "end date is inclusive",
			freq:      core.Daily,
			interval:  1,
			start:     core.NewDate(2024, 1, 1),
			end:       core.NewDate(2024, 1, 3),
			asOf:      core.NewDate(2024, 1, 10),
			wantDates: []string{"2024-01-01", "2024-01-02", "2024-01-03"},
			wantMark:  core.NewDate(2024, 1, 3),
		},
		{
			name:      "not yet started",
			freq:      core.Yearly,
			interval:  1,
			start:     core.NewDate(2025, 6, 1),
			asOf:      core.NewDate(2024, 6, 1),
			wantDates: []string{},
		},
		{
			name:      "past end date",
			freq:      core.Daily,
			interval:  1,
			start:     core.NewDate(2024, 1, 1),
			end:       core.NewDate(2024, 1, 2),
			last:      core.NewDate(2024, 1, 2),
			asOf:      core.NewDate(2024, 2, 1),
			wantDates: []string{},
			wantMark:  core.NewDate(2024, 1, 2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			rule := makeRule(t, store, tt.freq, tt.interval, tt.start, func(r *core.RecurrenceRule) {
				r.EndDate = tt.end
			})
			if !tt.last.IsZero() {
				if err := store.UpdateLastProcessed(context.Background(), rule.ID, tt.last); err != nil {
					t.Fatal(err)
				}
				rule.LastProcessed = tt.last
			}

			p := NewRecurringProcessor(store, store)
			n, err := p.AdvanceDueOccurrences(context.Background(), rule, tt.asOf)
			if err != nil {
				t.Fatalf("AdvanceDueOccurrences() error = %v", err)
			}
			if n != len(tt.wantDates) {
				t.Errorf("count = %d, want %d", n, len(tt.wantDates))
			}
			if got := ruleDates(t, store, rule.ID); !equalStrings(got, tt.wantDates) {
				t.Errorf("dates = %v, want %v", got, tt.wantDates)
			}
			if got := watermark(t, store, rule.ID); !got.Equal(tt.wantMark) {
				t.Errorf("watermark = %s, want %s", got, tt.wantMark)
			}
		})
	}
}

func TestAdvanceDueOccurrencesIsBoundedAndResumable(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rule := makeRule(t, store, core.Daily, 1, core.NewDate(2024, 1, 1))
	p := NewRecurringProcessor(store, store)
	asOf := core.NewDate(2024, 3, 1)

	n, err := p.AdvanceDueOccurrences(ctx, rule, asOf)
	if err != nil || n != MaxCatchUpOccurrences {
		t.Fatalf("first call = %d, %v; want %d", n, err, MaxCatchUpOccurrences)
	}
	if got := watermark(t, store, rule.ID); !got.Equal(core.NewDate(2024, 1, 12)) {
		t.Fatalf("watermark after first call = %s", got)
	}

	rule, _ = store.GetRule(ctx, rule.ID)
	n, err = p.AdvanceDueOccurrences(ctx, rule, asOf)
	if err != nil || n != MaxCatchUpOccurrences {
		t.Fatalf("second call = %d, %v", n, err)
	}
	if got := watermark(t, store, rule.ID); !got.Equal(core.NewDate(2024, 1, 24)) {
		t.Fatalf("watermark after second call = %s", got)
	}

	list, _ := store.ListExpenses(ctx, ports.ExpenseFilter{RecurringExpenseID: rule.ID})
	for _, e := range list {
		if e.Status != core.StatusCompleted || e.CreatedBy != "alice" || e.Amount.Cents != 1500 {
			t.Fatalf("instance does not follow the template: %+v", e)
		}
	}
}

func TestAdvanceDueOccurrencesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rule := makeRule(t, store, core.Weekly, 1, core.NewDate(2024, 1, 1))
	p := NewRecurringProcessor(store, store)
	asOf := core.NewDate(2024, 1, 20)

	if n, _ := p.AdvanceDueOccurrences(ctx, rule, asOf); n != 3 {
		t.Fatalf("first call = %d, want 3", n)
	}
	rule, _ = store.GetRule(ctx, rule.ID)
	if n, _ := p.AdvanceDueOccurrences(ctx, rule, asOf); n != 0 {
		t.Fatalf("second call = %d, want 0", n)
	}
	// a stale rule value must not produce duplicates either
	stale := rule
	stale.LastProcessed = core.Date{}
	if n, err := p.AdvanceDueOccurrences(ctx, stale, asOf); n != 0 || err != nil {
		t.Fatalf("stale call = %d, %v; want 0, nil", n, err)
	}
	if got := ruleDates(t, store, rule.ID); len(got) != 3 {
		t.Fatalf("dates = %v", got)
	}
}

func TestAdvanceDueOccurrencesStopsOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	store := &flakyStore{Store: base, failCreateOn: core.NewDate(2024, 1, 3)}
	rule := makeRule(t, store, core.Daily, 1, core.NewDate(2024, 1, 1))

	p := NewRecurringProcessor(store, store)
	n, err := p.AdvanceDueOccurrences(ctx, rule, core.NewDate(2024, 1, 6))
	if !errors.Is(err, errBoom) {
		t.Fatalf("error = %v, want errBoom", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	if got := watermark(t, store, rule.ID); !got.Equal(core.NewDate(2024, 1, 2)) {
		t.Fatalf("watermark = %s, want 2024-01-02", got)
	}
}

func TestExpandForwardSeries(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rule := makeRule(t, store, core.Weekly, 2, core.NewDate(2024, 1, 1), func(r *core.RecurrenceRule) {
		r.EndDate = core.NewDate(2024, 3, 1)
	})
	if err := store.UpdateLastProcessed(ctx, rule.ID, core.NewDate(2024, 1, 1)); err != nil {
		t.Fatal(err)
	}
	rule.LastProcessed = core.NewDate(2024, 1, 1)

	p := NewRecurringProcessor(store, store)
	n, err := p.ExpandForwardSeries(ctx, rule, []string{"tag-a", "tag-b"})
	if err != nil {
		t.Fatalf("ExpandForwardSeries() error = %v", err)
	}
	want := []string{"2024-01-15", "2024-01-29", "2024-02-12", "2024-02-26"}
	if n != len(want) {
		t.Fatalf("count = %d, want %d", n, len(want))
	}
	if got := ruleDates(t, store, rule.ID); !equalStrings(got, want) {
		t.Fatalf("dates = %v, want %v", got, want)
	}
	if got := watermark(t, store, rule.ID); !got.Equal(core.NewDate(2024, 2, 26)) {
		t.Fatalf("watermark = %s", got)
	}

	list, _ := store.ListExpenses(ctx, ports.ExpenseFilter{RecurringExpenseID: rule.ID})
	for _, e := range list {
		if e.Status != core.StatusPending {
			t.Errorf("%s status = %s, want pending", e.Date, e.Status)
		}
		if !equalStrings(e.TagIDs, []string{"tag-a", "tag-b"}) {
			t.Errorf("%s tags = %v", e.Date, e.TagIDs)
		}
	}
}

func TestExpandForwardSeriesOpenEnded(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rule := makeRule(t, store, core.Monthly, 1, core.NewDate(2024, 1, 15))
	_ = store.UpdateLastProcessed(ctx, rule.ID, rule.StartDate)
	rule.LastProcessed = rule.StartDate

	p := NewRecurringProcessor(store, store, WithClock(fixedClock(2024, 1, 20)))
	n, err := p.ExpandForwardSeries(ctx, rule, nil)
	if err != nil {
		t.Fatalf("ExpandForwardSeries() error = %v", err)
	}
	// 2024-02-15 through 2025-01-15, the last date on or before 2025-01-20
	if n != 12 {
		t.Fatalf("count = %d, want 12", n)
	}
	if got := watermark(t, store, rule.ID); !got.Equal(core.NewDate(2025, 1, 15)) {
		t.Fatalf("watermark = %s", got)
	}
}

func TestCatchUpSettlesForwardSeries(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rule := makeRule(t, store, core.Weekly, 1, core.NewDate(2024, 1, 1), func(r *core.RecurrenceRule) {
		r.EndDate = core.NewDate(2024, 1, 29)
	})
	p := NewRecurringProcessor(store, store)

	if _, err := p.ExpandForwardSeries(ctx, rule, nil); err != nil {
		t.Fatal(err)
	}
	rule, _ = store.GetRule(ctx, rule.ID)

	n, err := p.AdvanceDueOccurrences(ctx, rule, core.NewDate(2024, 1, 16))
	if err != nil || n != 0 {
		t.Fatalf("catch-up after forward expansion = %d, %v; want 0", n, err)
	}
	pending, _ := store.ListExpenses(ctx, ports.ExpenseFilter{RecurringExpenseID: rule.ID, Status: core.StatusPending})
	if got := len(pending); got != 2 {
		t.Fatalf("pending rows = %d, want 2 (01-22 and 01-29)", got)
	}
	if got := ruleDates(t, store, rule.ID); len(got) != 5 {
		t.Fatalf("dates = %v, want 5 rows and no duplicates", got)
	}
}

func TestProcessDueExpenses(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	store := &flakyStore{Store: base}
	good := makeRule(t, store, core.Daily, 1, core.NewDate(2024, 1, 1))
	bad := makeRule(t, store, core.Daily, 1, core.NewDate(2024, 1, 1))
	other := makeRule(t, store, core.Daily, 1, core.NewDate(2024, 1, 1), func(r *core.RecurrenceRule) {
		r.CreatedBy = "bob"
	})
	store.failRuleID = bad.ID

	p := NewRecurringProcessor(store, store, WithConcurrency(2))
	now := time.Date(2024, 1, 3, 23, 0, 0, 0, time.UTC)

	n, err := p.ProcessDueExpenses(ctx, "alice", now)
	if err != nil {
		t.Fatalf("ProcessDueExpenses() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("generated = %d, want 3 (failing rule skipped)", n)
	}
	if got := ruleDates(t, store, good.ID); len(got) != 3 {
		t.Fatalf("good rule dates = %v", got)
	}
	if got := ruleDates(t, store, other.ID); len(got) != 0 {
		t.Fatalf("another owner's rule was processed: %v", got)
	}

	n, err = p.ProcessAll(ctx, now)
	if err != nil || n != 3 {
		t.Fatalf("ProcessAll() = %d, %v; want 3 (bob's rule only)", n, err)
	}

	if _, err := p.ProcessDueExpenses(ctx, "", now); !errors.Is(err, core.ErrMissingOwner) {
		t.Fatalf("empty owner error = %v", err)
	}

	store.listErr = errBoom
	if _, err := p.ProcessAll(ctx, now); !errors.Is(err, errBoom) {
		t.Fatalf("list failure should surface, got %v", err)
	}
}

func TestCatchUpPublishesWarmups(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	eur := makeRule(t, store, core.Daily, 1, core.NewDate(2024, 1, 1), func(r *core.RecurrenceRule) {
		r.Currency = "EUR"
	})
	usd := makeRule(t, store, core.Daily, 1, core.NewDate(2024, 1, 1))

	p := NewRecurringProcessor(store, store, WithWarmupPublisher(pub))
	asOf := core.NewDate(2024, 1, 2)
	if _, err := p.AdvanceDueOccurrences(ctx, eur, asOf); err != nil {
		t.Fatal(err)
	}
	if _, err := p.AdvanceDueOccurrences(ctx, usd, asOf); err != nil {
		t.Fatal(err)
	}

	want := []string{"2024-01-01/EUR", "2024-01-02/EUR"}
	if !equalStrings(pub.calls, want) {
		t.Fatalf("published %v, want %v", pub.calls, want)
	}
}

func TestCatchUpBacklogDrainsAcrossCalls(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	asOf := core.NewDate(2024, 6, 20)
	start := asOf.AddDays(-15)
	rule := makeRule(t, store, core.Daily, 1, start)
	if err := store.UpdateLastProcessed(ctx, rule.ID, start); err != nil {
		t.Fatal(err)
	}
	p := NewRecurringProcessor(store, store)

	// 15 days are due; the bound leaves 3 for the next call the same day
	steps := []struct {
		want     int
		wantMark core.Date
	}{
		{MaxCatchUpOccurrences, start.AddDays(12)},
		{3, asOf},
		{0, asOf},
	}
	for i, step := range steps {
		current, _ := store.GetRule(ctx, rule.ID)
		n, err := p.AdvanceDueOccurrences(ctx, current, asOf)
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if n != step.want {
			t.Fatalf("call %d generated %d, want %d", i+1, n, step.want)
		}
		if got := watermark(t, store, rule.ID); !got.Equal(step.wantMark) {
			t.Fatalf("call %d watermark = %s, want %s", i+1, got, step.wantMark)
		}
	}
	if got := ruleDates(t, store, rule.ID); len(got) != 15 {
		t.Fatalf("dates = %v, want 15 rows", got)
	}
}

func TestGeneratedDescriptions(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := NewRecurringProcessor(store, store)

	due := makeRule(t, store, core.Daily, 1, core.NewDate(2024, 1, 1))
	if _, err := p.AdvanceDueOccurrences(ctx, due, core.NewDate(2024, 1, 2)); err != nil {
		t.Fatal(err)
	}
	caughtUp, _ := store.ListExpenses(ctx, ports.ExpenseFilter{RecurringExpenseID: due.ID})
	for _, e := range caughtUp {
		if e.Description != "Gym (Recurring)" {
			t.Errorf("catch-up description = %q", e.Description)
		}
	}

	ahead := makeRule(t, store, core.Daily, 1, core.NewDate(2024, 1, 1), func(r *core.RecurrenceRule) {
		r.EndDate = core.NewDate(2024, 1, 3)
	})
	if _, err := p.ExpandForwardSeries(ctx, ahead, nil); err != nil {
		t.Fatal(err)
	}
	forward, _ := store.ListExpenses(ctx, ports.ExpenseFilter{RecurringExpenseID: ahead.ID})
	for _, e := range forward {
		if e.Description != "Gym" {
			t.Errorf("forward description = %q", e.Description)
		}
	}
}
