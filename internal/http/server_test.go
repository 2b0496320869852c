package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/ports"
	"conti/internal/services"
	"conti/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError, Component: applog.ComponentHTTP, Output: io.Discard})
}

type fakeRates struct {
	rate     float64
	err      error
	gotDate  core.Date
	gotLatst bool
}

func (f *fakeRates) GetRate(_ context.Context, date core.Date, _, _ string) (float64, error) {
	f.gotDate = date
	return f.rate, f.err
}

func (f *fakeRates) GetLatestRate(_ context.Context, _, _ string) (float64, error) {
	f.gotLatst = true
	return f.rate, f.err
}

type fakeRecurring struct {
	generated int
	err       error
	owner     string
}

func (f *fakeRecurring) ProcessDueExpenses(_ context.Context, ownerID string, _ time.Time) (int, error) {
	f.owner = ownerID
	return f.generated, f.err
}

type fakeReports struct {
	summary core.Summary
	err     error
	req     services.SummaryRequest
}

func (f *fakeReports) Summarize(_ context.Context, req services.SummaryRequest) (core.Summary, error) {
	f.req = req
	return f.summary, f.err
}

type fakeDefaults struct{}

func (fakeDefaults) EnsureDefaults(_ context.Context, ownerID string) (services.DefaultsResult, error) {
	return services.DefaultsResult{CategoriesCreated: 28, TagsCreated: 5}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

// newTestServer wires real expense services over an in-memory store and
// fakes for everything that would leave the process.
func newTestServer(t *testing.T, mutate func(*Deps, *Options)) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	proc := services.NewRecurringProcessor(store, store, services.WithClock(clock))
	deps := Deps{
		Expenses:  services.NewExpenseService(store, proc, nil),
		Recurring: proc,
		Rates:     &fakeRates{rate: 1.25},
		Reports:   &fakeReports{},
		Defaults:  fakeDefaults{},
		Taxonomy:  services.NewTaxonomyService(store),
		Wallets:   services.NewWalletService(store),
		Store:     store,
	}
	opts := Options{RateLimitPerMinute: 1000, Logger: quietLogger(), Clock: clock}
	if mutate != nil {
		mutate(&deps, &opts)
	}
	srv := NewServer(":0", deps, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing request ID", path)
		}
	}

	down, _ := newTestServer(t, func(d *Deps, _ *Options) { d.Store = fakePinger{err: errors.New("db gone")} })
	if rr := do(t, down, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store status=%d", rr.Code)
	}
}

func TestAPIRequiresUser(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodGet, "/api/expenses", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rr.Code)
	}
	if body := decode[errorBody](t, rr); body.Code != "unauthorized" {
		t.Errorf("error code = %q", body.Code)
	}

	if rr := do(t, srv, http.MethodGet, "/api/expenses", "   ", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("blank user status=%d, want 401", rr.Code)
	}
}

func TestCreateRecurringExpense(t *testing.T) {
	srv, store := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPost, "/api/expenses", "u1", `{
		"amount": "12,99",
		"currency": "eur",
		"description": "Streaming",
		"date": "2024-01-31",
		"tag_ids": ["t1"],
		"recurrence": {"frequency": "monthly", "interval": 1, "end_date": "2024-04-30"}
	}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[expenseResponse](t, rr)
	if created.AmountCents != 1299 || created.Currency != "EUR" || created.Status != "completed" {
		t.Errorf("unexpected expense %+v", created)
	}
	if created.RecurringExpenseID == "" || created.Date.String() != "2024-01-31" {
		t.Errorf("expected a rule-linked expense on the start date, got %+v", created)
	}
	if rr.Header().Get("Location") != "/api/expenses/"+created.ID {
		t.Errorf("Location = %q", rr.Header().Get("Location"))
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses?from=2024-01-01&to=2024-12-31", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	list := decode[struct {
		Expenses []expenseResponse `json:"expenses"`
	}](t, rr)
	if len(list.Expenses) != 4 {
		t.Fatalf("want start date plus 3 pending rows, got %d", len(list.Expenses))
	}
	pending := 0
	for _, e := range list.Expenses {
		if e.Status == "pending" {
			pending++
		}
	}
	if pending != 3 {
		t.Errorf("pending rows = %d, want 3", pending)
	}

	rr = do(t, srv, http.MethodGet, "/api/recurring", "u1", "")
	rules := decode[struct {
		Recurring []ruleResponse `json:"recurring"`
	}](t, rr)
	if len(rules.Recurring) != 1 || rules.Recurring[0].LastProcessed.String() != "2024-04-30" {
		t.Fatalf("unexpected rules %+v", rules.Recurring)
	}

	other, _ := store.ListExpenses(context.Background(), ports.ExpenseFilter{OwnerID: "u2"})
	if len(other) != 0 {
		t.Errorf("another owner sees %d expenses", len(other))
	}
}

func TestCreateExpenseDefaultsDateToToday(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPost, "/api/expenses", "u1", `{"amount":"3.50","currency":"USD","description":"Coffee"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[expenseResponse](t, rr); got.Date.String() != "2024-03-15" || got.TagIDs == nil {
		t.Errorf("unexpected expense %+v", got)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body", ``, http.StatusBadRequest},
		{"malformed json", `{"amount":`, http.StatusBadRequest},
		{"unknown field", `{"amount":"1","currency":"EUR","description":"x","colour":"red"}`, http.StatusBadRequest},
		{"two objects", `{"amount":"1","currency":"EUR","description":"x"}{}`, http.StatusBadRequest},
		{"bad date", `{"amount":"1","currency":"EUR","description":"x","date":"31/01/2024"}`, http.StatusBadRequest},
		{"bad amount", `{"amount":"abc","currency":"EUR","description":"x"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"amount":"-5","currency":"EUR","description":"x"}`, http.StatusUnprocessableEntity},
		{"bad currency", `{"amount":"1","currency":"EURO","description":"x"}`, http.StatusUnprocessableEntity},
		{"empty description", `{"amount":"1","currency":"EUR","description":"  "}`, http.StatusUnprocessableEntity},
		{"bad frequency", `{"amount":"1","currency":"EUR","description":"x","recurrence":{"frequency":"hourly"}}`, http.StatusUnprocessableEntity},
		{"end before start", `{"amount":"1","currency":"EUR","description":"x","date":"2024-02-01","recurrence":{"frequency":"daily","end_date":"2024-01-01"}}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/expenses", "u1", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d, body=%s", rr.Code, tt.want, rr.Body.String())
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestListExpensesBadRange(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	if rr := do(t, srv, http.MethodGet, "/api/expenses?from=yesterday", "u1", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("unparseable date status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/expenses?from=2024-02-01&to=2024-01-01", "u1", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("inverted range status=%d", rr.Code)
	}
}

func TestGetRate(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
		wantLatest bool
	}{
		{"historical", "?date=2024-01-12&from=gbp&to=EUR", nil, http.StatusOK, false},
		{"latest", "?from=USD&to=JPY", nil, http.StatusOK, true},
		{"unavailable", "?from=USD&to=CHF", fmt.Errorf("%w: USD to CHF", services.ErrRateUnavailable), http.StatusBadGateway, true},
		{"not found", "?from=USD&to=EUR", ports.ErrNotFound, http.StatusNotFound, true},
		{"store failure", "?from=USD&to=EUR", errors.New("disk on fire"), http.StatusInternalServerError, true},
		{"bad currency", "?from=US&to=EUR", nil, http.StatusUnprocessableEntity, false},
		{"missing currency", "?from=USD", nil, http.StatusUnprocessableEntity, false},
		{"bad date", "?date=2024-13-01&from=USD&to=EUR", nil, http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rates := &fakeRates{rate: 1.6, err: tt.err}
			srv, _ := newTestServer(t, func(d *Deps, _ *Options) { d.Rates = rates })

			rr := do(t, srv, http.MethodGet, "/api/rates"+tt.query, "u1", "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d, body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if rates.gotLatst != tt.wantLatest {
				t.Errorf("latest lookup = %v, want %v", rates.gotLatst, tt.wantLatest)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			got := decode[rateResponse](t, rr)
			if got.Rate != 1.6 {
				t.Errorf("rate = %v", got.Rate)
			}
			if tt.wantLatest && got.Date.String() != "2024-03-15" {
				t.Errorf("latest date = %s", got.Date)
			}
			if !tt.wantLatest && (got.From != "GBP" || rates.gotDate.String() != "2024-01-12") {
				t.Errorf("unexpected response %+v, date %s", got, rates.gotDate)
			}
		})
	}
}

func TestProcessRecurring(t *testing.T) {
	rec := &fakeRecurring{generated: 3}
	srv, _ := newTestServer(t, func(d *Deps, _ *Options) { d.Recurring = rec })

	rr := do(t, srv, http.MethodPost, "/api/recurring/process", "u7", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := decode[map[string]int](t, rr); got["generated"] != 3 || rec.owner != "u7" {
		t.Errorf("body=%v owner=%q", got, rec.owner)
	}

	if rr := do(t, srv, http.MethodGet, "/api/recurring/process", "u7", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status=%d, want 405", rr.Code)
	}
}

func TestSummary(t *testing.T) {
	reports := &fakeReports{summary: core.Summary{
		Currency:      "EUR",
		TotalExpenses: core.Money{Cents: 3350},
		TotalIncome:   core.Money{Cents: 190000},
		NetSavings:    core.Money{Cents: 186650},
		ByCategory:    []core.CategoryAmount{{CategoryID: "c1", Name: "Food", Type: core.CategoryExpense, Amount: core.Money{Cents: 3350}}},
		Unconverted:   1,
	}}
	srv, _ := newTestServer(t, func(d *Deps, _ *Options) { d.Reports = reports })

	rr := do(t, srv, http.MethodGet, "/api/reports/summary?currency=eur&from=2024-01-01&to=2024-01-31", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[summaryResponse](t, rr)
	if got.TotalExpenses != "33.50" || got.NetSavings != "1866.50" || got.Unconverted != 1 {
		t.Errorf("unexpected summary %+v", got)
	}
	if len(got.ByCategory) != 1 || got.ByCategory[0].Amount != "33.50" || got.Daily == nil {
		t.Errorf("unexpected breakdown %+v", got)
	}
	if reports.req.OwnerID != "u1" || reports.req.DisplayCurrency != "eur" || reports.req.From.String() != "2024-01-01" {
		t.Errorf("unexpected request %+v", reports.req)
	}
}

func TestEnsureDefaults(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPost, "/api/onboarding/defaults", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := decode[services.DefaultsResult](t, rr); got.CategoriesCreated != 28 || got.TagsCreated != 5 {
		t.Errorf("result = %+v", got)
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, func(_ *Deps, o *Options) { o.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodGet, "/api/recurring", "u1", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i+1, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodGet, "/api/recurring", "u1", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	if rr := do(t, srv, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
		t.Errorf("health checks are not rate limited, status=%d", rr.Code)
	}
}

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusAccepted).Header("X-Test", "1").Body(map[string]string{"a": "b"}).Write(rr)
	if rr.Code != http.StatusAccepted || rr.Header().Get("X-Test") != "1" {
		t.Fatalf("status=%d headers=%v", rr.Code, rr.Header())
	}
	if !bytes.Equal(bytes.TrimSpace(rr.Body.Bytes()), []byte(`{"a":"b"}`)) {
		t.Errorf("body=%q", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rr)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Errorf("empty body response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("%w: %w", services.ErrInvalidInput, core.ErrInvalidAmount), http.StatusUnprocessableEntity},
		{"validation errors", core.ValidationErrors{core.ErrEmptyDescription}, http.StatusUnprocessableEntity},
		{"missing owner", core.ErrMissingOwner, http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("get rule: %w", ports.ErrNotFound), http.StatusNotFound},
		{"rate unavailable", services.ErrRateUnavailable, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := errorFor(tt.err)
			if resp.statusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.statusCode, tt.want)
			}
		})
	}
}

func TestUpdateAndDeleteRecurring(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPost, "/api/expenses", "u1", `{
		"amount": "12.99", "currency": "EUR", "description": "Streaming", "date": "2024-01-31",
		"recurrence": {"frequency": "monthly", "end_date": "2024-04-30"}
	}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	ruleID := decode[expenseResponse](t, rr).RecurringExpenseID
	target := "/api/recurring/" + ruleID

	tests := []struct {
		name string
		user string
		body string
		want int
	}{
		{"bad amount", "u1", `{"amount":"free"}`, http.StatusUnprocessableEntity},
		{"bad end date", "u1", `{"end_date":"30/04/2024"}`, http.StatusBadRequest},
		{"end before start", "u1", `{"end_date":"2023-12-31"}`, http.StatusUnprocessableEntity},
		{"unknown field", "u1", `{"frequency":"weekly"}`, http.StatusBadRequest},
		{"other owner", "u2", `{"amount":"1"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, http.MethodPatch, target, tt.user, tt.body); rr.Code != tt.want {
				t.Fatalf("status=%d, want %d, body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr = do(t, srv, http.MethodPatch, target, "u1", `{"amount":"15.49","end_date":"2024-02-29"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	rule := decode[ruleResponse](t, rr)
	if rule.Amount != "15.49" || rule.EndDate.String() != "2024-02-29" || rule.LastProcessed.String() != "2024-02-29" {
		t.Fatalf("unexpected rule %+v", rule)
	}

	list := decode[struct {
		Expenses []expenseResponse `json:"expenses"`
	}](t, do(t, srv, http.MethodGet, "/api/expenses", "u1", ""))
	if len(list.Expenses) != 2 {
		t.Fatalf("rows after trimming the series = %d, want 2", len(list.Expenses))
	}
	if list.Expenses[0].Status != "pending" || list.Expenses[0].AmountCents != 1549 {
		t.Errorf("regenerated row %+v", list.Expenses[0])
	}

	if rr := do(t, srv, http.MethodDelete, target, "u2", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("foreign delete status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodDelete, target, "u1", "")
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("delete status=%d body=%q", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodDelete, target, "u1", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d, want 404", rr.Code)
	}

	list = decode[struct {
		Expenses []expenseResponse `json:"expenses"`
	}](t, do(t, srv, http.MethodGet, "/api/expenses", "u1", ""))
	if len(list.Expenses) != 1 || list.Expenses[0].Status != "completed" || list.Expenses[0].RecurringExpenseID != "" {
		t.Fatalf("history after delete = %+v", list.Expenses)
	}
}

func TestWalletsFeedSummaryBalance(t *testing.T) {
	srv, _ := newTestServer(t, func(d *Deps, _ *Options) {
		store := d.Store.(*memory.Store)
		d.Reports = services.NewReportService(store, d.Rates, 1)
	})

	rr := do(t, srv, http.MethodPost, "/api/wallets", "u1", `{"name":"Checking","type":"bank","balance":"1500,25"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	wallet := decode[walletResponse](t, rr)
	if wallet.BalanceCents != 150025 || wallet.Currency != "USD" || wallet.Type != "bank" {
		t.Fatalf("unexpected wallet %+v", wallet)
	}
	if rr.Header().Get("Location") != "/api/wallets/"+wallet.ID {
		t.Errorf("Location = %q", rr.Header().Get("Location"))
	}
	if rr := do(t, srv, http.MethodPost, "/api/wallets", "u1", `{"name":"Card","type":"credit_card","balance":"-300"}`); rr.Code != http.StatusCreated {
		t.Fatalf("negative balance status=%d body=%s", rr.Code, rr.Body.String())
	}

	summary := decode[summaryResponse](t, do(t, srv, http.MethodGet, "/api/reports/summary?currency=USD", "u1", ""))
	if summary.TotalBalance != "1200.25" {
		t.Fatalf("total balance = %s, want 1200.25", summary.TotalBalance)
	}

	rr = do(t, srv, http.MethodPatch, "/api/wallets/"+wallet.ID, "u1", `{"balance":"2000"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[walletResponse](t, rr); got.Balance != "2000.00" || got.Name != "Checking" {
		t.Errorf("patched wallet %+v", got)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/wallets/"+wallet.ID, "u1", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	summary = decode[summaryResponse](t, do(t, srv, http.MethodGet, "/api/reports/summary?currency=USD", "u1", ""))
	if summary.TotalBalance != "-300.00" {
		t.Fatalf("total balance after delete = %s, want -300.00", summary.TotalBalance)
	}
}

func TestWalletValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"bad balance", http.MethodPost, "/api/wallets", `{"name":"Jar","balance":"lots"}`, http.StatusUnprocessableEntity},
		{"unknown type", http.MethodPost, "/api/wallets", `{"name":"Jar","type":"vault"}`, http.StatusUnprocessableEntity},
		{"blank name", http.MethodPost, "/api/wallets", `{"name":"  "}`, http.StatusUnprocessableEntity},
		{"malformed", http.MethodPost, "/api/wallets", `{"name":`, http.StatusBadRequest},
		{"missing wallet", http.MethodPatch, "/api/wallets/nope", `{"name":"Jar"}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/wallets/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, tt.method, tt.target, "u1", tt.body); rr.Code != tt.want {
				t.Fatalf("status=%d, want %d, body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestCategoriesAndTags(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPost, "/api/categories", "u1", `{"name":"Salary","type":"income","icon":"💰"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("category status=%d body=%s", rr.Code, rr.Body.String())
	}
	cat := decode[categoryResponse](t, rr)
	if cat.Type != "income" || rr.Header().Get("Location") != "/api/categories/"+cat.ID {
		t.Fatalf("unexpected category %+v", cat)
	}
	if rr := do(t, srv, http.MethodPost, "/api/categories", "u1", `{"name":"Misc","type":"other"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad type status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/api/tags", "u1", `{"name":"Holiday","color":"#0EA5E9"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("tag status=%d body=%s", rr.Code, rr.Body.String())
	}
	tag := decode[tagResponse](t, rr)

	cats := decode[struct {
		Categories []categoryResponse `json:"categories"`
	}](t, do(t, srv, http.MethodGet, "/api/categories", "u1", ""))
	tags := decode[struct {
		Tags []tagResponse `json:"tags"`
	}](t, do(t, srv, http.MethodGet, "/api/tags", "u1", ""))
	if len(cats.Categories) != 1 || len(tags.Tags) != 1 {
		t.Fatalf("categories=%+v tags=%+v", cats.Categories, tags.Tags)
	}
	if other := decode[struct {
		Tags []tagResponse `json:"tags"`
	}](t, do(t, srv, http.MethodGet, "/api/tags", "u2", "")); other.Tags == nil || len(other.Tags) != 0 {
		t.Fatalf("another owner sees tags %+v", other.Tags)
	}

	rr = do(t, srv, http.MethodPatch, "/api/categories/"+cat.ID, "u1", `{"name":"Wages"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("category patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[categoryResponse](t, rr); got.Name != "Wages" || got.Type != "income" || got.Icon != "💰" {
		t.Errorf("patched category %+v", got)
	}
	if rr := do(t, srv, http.MethodPatch, "/api/categories/"+cat.ID, "u1", `{"type":"transfer"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad category type status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodPatch, "/api/tags/"+tag.ID, "u1", `{"color":"#10B981"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("tag patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[tagResponse](t, rr); got.Name != "Holiday" || got.Color != "#10B981" {
		t.Errorf("patched tag %+v", got)
	}
	if rr := do(t, srv, http.MethodPatch, "/api/tags/"+tag.ID, "u2", `{"name":"Mine"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("foreign tag patch status=%d", rr.Code)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/tags/"+tag.ID, "u2", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("foreign tag delete status=%d", rr.Code)
	}
	for _, target := range []string{"/api/tags/" + tag.ID, "/api/categories/" + cat.ID} {
		if rr := do(t, srv, http.MethodDelete, target, "u1", ""); rr.Code != http.StatusNoContent {
			t.Fatalf("DELETE %s status=%d", target, rr.Code)
		}
	}
}
