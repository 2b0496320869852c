package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/middleware/ratelimit"
	"conti/internal/middleware/security"
	"conti/internal/middleware/trace"
	"conti/internal/services"
)

// Service dependencies, declared where they are consumed.
type (
	ExpenseAPI interface {
		CreateExpense(ctx context.Context, in services.ExpenseInput) (core.Expense, error)
		ListExpenses(ctx context.Context, ownerID string, from, to core.Date) ([]core.Expense, error)
		ListRecurring(ctx context.Context, ownerID string) ([]core.RecurrenceRule, error)
		UpdateRecurring(ctx context.Context, ownerID, id string, upd services.RecurringUpdate) (core.RecurrenceRule, error)
		DeleteRecurring(ctx context.Context, ownerID, id string) error
	}

	TaxonomyAPI interface {
		CreateCategory(ctx context.Context, in services.CategoryInput) (core.Category, error)
		ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
		UpdateCategory(ctx context.Context, ownerID, id string, upd services.CategoryUpdate) (core.Category, error)
		DeleteCategory(ctx context.Context, ownerID, id string) error
		CreateTag(ctx context.Context, in services.TagInput) (core.Tag, error)
		ListTags(ctx context.Context, ownerID string) ([]core.Tag, error)
		UpdateTag(ctx context.Context, ownerID, id string, upd services.TagUpdate) (core.Tag, error)
		DeleteTag(ctx context.Context, ownerID, id string) error
	}

	WalletAPI interface {
		CreateWallet(ctx context.Context, in services.WalletInput) (core.Wallet, error)
		ListWallets(ctx context.Context, ownerID string) ([]core.Wallet, error)
		UpdateWallet(ctx context.Context, ownerID, id string, upd services.WalletUpdate) (core.Wallet, error)
		DeleteWallet(ctx context.Context, ownerID, id string) error
	}

	RecurringAPI interface {
		ProcessDueExpenses(ctx context.Context, ownerID string, now time.Time) (int, error)
	}

	RateAPI interface {
		GetRate(ctx context.Context, date core.Date, source, target string) (float64, error)
		GetLatestRate(ctx context.Context, source, target string) (float64, error)
	}

	ReportAPI interface {
		Summarize(ctx context.Context, req services.SummaryRequest) (core.Summary, error)
	}

	DefaultsAPI interface {
		EnsureDefaults(ctx context.Context, ownerID string) (services.DefaultsResult, error)
	}

	ReadinessChecker interface {
		Ping(ctx context.Context) error
	}
)

// Deps groups the services the API exposes.
type Deps struct {
	Expenses  ExpenseAPI
	Recurring RecurringAPI
	Rates     RateAPI
	Reports   ReportAPI
	Defaults  DefaultsAPI
	Taxonomy  TaxonomyAPI
	Wallets   WalletAPI
	Store     ReadinessChecker
}

// Options tunes the server. Zero values select defaults.
type Options struct {
	RateLimitPerMinute int
	Logger             *applog.Logger
	Clock              func() time.Time
}

type Server struct {
	http.Server
	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	detector := security.NewDetector()
	s := &Server{
		deps:     deps,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		now:      opts.Clock,
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	api.HandleFunc("GET /api/expenses", s.handleListExpenses)
	api.HandleFunc("GET /api/recurring", s.handleListRecurring)
	api.HandleFunc("POST /api/recurring/process", s.handleProcessRecurring)
	api.HandleFunc("PATCH /api/recurring/{id}", s.handleUpdateRecurring)
	api.HandleFunc("DELETE /api/recurring/{id}", s.handleDeleteRecurring)
	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	api.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	api.HandleFunc("GET /api/tags", s.handleListTags)
	api.HandleFunc("POST /api/tags", s.handleCreateTag)
	api.HandleFunc("PATCH /api/tags/{id}", s.handleUpdateTag)
	api.HandleFunc("DELETE /api/tags/{id}", s.handleDeleteTag)
	api.HandleFunc("GET /api/wallets", s.handleListWallets)
	api.HandleFunc("POST /api/wallets", s.handleCreateWallet)
	api.HandleFunc("PATCH /api/wallets/{id}", s.handleUpdateWallet)
	api.HandleFunc("DELETE /api/wallets/{id}", s.handleDeleteWallet)
	api.HandleFunc("GET /api/rates", s.handleGetRate)
	api.HandleFunc("GET /api/reports/summary", s.handleSummary)
	api.HandleFunc("POST /api/onboarding/defaults", s.handleEnsureDefaults)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later").Write(w)
	})(requireUser(api)))

	var handler http.Handler = mux
	handler = applog.ComponentMiddleware(applog.ComponentHTTP)(handler)
	handler = applog.Middleware(opts.Logger)(handler)
	handler = s.tracer.Middleware(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// TraceMetrics exposes request counters for diagnostics.
func (s *Server) TraceMetrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "not_ready", "store unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
