package http

import (
	"net/http"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/services"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		UnprocessableEntityError("amount must be a positive decimal such as 12.34").Write(w)
		return
	}

	date := req.Date
	if date.IsZero() {
		date = core.DateOf(s.now())
	}

	userID := userFromContext(r.Context())
	in := services.ExpenseInput{
		OwnerID:     userID,
		GroupID:     sanitizeInput(req.GroupID),
		Amount:      amount,
		Currency:    req.Currency,
		Description: sanitizeInput(req.Description),
		Date:        date,
		CategoryID:  sanitizeInput(req.CategoryID),
		WalletID:    sanitizeInput(req.WalletID),
		TagIDs:      req.TagIDs,
	}
	if req.Recurrence != nil {
		in.Recurrence = &services.RecurrenceInput{
			Frequency: core.RepetitionTypes(sanitizeInput(req.Recurrence.Frequency)),
			Interval:  req.Recurrence.Interval,
			EndDate:   req.Recurrence.EndDate,
		}
	}

	saved, err := s.deps.Expenses.CreateExpense(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogExpenseCreated(r.Context(), userID, saved.ID, saved.Amount.Cents, saved.Currency, saved.RecurringExpenseID)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+saved.ID).
		Body(toExpenseResponse(saved)).
		Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	from, to, err := ParseDateRange(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	expenses, err := s.deps.Expenses.ListExpenses(r.Context(), userFromContext(r.Context()), from, to)
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	NewJSONResponse().Body(map[string]any{"expenses": out}).Write(w)
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	rules, err := s.deps.Expenses.ListRecurring(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}

	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	NewJSONResponse().Body(map[string]any{"recurring": out}).Write(w)
}

// handleProcessRecurring runs the catch-up sweep for the caller. Clients call
// it when the application loads.
func (s *Server) handleProcessRecurring(w http.ResponseWriter, r *http.Request) {
	generated, err := s.deps.Recurring.ProcessDueExpenses(r.Context(), userFromContext(r.Context()), s.now())
	if err != nil {
		writeServiceError(w, r, applog.OpProcess, err)
		return
	}
	NewJSONResponse().Body(map[string]int{"generated": generated}).Write(w)
}

func (s *Server) handleEnsureDefaults(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Defaults.EnsureDefaults(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, applog.OpSeed, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var req updateRecurringRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	upd := services.RecurringUpdate{
		Description: sanitizedPtr(req.Description),
		CategoryID:  sanitizedPtr(req.CategoryID),
		WalletID:    sanitizedPtr(req.WalletID),
		EndDate:     req.EndDate,
	}
	if req.Amount != nil {
		amount, err := core.ParseMoney(*req.Amount)
		if err != nil {
			UnprocessableEntityError("amount must be a positive decimal such as 12.34").Write(w)
			return
		}
		upd.Amount = &amount
	}

	rule, err := s.deps.Expenses.UpdateRecurring(r.Context(), userFromContext(r.Context()), r.PathValue("id"), upd)
	if err != nil {
		writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(toRuleResponse(rule)).Write(w)
}

// handleDeleteRecurring stops a series. Pending instances go with it;
// completed ones stay in the history.
func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Expenses.DeleteRecurring(r.Context(), userFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
