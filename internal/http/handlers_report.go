package http

import (
	"net/http"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/services"
)

// handleGetRate answers GET /api/rates?date=&from=&to=. Without a date the
// latest rate is returned.
func (s *Server) handleGetRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := core.NormalizeCurrency(q.Get("from"))
	to := core.NormalizeCurrency(q.Get("to"))
	for _, code := range []string{from, to} {
		if err := core.ValidateCurrency(code); err != nil {
			UnprocessableEntityError("from and to must be three-letter currency codes").Write(w)
			return
		}
	}

	date, err := ParseDateQuery(q, "date")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var rate float64
	if date.IsZero() {
		date = core.DateOf(s.now())
		rate, err = s.deps.Rates.GetLatestRate(r.Context(), from, to)
	} else {
		rate, err = s.deps.Rates.GetRate(r.Context(), date, from, to)
	}
	if err != nil {
		writeServiceError(w, r, applog.OpConvert, err)
		return
	}

	NewJSONResponse().Body(rateResponse{Date: date, From: from, To: to, Rate: rate}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := ParseDateRange(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	summary, err := s.deps.Reports.Summarize(r.Context(), services.SummaryRequest{
		OwnerID:         userFromContext(r.Context()),
		DisplayCurrency: r.URL.Query().Get("currency"),
		From:            from,
		To:              to,
	})
	if err != nil {
		writeServiceError(w, r, applog.OpSummary, err)
		return
	}
	NewJSONResponse().Body(toSummaryResponse(summary)).Write(w)
}
