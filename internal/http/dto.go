package http

import (
	"time"

	"conti/internal/core"
)

type expenseResponse struct {
	ID                 string    `json:"id"`
	Amount             string    `json:"amount"`
	AmountCents        int64     `json:"amount_cents"`
	Currency           string    `json:"currency"`
	Description        string    `json:"description"`
	Date               core.Date `json:"date"`
	CategoryID         string    `json:"category_id,omitempty"`
	WalletID           string    `json:"wallet_id,omitempty"`
	GroupID            string    `json:"group_id,omitempty"`
	Status             string    `json:"status"`
	RecurringExpenseID string    `json:"recurring_expense_id,omitempty"`
	TagIDs             []string  `json:"tag_ids"`
	CreatedAt          time.Time `json:"created_at"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	tags := e.TagIDs
	if tags == nil {
		tags = []string{}
	}
	return expenseResponse{
		ID:                 e.ID,
		Amount:             e.Amount.String(),
		AmountCents:        e.Amount.Cents,
		Currency:           e.Currency,
		Description:        e.Description,
		Date:               e.Date,
		CategoryID:         e.CategoryID,
		WalletID:           e.WalletID,
		GroupID:            e.GroupID,
		Status:             string(e.Status),
		RecurringExpenseID: e.RecurringExpenseID,
		TagIDs:             tags,
		CreatedAt:          e.CreatedAt,
	}
}

type ruleResponse struct {
	ID            string    `json:"id"`
	Frequency     string    `json:"frequency"`
	Interval      int       `json:"interval"`
	StartDate     core.Date `json:"start_date"`
	EndDate       core.Date `json:"end_date"`
	LastProcessed core.Date `json:"last_processed"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description"`
	CategoryID    string    `json:"category_id,omitempty"`
	WalletID      string    `json:"wallet_id,omitempty"`
}

func toRuleResponse(r core.RecurrenceRule) ruleResponse {
	return ruleResponse{
		ID:            r.ID,
		Frequency:     string(r.Frequency),
		Interval:      r.Interval,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		LastProcessed: r.LastProcessed,
		Amount:        r.Amount.String(),
		Currency:      r.Currency,
		Description:   r.Description,
		CategoryID:    r.CategoryID,
		WalletID:      r.WalletID,
	}
}

type categoryAmountResponse struct {
	CategoryID string `json:"category_id,omitempty"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Amount     string `json:"amount"`
}

type dailyAmountResponse struct {
	Date     core.Date `json:"date"`
	Expenses string    `json:"expenses"`
	Income   string    `json:"income"`
}

type summaryResponse struct {
	Currency      string                   `json:"currency"`
	From          core.Date                `json:"from"`
	To            core.Date                `json:"to"`
	TotalExpenses string                   `json:"total_expenses"`
	TotalIncome   string                   `json:"total_income"`
	NetSavings    string                   `json:"net_savings"`
	TotalBalance  string                   `json:"total_balance"`
	ByCategory    []categoryAmountResponse `json:"by_category"`
	Daily         []dailyAmountResponse    `json:"daily"`
	Unconverted   int                      `json:"unconverted"`
}

func toSummaryResponse(s core.Summary) summaryResponse {
	out := summaryResponse{
		Currency:      s.Currency,
		From:          s.From,
		To:            s.To,
		TotalExpenses: s.TotalExpenses.String(),
		TotalIncome:   s.TotalIncome.String(),
		NetSavings:    s.NetSavings.String(),
		TotalBalance:  s.TotalBalance.String(),
		ByCategory:    make([]categoryAmountResponse, 0, len(s.ByCategory)),
		Daily:         make([]dailyAmountResponse, 0, len(s.Daily)),
		Unconverted:   s.Unconverted,
	}
	for _, c := range s.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryAmountResponse{
			CategoryID: c.CategoryID,
			Name:       c.Name,
			Type:       string(c.Type),
			Amount:     c.Amount.String(),
		})
	}
	for _, d := range s.Daily {
		out.Daily = append(out.Daily, dailyAmountResponse{
			Date:     d.Date,
			Expenses: d.Expenses.String(),
			Income:   d.Income.String(),
		})
	}
	return out
}

type rateResponse struct {
	Date core.Date `json:"date"`
	From string    `json:"from"`
	To   string    `json:"to"`
	Rate float64   `json:"rate"`
}

type categoryResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Icon    string `json:"icon,omitempty"`
	Color   string `json:"color,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:      c.ID,
		Name:    c.Name,
		Type:    string(c.Type),
		Icon:    c.Icon,
		Color:   c.Color,
		GroupID: c.GroupID,
	}
}

type tagResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

func toTagResponse(t core.Tag) tagResponse {
	return tagResponse{ID: t.ID, Name: t.Name, Color: t.Color, GroupID: t.GroupID}
}

type walletResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Balance      string `json:"balance"`
	BalanceCents int64  `json:"balance_cents"`
	Currency     string `json:"currency"`
	Color        string `json:"color,omitempty"`
	Icon         string `json:"icon,omitempty"`
	GroupID      string `json:"group_id,omitempty"`
}

func toWalletResponse(w core.Wallet) walletResponse {
	return walletResponse{
		ID:           w.ID,
		Name:         w.Name,
		Type:         w.Type,
		Balance:      w.Balance.String(),
		BalanceCents: w.Balance.Cents,
		Currency:     w.Currency,
		Color:        w.Color,
		Icon:         w.Icon,
		GroupID:      w.GroupID,
	}
}
