package core

// CategoryAmount is a converted total for one category.
type CategoryAmount struct {
	CategoryID string
	Name       string
	Type       CategoryType
	Amount     Money
}

// DailyAmount holds converted totals for a single day.
type DailyAmount struct {
	Date     Date
	Expenses Money
	Income   Money
}

// Summary is a report over a date range, expressed in one display currency.
type Summary struct {
	OwnerID       string
	Currency      string
	From          Date
	To            Date
	TotalExpenses Money
	TotalIncome   Money
	NetSavings    Money
	TotalBalance  Money
	ByCategory    []CategoryAmount
	Daily         []DailyAmount
	// Unconverted counts the entries summed at their raw amount because no
	// rate could be obtained for them.
	Unconverted int
}
