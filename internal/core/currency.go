package core

import (
	"fmt"
	"strings"
	"time"
)

// PivotCurrency is the base every snapshot is quoted against.
const PivotCurrency = "USD"

// SupportedCurrencies are the codes fetched into every rate snapshot.
var SupportedCurrencies = []string{"EUR", "GBP", "INR", "JPY"}

// ExchangeRateSnapshot holds, for one calendar date, the units of each
// supported currency per one unit of the pivot. Snapshots are immutable.
type ExchangeRateSnapshot struct {
	Date      Date
	Rates     map[string]float64
	CreatedAt time.Time
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCurrency checks for a three-letter alphabetic ISO code.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return nil
}

// IsSupportedCurrency reports whether code is the pivot or one of the fetched codes.
func IsSupportedCurrency(code string) bool {
	code = NormalizeCurrency(code)
	if code == PivotCurrency {
		return true
	}
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// Rate returns the units of code per pivot unit. The pivot itself is 1.
func (s ExchangeRateSnapshot) Rate(code string) (float64, bool) {
	code = NormalizeCurrency(code)
	if code == PivotCurrency {
		return 1, true
	}
	r, ok := s.Rates[code]
	if !ok || r <= 0 {
		return 0, false
	}
	return r, true
}

// Cross returns how many units of to one unit of from buys.
func (s ExchangeRateSnapshot) Cross(from, to string) (float64, bool) {
	fromRate, ok := s.Rate(from)
	if !ok {
		return 0, false
	}
	toRate, ok := s.Rate(to)
	if !ok {
		return 0, false
	}
	return toRate / fromRate, true
}

// IsComplete reports whether every supported currency has a usable rate.
func (s ExchangeRateSnapshot) IsComplete() bool {
	for _, c := range SupportedCurrencies {
		if _, ok := s.Rate(c); !ok {
			return false
		}
	}
	return true
}
