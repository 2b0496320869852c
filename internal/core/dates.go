package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the textual form of a Date in storage, JSON and query strings.
const DateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty returns true if the date is zero (for backward compatibility with optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

func (d Date) IsBefore(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) IsAfter(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool    { return d.Time.Equal(o.Time) }

// AddDays moves the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// AddMonthsClamped moves the date by the given number of calendar months and
// places it on anchorDay, clamped to the last day of the target month.
// A non-positive anchorDay means the date's own day.
func (d Date) AddMonthsClamped(months, anchorDay int) Date {
	if anchorDay <= 0 {
		anchorDay = d.Day()
	}
	idx := d.Month() - 1 + months
	year := d.Year() + idx/12
	idx %= 12
	if idx < 0 {
		idx += 12
		year--
	}
	month := idx + 1
	day := anchorDay
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MinDate returns the earlier of a and b.
func MinDate(a, b Date) Date {
	if b.IsBefore(a) {
		return b
	}
	return a
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
