// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for stepping a recurrence forward.
// Each frequency (daily, weekly, monthly, yearly) has its own stepper that
// knows how to move a date by one period.

package services

import (
	"fmt"
	"sync"

	"conti/internal/core"
)

// OccurrenceStepper moves a date forward by interval periods of one frequency.
type OccurrenceStepper interface {
	// Next returns the occurrence interval periods after date. anchorDay is
	// the day-of-month month-based steppers land on; a non-positive value
	// means date's own day.
	Next(date core.Date, interval, anchorDay int) core.Date
}

// DailyStepper adds interval days.
type DailyStepper struct{}

func (DailyStepper) Next(date core.Date, interval, _ int) core.Date {
	return date.AddDays(interval)
}

// WeeklyStepper adds interval weeks.
type WeeklyStepper struct{}

func (WeeklyStepper) Next(date core.Date, interval, _ int) core.Date {
	return date.AddDays(7 * interval)
}

// MonthlyStepper adds interval calendar months, clamped to the month end.
type MonthlyStepper struct{}

func (MonthlyStepper) Next(date core.Date, interval, anchorDay int) core.Date {
	return date.AddMonthsClamped(interval, anchorDay)
}

// YearlyStepper adds interval years. Feb 29 lands on Feb 28 in common years.
type YearlyStepper struct{}

func (YearlyStepper) Next(date core.Date, interval, anchorDay int) core.Date {
	return date.AddMonthsClamped(12*interval, anchorDay)
}

var (
	stepperMu sync.RWMutex
	steppers  = map[core.RepetitionTypes]OccurrenceStepper{
		core.Daily:   DailyStepper{},
		core.Weekly:  WeeklyStepper{},
		core.Monthly: MonthlyStepper{},
		core.Yearly:  YearlyStepper{},
	}
)

// GetStepper returns the stepper registered for a frequency.
func GetStepper(frequency core.RepetitionTypes) (OccurrenceStepper, error) {
	stepperMu.RLock()
	defer stepperMu.RUnlock()
	s, ok := steppers[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, string(frequency))
	}
	return s, nil
}

// RegisterStepper adds or replaces the stepper for a frequency.
func RegisterStepper(frequency core.RepetitionTypes, s OccurrenceStepper) {
	stepperMu.Lock()
	defer stepperMu.Unlock()
	steppers[frequency] = s
}

// NextOccurrence returns the occurrence that follows date, using date's own
// day-of-month for month and year steps.
func NextOccurrence(date core.Date, frequency core.RepetitionTypes, interval int) (core.Date, error) {
	if interval < 1 {
		return core.Date{}, core.ErrInvalidInterval
	}
	s, err := GetStepper(frequency)
	if err != nil {
		return core.Date{}, err
	}
	return s.Next(date, interval, 0), nil
}

// NextRuleOccurrence returns the occurrence of rule that follows date. Month
// and year steps are anchored on the rule's start day so a series that starts
// on the 31st returns to the 31st after a shorter month.
func NextRuleOccurrence(rule core.RecurrenceRule, date core.Date) (core.Date, error) {
	if rule.Interval < 1 {
		return core.Date{}, core.ErrInvalidInterval
	}
	s, err := GetStepper(rule.Frequency)
	if err != nil {
		return core.Date{}, err
	}
	next := s.Next(date, rule.Interval, rule.StartDate.Day())
	if !next.IsAfter(date) {
		return core.Date{}, fmt.Errorf("stepper for %s did not advance past %s", rule.Frequency, date)
	}
	return next, nil
}
