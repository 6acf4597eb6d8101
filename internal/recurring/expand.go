// Package recurring expands recurring appointment rules into dated
// occurrences and materialises them as independent bookings.
package recurring

import (
	"time"

	"slotbook/internal/model"
)

// DefaultHorizonDays bounds expansion when the business has no booking window.
const DefaultHorizonDays = 90

// Horizon returns the last date occurrences may be generated for.
func Horizon(today time.Time, policy model.BusinessPolicy, defaultDays int) time.Time {
	if defaultDays <= 0 {
		defaultDays = DefaultHorizonDays
	}
	days := defaultDays
	if policy.BookingWindowEnabled && policy.BookingWindowDays > 0 {
		days = policy.BookingWindowDays
	}
	return model.Day(today).AddDate(0, 0, days)
}

// Expand lists start, start+step, ... up to and including horizon.
func Expand(start time.Time, freq model.Frequency, horizon time.Time) ([]time.Time, error) {
	step := freq.StepDays()
	if step == 0 {
		return nil, model.Invalid("frequency", "unknown frequency %q", freq)
	}

	start, horizon = model.Day(start), model.Day(horizon)
	var dates []time.Time
	for d := start; !d.After(horizon); d = d.AddDate(0, 0, step) {
		dates = append(dates, d)
	}
	return dates, nil
}

// FirstOccurrence returns the first date on or after from that the rule
// falls on. Biweekly rules keep the parity of BiweeklyStartDate (aligned
// forward to the rule weekday); without an anchor the first matching weekday
// starts the cycle.
func FirstOccurrence(rule model.RecurringAppointment, from time.Time) time.Time {
	d := alignWeekday(model.Day(from), rule.DayOfWeek)
	if rule.Frequency != model.FrequencyBiweekly || rule.BiweeklyStartDate.IsZero() {
		return d
	}

	anchor := alignWeekday(model.Day(rule.BiweeklyStartDate), rule.DayOfWeek)
	if d.Before(anchor) {
		return anchor
	}
	if weeks := model.DaysBetween(anchor, d) / 7; weeks%2 != 0 {
		d = d.AddDate(0, 0, 7)
	}
	return d
}

// Occurrences returns the rule's dates from from through horizon.
func Occurrences(rule model.RecurringAppointment, from, horizon time.Time) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return Expand(FirstOccurrence(rule, from), rule.Frequency, horizon)
}

func alignWeekday(d time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, delta)
}
