package model

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage form of calendar dates.
const DateLayout = "2006-01-02"

// Day strips the time of day from t. Calendar dates are always UTC midnight,
// taken from t's own year/month/day so that local dates do not shift.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// MustDate is ParseDate for literals known to be valid.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// WeekStart returns the Sunday that opens the calendar week containing date.
func WeekStart(date time.Time) time.Time {
	d := Day(date)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// SameWeek reports whether a and b fall in the same Sunday–Saturday week.
func SameWeek(a, b time.Time) bool {
	return WeekStart(a).Equal(WeekStart(b))
}

// DaysBetween returns the whole number of days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// WeekdayKey returns the working-hours key for a weekday ("sunday".."saturday").
func WeekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// WeekdayKeys lists the seven valid working-hours keys in Sunday-first order.
var WeekdayKeys = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
