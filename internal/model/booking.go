package model

import (
	"strings"
	"time"
	"unicode"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusConfirmed       BookingStatus = "confirmed"
	StatusPendingApproval BookingStatus = "pending_approval"
	StatusCancelled       BookingStatus = "cancelled"
	StatusCompleted       BookingStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusPendingApproval, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Active reports whether a booking in this status occupies calendar time.
func (s BookingStatus) Active() bool {
	return s == StatusConfirmed || s == StatusPendingApproval
}

// Booking is one appointment. Duration is a snapshot of the service duration
// at booking time.
type Booking struct {
	ID             string        `json:"id"`
	BusinessID     string        `json:"business_id"`
	StaffID        string        `json:"staff_id"`
	ServiceID      string        `json:"service_id"`
	ClientPhone    string        `json:"client_phone"`
	ClientName     string        `json:"client_name"`
	Date           time.Time     `json:"date"`
	Time           Clock         `json:"time"`
	Duration       int           `json:"duration"`
	Status         BookingStatus `json:"status"`
	Notes          string        `json:"notes,omitempty"`
	IsFirstBooking bool          `json:"is_first_booking"`
	BookedByOwner  bool          `json:"booked_by_owner"`
	RecurringID    string        `json:"recurring_id,omitempty"`
	IdempotencyKey string        `json:"-"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// End returns the exclusive end of the booking's interval.
func (b Booking) End() Clock {
	return b.Time.Add(b.Duration)
}

// Active reports whether the booking occupies calendar time.
func (b Booking) Active() bool {
	return b.Status.Active()
}

// StartsAt returns the absolute start time in loc.
func (b Booking) StartsAt(loc *time.Location) time.Time {
	y, m, d := b.Date.Date()
	return time.Date(y, m, d, b.Time.Hour(), b.Time.Minute(), 0, 0, loc)
}

// Validate checks the fields every stored booking must have.
func (b Booking) Validate() error {
	switch {
	case b.BusinessID == "":
		return Invalid("business_id", "required")
	case b.StaffID == "":
		return Invalid("staff_id", "required")
	case b.ServiceID == "":
		return Invalid("service_id", "required")
	case b.Date.IsZero():
		return Invalid("date", "required")
	case !b.Time.Valid():
		return Invalid("time", "%d is outside 00:00-23:59", int(b.Time))
	case b.Duration <= 0:
		return Invalid("duration", "must be positive, got %d", b.Duration)
	case int(b.End()) > MinutesPerDay:
		return Invalid("duration", "booking at %s for %d minutes crosses midnight", b.Time, b.Duration)
	case b.Status != "" && !b.Status.Valid():
		return Invalid("status", "unknown status %q", b.Status)
	}
	return nil
}

// BookingFilter selects bookings from a store. Zero fields do not filter.
type BookingFilter struct {
	BusinessID  string
	StaffID     string
	ClientPhone string
	Date        time.Time
	DateFrom    time.Time
	DateTo      time.Time
	Statuses    []BookingStatus
	Limit       int
}

// ActiveStatuses are the statuses that block calendar time.
var ActiveStatuses = []BookingStatus{StatusConfirmed, StatusPendingApproval}

// NormalizePhone keeps digits only so that "+1 (555) 010-2000" and
// "15550102000" compare equal.
func NormalizePhone(phone string) string {
	var sb strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
