package model

import "time"

// Frequency is the repeat interval of a recurring appointment.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
)

// StepDays returns the number of days between occurrences.
func (f Frequency) StepDays() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	}
	return 0
}

// RecurringAppointment is a rule that materialises into independent bookings.
// It is never consulted for conflict detection; only its booking rows are.
type RecurringAppointment struct {
	ID                string       `json:"id"`
	BusinessID        string       `json:"business_id"`
	ClientName        string       `json:"client_name"`
	ClientPhone       string       `json:"client_phone"`
	ServiceID         string       `json:"service_id"`
	StaffID           string       `json:"staff_id"`
	DayOfWeek         time.Weekday `json:"day_of_week"`
	Time              Clock        `json:"time"`
	Duration          int          `json:"duration"`
	Frequency         Frequency    `json:"frequency"`
	BiweeklyStartDate time.Time    `json:"biweekly_start_date,omitempty"`
	IsActive          bool         `json:"is_active"`
	LastBookingDate   time.Time    `json:"last_booking_date,omitempty"`
	Notes             string       `json:"notes,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Validate checks the rule.
func (r RecurringAppointment) Validate() error {
	switch {
	case r.BusinessID == "":
		return Invalid("business_id", "required")
	case r.StaffID == "":
		return Invalid("staff_id", "required")
	case r.ServiceID == "":
		return Invalid("service_id", "required")
	case r.ClientPhone == "":
		return Invalid("client_phone", "required")
	case r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday:
		return Invalid("day_of_week", "must be 0..6, got %d", r.DayOfWeek)
	case !r.Time.Valid():
		return Invalid("time", "%d is outside 00:00-23:59", int(r.Time))
	case r.Duration <= 0:
		return Invalid("duration", "must be positive, got %d", r.Duration)
	case r.Frequency.StepDays() == 0:
		return Invalid("frequency", "unknown frequency %q", r.Frequency)
	}
	return nil
}
