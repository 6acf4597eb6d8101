package model

import (
	"time"
)

// Shift is one contiguous block of working time within a day, [Start, End).
type Shift struct {
	Start Clock `json:"start" yaml:"start"`
	End   Clock `json:"end" yaml:"end"`
}

// Validate checks that the shift lies within one day and is non-empty.
func (s Shift) Validate() error {
	if !s.Start.Valid() {
		return Invalid("shift.start", "%d is outside 00:00-23:59", int(s.Start))
	}
	if !s.End.Valid() {
		return Invalid("shift.end", "%d is outside 00:00-23:59", int(s.End))
	}
	if s.Start >= s.End {
		return Invalid("shift", "start %s must be before end %s", s.Start, s.End)
	}
	return nil
}

// Length returns the shift length in minutes.
func (s Shift) Length() int {
	return int(s.End - s.Start)
}

// DayPlan is the working plan for one weekday.
//
// Start and End are the pre-shift-list storage shape and are only honoured
// when Shifts is empty.
type DayPlan struct {
	Enabled bool    `json:"enabled" yaml:"enabled"`
	Shifts  []Shift `json:"shifts,omitempty" yaml:"shifts,omitempty"`
	Start   *Clock  `json:"start,omitempty" yaml:"start,omitempty"`
	End     *Clock  `json:"end,omitempty" yaml:"end,omitempty"`
}

// WorkingHours maps weekday keys ("sunday".."saturday") to day plans.
type WorkingHours map[string]DayPlan

// Validate checks weekday keys and every shift.
func (w WorkingHours) Validate() error {
	for key, plan := range w {
		if !isWeekdayKey(key) {
			return Invalid("working_hours", "unknown weekday %q", key)
		}
		for _, s := range plan.Shifts {
			if err := s.Validate(); err != nil {
				return err
			}
		}
		if plan.Start != nil && plan.End != nil && len(plan.Shifts) == 0 {
			if err := (Shift{Start: *plan.Start, End: *plan.End}).Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Day returns the plan for a weekday and whether one is configured.
func (w WorkingHours) Day(d time.Weekday) (DayPlan, bool) {
	plan, ok := w[WeekdayKey(d)]
	return plan, ok
}

// Clone returns a deep copy.
func (w WorkingHours) Clone() WorkingHours {
	if w == nil {
		return nil
	}
	out := make(WorkingHours, len(w))
	for k, v := range w {
		cp := v
		cp.Shifts = append([]Shift(nil), v.Shifts...)
		out[k] = cp
	}
	return out
}

func isWeekdayKey(key string) bool {
	for _, k := range WeekdayKeys {
		if k == key {
			return true
		}
	}
	return false
}

// ScheduleOverride replaces the weekly schedule on one date, for one staff
// member or (StaffID empty) for the whole business.
type ScheduleOverride struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Date       time.Time `json:"date"`
	StaffID    string    `json:"staff_id,omitempty"`
	IsDayOff   bool      `json:"is_day_off"`
	Shifts     []Shift   `json:"shifts,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// AllStaff reports whether the override applies to every staff member.
func (o ScheduleOverride) AllStaff() bool {
	return o.StaffID == ""
}

// Validate checks override shifts.
func (o ScheduleOverride) Validate() error {
	if o.BusinessID == "" {
		return Invalid("business_id", "required")
	}
	if o.Date.IsZero() {
		return Invalid("date", "required")
	}
	for _, s := range o.Shifts {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Staff is a bookable staff member.
//
// When UsesBusinessHours is set, Schedule holds a copy of the business hours
// taken at creation/edit time rather than a live link.
type Staff struct {
	ID                string       `json:"id"`
	BusinessID        string       `json:"business_id"`
	Name              string       `json:"name"`
	Schedule          WorkingHours `json:"schedule,omitempty"`
	UsesBusinessHours bool         `json:"uses_business_hours"`
}

// Service is a bookable service with a fixed duration.
type Service struct {
	ID         string  `json:"id"`
	BusinessID string  `json:"business_id"`
	Name       string  `json:"name"`
	Duration   int     `json:"duration"`
	Price      float64 `json:"price"`
	Color      string  `json:"color,omitempty"`
}

// Validate checks the service duration.
func (s Service) Validate() error {
	if s.Duration <= 0 {
		return Invalid("service.duration", "must be positive, got %d", s.Duration)
	}
	if s.Duration > MinutesPerDay {
		return Invalid("service.duration", "longer than a day: %d", s.Duration)
	}
	return nil
}

// BusinessPolicy holds the booking rules configured by the owner.
type BusinessPolicy struct {
	// RequireApprovalForNewClients is nil when never set; only an explicit
	// false disables new-client approval.
	RequireApprovalForNewClients *bool `json:"require_approval_for_new_clients,omitempty"`
	CancellationHoursLimit       int   `json:"cancellation_hours_limit"`
	BookingWindowEnabled         bool  `json:"booking_window_enabled"`
	BookingWindowDays            int   `json:"booking_window_days"`
}

// NewClientApprovalRequired applies the "not explicitly false" rule.
func (p BusinessPolicy) NewClientApprovalRequired() bool {
	return p.RequireApprovalForNewClients == nil || *p.RequireApprovalForNewClients
}

// FeatureFlags are plan-level switches supplied by the subscription layer.
type FeatureFlags struct {
	NewClientApproval bool `json:"new_client_approval"`
}

// Business is a tenant.
type Business struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	WorkingHours WorkingHours   `json:"working_hours,omitempty"`
	Policy       BusinessPolicy `json:"policy"`
	Features     FeatureFlags   `json:"features"`
	Timezone     string         `json:"timezone,omitempty"`
}

// Location returns the business time zone, UTC when unset or unknown.
func (b Business) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
