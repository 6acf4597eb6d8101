// Package conflict decides whether a proposed appointment collides with an
// active booking of the same staff member.
package conflict

import (
	"time"

	"slotbook/internal/model"
	"slotbook/internal/slots"
)

// Candidate is a proposed appointment.
type Candidate struct {
	Date     time.Time
	Time     model.Clock
	Duration int
	StaffID  string
}

// Validate rejects candidates that cannot be placed on a calendar.
func (c Candidate) Validate() error {
	switch {
	case c.StaffID == "":
		return model.Invalid("staff_id", "required")
	case c.Date.IsZero():
		return model.Invalid("date", "required")
	case !c.Time.Valid():
		return model.Invalid("time", "%d is outside 00:00-23:59", int(c.Time))
	case c.Duration <= 0:
		return model.Invalid("duration", "must be positive, got %d", c.Duration)
	}
	return nil
}

// FromBooking builds the candidate occupied by an existing booking.
func FromBooking(b model.Booking) Candidate {
	return Candidate{Date: b.Date, Time: b.Time, Duration: b.Duration, StaffID: b.StaffID}
}

// Find returns the active bookings of the candidate's staff member on the
// candidate's date whose interval overlaps it. excludeID, when set, is skipped.
func Find(c Candidate, bookings []model.Booking, excludeID string) []model.Booking {
	date := model.Day(c.Date)
	end := c.Time.Add(c.Duration)

	var hits []model.Booking
	for _, b := range bookings {
		if !b.Active() || b.StaffID != c.StaffID {
			continue
		}
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if !model.Day(b.Date).Equal(date) {
			continue
		}
		if slots.Overlaps(c.Time, end, b.Time, b.End()) {
			hits = append(hits, b)
		}
	}
	return hits
}

// HasConflict reports whether any active booking overlaps the candidate.
// It has no side effects, so repeated calls on the same input agree.
func HasConflict(c Candidate, bookings []model.Booking, excludeID string) bool {
	return len(Find(c, bookings, excludeID)) > 0
}
