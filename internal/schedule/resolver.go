// Package schedule resolves the effective working shifts of a staff member
// on a calendar date.
package schedule

import (
	"sort"
	"time"

	"slotbook/internal/model"
)

// Day is the effective plan for one date. Shifts are sorted, merged and
// non-overlapping; a disabled day never carries shifts.
type Day struct {
	Enabled bool
	Shifts  []model.Shift
	// Source tells where the plan came from: "staff_override",
	// "business_override", "staff_schedule", "business_hours" or "none".
	Source string
}

const (
	SourceStaffOverride    = "staff_override"
	SourceBusinessOverride = "business_override"
	SourceStaffSchedule    = "staff_schedule"
	SourceBusinessHours    = "business_hours"
	SourceNone             = "none"
)

// ResolveDay returns the working shifts of staff on date.
//
// Precedence: an override for (business, date, staff), then an all-staff
// override for (business, date), then the staff weekly schedule. A staff
// member flagged as using business hours whose own schedule is empty falls
// back to the business working hours.
func ResolveDay(date time.Time, staff model.Staff, business model.Business, overrides []model.ScheduleOverride) Day {
	date = model.Day(date)

	if o, ok := findOverride(date, staff, business.ID, overrides); ok {
		source := SourceBusinessOverride
		if !o.AllStaff() {
			source = SourceStaffOverride
		}
		if o.IsDayOff {
			return Day{Enabled: false, Source: source}
		}
		shifts := Normalize(o.Shifts)
		return Day{Enabled: len(shifts) > 0, Shifts: shifts, Source: source}
	}

	hours, source := staff.Schedule, SourceStaffSchedule
	if len(hours) == 0 && staff.UsesBusinessHours {
		hours, source = business.WorkingHours, SourceBusinessHours
	}

	plan, ok := hours.Day(date.Weekday())
	if !ok {
		return Day{Enabled: false, Source: SourceNone}
	}
	if !plan.Enabled {
		return Day{Enabled: false, Source: source}
	}

	shifts := Normalize(PlanShifts(plan))
	return Day{Enabled: len(shifts) > 0, Shifts: shifts, Source: source}
}

func findOverride(date time.Time, staff model.Staff, businessID string, overrides []model.ScheduleOverride) (model.ScheduleOverride, bool) {
	var (
		allStaff model.ScheduleOverride
		found    bool
	)
	for _, o := range overrides {
		if o.BusinessID != businessID || !model.Day(o.Date).Equal(date) {
			continue
		}
		if o.StaffID == staff.ID && staff.ID != "" {
			return o, true
		}
		if o.AllStaff() && !found {
			allStaff, found = o, true
		}
	}
	return allStaff, found
}

// PlanShifts returns the shift list of a day plan, reading the legacy
// start/end pair when no shift list is stored.
func PlanShifts(plan model.DayPlan) []model.Shift {
	if len(plan.Shifts) > 0 {
		return plan.Shifts
	}
	if plan.Start != nil && plan.End != nil {
		return []model.Shift{{Start: *plan.Start, End: *plan.End}}
	}
	return nil
}

// Normalize drops invalid shifts and merges overlapping or touching ones into
// their union, sorted by start.
func Normalize(shifts []model.Shift) []model.Shift {
	valid := make([]model.Shift, 0, len(shifts))
	for _, s := range shifts {
		if s.Validate() == nil {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Start == valid[j].Start {
			return valid[i].End < valid[j].End
		}
		return valid[i].Start < valid[j].Start
	})

	merged := []model.Shift{valid[0]}
	for _, s := range valid[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
