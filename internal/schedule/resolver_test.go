package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotbook/internal/model"
)

func shift(start, end string) model.Shift {
	return model.Shift{Start: model.MustClock(start), End: model.MustClock(end)}
}

func weekdays(plan model.DayPlan) model.WorkingHours {
	wh := model.WorkingHours{}
	for _, k := range model.WeekdayKeys {
		wh[k] = plan
	}
	return wh
}

func TestResolveDay(t *testing.T) {
	business := model.Business{ID: "biz"}
	staff := model.Staff{
		ID:         "anna",
		BusinessID: "biz",
		Schedule: weekdays(model.DayPlan{
			Enabled: true,
			Shifts:  []model.Shift{shift("09:00", "17:00")},
		}),
	}
	date := model.MustDate("2024-06-10")

	tests := []struct {
		name        string
		staff       model.Staff
		overrides   []model.ScheduleOverride
		wantEnabled bool
		wantShifts  []model.Shift
		wantSource  string
	}{
		{
			name:        "weekly schedule",
			staff:       staff,
			wantEnabled: true,
			wantShifts:  []model.Shift{shift("09:00", "17:00")},
			wantSource:  SourceStaffSchedule,
		},
		{
			name:  "staff override beats all-staff override",
			staff: staff,
			overrides: []model.ScheduleOverride{
				{BusinessID: "biz", Date: date, Shifts: []model.Shift{shift("09:00", "17:00")}},
				{BusinessID: "biz", Date: date, StaffID: "anna", Shifts: []model.Shift{shift("10:00", "12:00")}},
			},
			wantEnabled: true,
			wantShifts:  []model.Shift{shift("10:00", "12:00")},
			wantSource:  SourceStaffOverride,
		},
		{
			name:  "all-staff override beats weekly schedule",
			staff: staff,
			overrides: []model.ScheduleOverride{
				{BusinessID: "biz", Date: date, Shifts: []model.Shift{shift("12:00", "14:00")}},
			},
			wantEnabled: true,
			wantShifts:  []model.Shift{shift("12:00", "14:00")},
			wantSource:  SourceBusinessOverride,
		},
		{
			name:  "day off ignores shifts",
			staff: staff,
			overrides: []model.ScheduleOverride{
				{BusinessID: "biz", Date: date, StaffID: "anna", IsDayOff: true, Shifts: []model.Shift{shift("09:00", "17:00")}},
			},
			wantEnabled: false,
			wantSource:  SourceStaffOverride,
		},
		{
			name:  "override for another staff member is ignored",
			staff: staff,
			overrides: []model.ScheduleOverride{
				{BusinessID: "biz", Date: date, StaffID: "boris", IsDayOff: true},
			},
			wantEnabled: true,
			wantShifts:  []model.Shift{shift("09:00", "17:00")},
			wantSource:  SourceStaffSchedule,
		},
		{
			name:  "override on another date is ignored",
			staff: staff,
			overrides: []model.ScheduleOverride{
				{BusinessID: "biz", Date: date.AddDate(0, 0, 1), IsDayOff: true},
			},
			wantEnabled: true,
			wantShifts:  []model.Shift{shift("09:00", "17:00")},
			wantSource:  SourceStaffSchedule,
		},
		{
			name:  "override of another business is ignored",
			staff: staff,
			overrides: []model.ScheduleOverride{
				{BusinessID: "other", Date: date, IsDayOff: true},
			},
			wantEnabled: true,
			wantShifts:  []model.Shift{shift("09:00", "17:00")},
			wantSource:  SourceStaffSchedule,
		},
		{
			name:        "missing day entry is closed",
			staff:       model.Staff{ID: "anna", Schedule: model.WorkingHours{"tuesday": {Enabled: true, Shifts: []model.Shift{shift("09:00", "10:00")}}}},
			wantEnabled: false,
			wantSource:  SourceNone,
		},
		{
			name:        "disabled day ignores shifts",
			staff:       model.Staff{ID: "anna", Schedule: model.WorkingHours{"monday": {Enabled: false, Shifts: []model.Shift{shift("09:00", "10:00")}}}},
			wantEnabled: false,
			wantSource:  SourceStaffSchedule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := ResolveDay(date, tt.staff, business, tt.overrides)
			assert.Equal(t, tt.wantEnabled, day.Enabled)
			assert.Equal(t, tt.wantShifts, day.Shifts)
			assert.Equal(t, tt.wantSource, day.Source)
		})
	}
}

func TestResolveDayLegacyShape(t *testing.T) {
	start, end := model.MustClock("10:00"), model.MustClock("18:00")
	staff := model.Staff{
		ID:       "anna",
		Schedule: model.WorkingHours{"monday": {Enabled: true, Start: &start, End: &end}},
	}

	day := ResolveDay(model.MustDate("2024-06-10"), staff, model.Business{}, nil)
	require.True(t, day.Enabled)
	assert.Equal(t, []model.Shift{shift("10:00", "18:00")}, day.Shifts)
}

func TestResolveDayBusinessHoursFallback(t *testing.T) {
	business := model.Business{
		ID:           "biz",
		WorkingHours: weekdays(model.DayPlan{Enabled: true, Shifts: []model.Shift{shift("08:00", "12:00")}}),
	}
	staff := model.Staff{ID: "anna", UsesBusinessHours: true}

	day := ResolveDay(model.MustDate("2024-06-10"), staff, business, nil)
	require.True(t, day.Enabled)
	assert.Equal(t, SourceBusinessHours, day.Source)
	assert.Equal(t, []model.Shift{shift("08:00", "12:00")}, day.Shifts)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []model.Shift
		want []model.Shift
	}{
		{
			name: "overlapping shifts are unioned",
			in:   []model.Shift{shift("13:00", "18:00"), shift("09:00", "14:00")},
			want: []model.Shift{shift("09:00", "18:00")},
		},
		{
			name: "touching shifts are joined",
			in:   []model.Shift{shift("09:00", "12:00"), shift("12:00", "15:00")},
			want: []model.Shift{shift("09:00", "15:00")},
		},
		{
			name: "contained shift disappears",
			in:   []model.Shift{shift("09:00", "18:00"), shift("10:00", "11:00")},
			want: []model.Shift{shift("09:00", "18:00")},
		},
		{
			name: "split day stays split",
			in:   []model.Shift{shift("14:00", "18:00"), shift("09:00", "13:00")},
			want: []model.Shift{shift("09:00", "13:00"), shift("14:00", "18:00")},
		},
		{
			name: "inverted shift dropped",
			in:   []model.Shift{shift("18:00", "09:00")},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
