package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:00", 540, false},
		{"9:15", 555, false},
		{"23:59", 1439, false},
		{"00:00", 0, false},
		{"24:00", 0, true},
		{"12", 0, true},
		{"ab:00", 0, true},
		{"10:75", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestClockEncoding(t *testing.T) {
	type wrap struct {
		At Clock `json:"at" yaml:"at"`
	}

	data, err := json.Marshal(wrap{At: MustClock("10:30")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"10:30"}`, string(data))

	var fromJSON wrap
	require.NoError(t, json.Unmarshal([]byte(`{"at":"08:05"}`), &fromJSON))
	assert.Equal(t, NewClock(8, 5), fromJSON.At)

	var fromYAML wrap
	require.NoError(t, yaml.Unmarshal([]byte("at: \"17:45\"\n"), &fromYAML))
	assert.Equal(t, NewClock(17, 45), fromYAML.At)
}

func TestWeekStart(t *testing.T) {
	// 2024-06-12 is a Wednesday.
	assert.Equal(t, MustDate("2024-06-09"), WeekStart(MustDate("2024-06-12")))
	assert.Equal(t, MustDate("2024-06-09"), WeekStart(MustDate("2024-06-09")))
	assert.Equal(t, MustDate("2024-06-09"), WeekStart(MustDate("2024-06-15")))

	assert.True(t, SameWeek(MustDate("2024-06-10"), MustDate("2024-06-15")))
	assert.False(t, SameWeek(MustDate("2024-06-15"), MustDate("2024-06-16")))
}

func TestDayKeepsCalendarDate(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	local := time.Date(2024, 6, 10, 1, 30, 0, 0, loc)
	assert.Equal(t, "2024-06-10", FormatDate(Day(local)))
}

func TestShiftValidate(t *testing.T) {
	assert.NoError(t, Shift{Start: MustClock("09:00"), End: MustClock("17:00")}.Validate())

	err := Shift{Start: MustClock("17:00"), End: MustClock("09:00")}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "shift", verr.Field)

	assert.Error(t, Shift{Start: MustClock("09:00"), End: MustClock("09:00")}.Validate())
}

func TestWorkingHoursValidate(t *testing.T) {
	good := WorkingHours{
		"monday": {Enabled: true, Shifts: []Shift{{Start: 540, End: 1020}}},
	}
	assert.NoError(t, good.Validate())

	bad := WorkingHours{"funday": {Enabled: true}}
	assert.Error(t, bad.Validate())

	start, end := MustClock("18:00"), MustClock("10:00")
	legacy := WorkingHours{"friday": {Enabled: true, Start: &start, End: &end}}
	assert.Error(t, legacy.Validate())
}

func TestBookingValidate(t *testing.T) {
	base := Booking{
		BusinessID: "b1",
		StaffID:    "s1",
		ServiceID:  "svc",
		Date:       MustDate("2024-06-10"),
		Time:       MustClock("10:00"),
		Duration:   30,
		Status:     StatusConfirmed,
	}
	assert.NoError(t, base.Validate())

	negative := base
	negative.Duration = -5
	assert.ErrorIs(t, negative.Validate(), ErrValidation)

	late := base
	late.Time = MustClock("23:45")
	late.Duration = 30
	assert.Error(t, late.Validate())

	unknown := base
	unknown.Status = "archived"
	assert.Error(t, unknown.Validate())
}

func TestStatusActive(t *testing.T) {
	assert.True(t, StatusConfirmed.Active())
	assert.True(t, StatusPendingApproval.Active())
	assert.False(t, StatusCancelled.Active())
	assert.False(t, StatusCompleted.Active())
}

func TestNewClientApprovalRequired(t *testing.T) {
	no, yes := false, true
	assert.True(t, BusinessPolicy{}.NewClientApprovalRequired())
	assert.True(t, BusinessPolicy{RequireApprovalForNewClients: &yes}.NewClientApprovalRequired())
	assert.False(t, BusinessPolicy{RequireApprovalForNewClients: &no}.NewClientApprovalRequired())
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "15550102000", NormalizePhone("+1 (555) 010-2000"))
	assert.Equal(t, "", NormalizePhone(""))
}
