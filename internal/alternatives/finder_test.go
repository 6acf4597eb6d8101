package alternatives

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotbook/internal/model"
	"slotbook/internal/slots"
)

type fakeSource struct {
	business    model.Business
	staff       model.Staff
	services    []model.Service
	overrides   []model.ScheduleOverride
	bookings    []model.Booking
	bookingsErr error
}

func (f *fakeSource) GetBusiness(_ context.Context, _ string) (*model.Business, error) {
	return &f.business, nil
}

func (f *fakeSource) GetStaff(_ context.Context, _ string) (*model.Staff, error) {
	return &f.staff, nil
}

func (f *fakeSource) ListServices(_ context.Context, _ string) ([]model.Service, error) {
	return f.services, nil
}

func (f *fakeSource) ListOverrides(_ context.Context, _ string, _, _ time.Time) ([]model.ScheduleOverride, error) {
	return f.overrides, nil
}

func (f *fakeSource) FilterBookings(_ context.Context, _ model.BookingFilter) ([]model.Booking, error) {
	return f.bookings, f.bookingsErr
}

func shift(start, end string) model.Shift {
	return model.Shift{Start: model.MustClock(start), End: model.MustClock(end)}
}

// Sunday to Tuesday work 09:00-11:00; Wednesday off.
func newSource() *fakeSource {
	hours := model.WorkingHours{
		"sunday":    {Enabled: true, Shifts: []model.Shift{shift("09:00", "11:00")}},
		"monday":    {Enabled: true, Shifts: []model.Shift{shift("09:00", "11:00")}},
		"tuesday":   {Enabled: true, Shifts: []model.Shift{shift("09:00", "11:00")}},
		"wednesday": {Enabled: false},
		"thursday":  {Enabled: true, Shifts: []model.Shift{shift("09:00", "11:00")}},
		"friday":    {Enabled: true, Shifts: []model.Shift{shift("09:00", "11:00")}},
		"saturday":  {Enabled: true, Shifts: []model.Shift{shift("09:00", "11:00")}},
	}
	return &fakeSource{
		business: model.Business{ID: "biz", Features: model.FeatureFlags{}},
		staff:    model.Staff{ID: "anna", BusinessID: "biz", Schedule: hours},
		services: []model.Service{
			{ID: "long", BusinessID: "biz", Name: "Colour", Duration: 120},
			{ID: "short", BusinessID: "biz", Name: "Trim", Duration: 30},
			{ID: "huge", BusinessID: "biz", Name: "Full day", Duration: 300},
		},
	}
}

func newTestFinder(src Source) *Finder {
	logger := zerolog.New(io.Discard)
	return NewFinder(src, slots.NewGenerator(slots.DefaultOptions()), Options{}, &logger)
}

func TestFindOtherServicesAndDates(t *testing.T) {
	src := newSource()
	// 2024-06-09 is a Sunday. One booking blocks the two-hour service that day only.
	src.bookings = []model.Booking{{
		ID: "b1", StaffID: "anna", Date: model.MustDate("2024-06-09"),
		Time: model.MustClock("09:00"), Duration: 30, Status: model.StatusConfirmed,
	}}

	res := newTestFinder(src).Find(context.Background(), Request{
		BusinessID: "biz",
		StaffID:    "anna",
		ServiceID:  "long",
		Date:       model.MustDate("2024-06-09"),
	})

	require.Len(t, res.Services, 1)
	assert.Equal(t, "short", res.Services[0].ServiceID)
	assert.Greater(t, res.Services[0].Count, 0)

	require.Len(t, res.Dates, 3)
	assert.Equal(t, model.MustDate("2024-06-10"), res.Dates[0].Date)
	assert.Equal(t, model.MustDate("2024-06-11"), res.Dates[1].Date)
	// Wednesday is skipped.
	assert.Equal(t, model.MustDate("2024-06-13"), res.Dates[2].Date)
	assert.Equal(t, 1, res.Dates[0].Count)
}

func TestFindRespectsBookingWindow(t *testing.T) {
	src := newSource()
	src.business.Policy = model.BusinessPolicy{BookingWindowEnabled: true, BookingWindowDays: 3}

	res := newTestFinder(src).Find(context.Background(), Request{
		BusinessID: "biz",
		StaffID:    "anna",
		ServiceID:  "long",
		Date:       model.MustDate("2024-06-09"),
		Today:      model.MustDate("2024-06-09"),
	})

	require.Len(t, res.Dates, 2)
	assert.Equal(t, model.MustDate("2024-06-11"), res.Dates[1].Date)
}

func TestFindSkipsDayOffOverride(t *testing.T) {
	src := newSource()
	src.overrides = []model.ScheduleOverride{{BusinessID: "biz", Date: model.MustDate("2024-06-10"), IsDayOff: true}}

	res := newTestFinder(src).Find(context.Background(), Request{
		BusinessID: "biz", StaffID: "anna", ServiceID: "long", Date: model.MustDate("2024-06-09"),
	})

	require.NotEmpty(t, res.Dates)
	assert.Equal(t, model.MustDate("2024-06-11"), res.Dates[0].Date)
}

func TestFindDegradesOnFetchError(t *testing.T) {
	src := newSource()
	src.bookingsErr = errors.New("store offline")

	res := newTestFinder(src).Find(context.Background(), Request{
		BusinessID: "biz", StaffID: "anna", ServiceID: "long", Date: model.MustDate("2024-06-09"),
	})

	assert.True(t, res.Empty())
}
