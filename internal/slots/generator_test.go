package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotbook/internal/model"
)

func clock(s string) model.Clock { return model.MustClock(s) }

func shift(start, end string) model.Shift {
	return model.Shift{Start: clock(start), End: clock(end)}
}

func booking(id, at string, duration int, status model.BookingStatus) model.Booking {
	return model.Booking{ID: id, Time: clock(at), Duration: duration, Status: status}
}

func TestGenerateSlots(t *testing.T) {
	gen := NewGenerator(DefaultOptions())

	tests := []struct {
		name          string
		req           Request
		expectedCount int
		mustHave      []string
		mustNotHave   []string
	}{
		{
			name: "full day no bookings",
			req: Request{
				Shifts:   []model.Shift{shift("09:00", "17:00")},
				Duration: 30,
			},
			expectedCount: 31, // 09:00 .. 16:30 every 15 minutes
			mustHave:      []string{"09:00", "16:30"},
			mustNotHave:   []string{"16:45"},
		},
		{
			name: "split shift",
			req: Request{
				Shifts:   []model.Shift{shift("09:00", "10:00"), shift("14:00", "15:00")},
				Duration: 60,
			},
			expectedCount: 2,
			mustHave:      []string{"09:00", "14:00"},
		},
		{
			name: "service longer than shift",
			req: Request{
				Shifts:   []model.Shift{shift("09:00", "09:30")},
				Duration: 45,
			},
			expectedCount: 0,
		},
		{
			name: "cancelled and completed bookings never block",
			req: Request{
				Shifts:   []model.Shift{shift("09:00", "10:00")},
				Duration: 60,
				Bookings: []model.Booking{
					booking("a", "09:00", 60, model.StatusCancelled),
					booking("b", "09:00", 60, model.StatusCompleted),
				},
			},
			expectedCount: 1,
			mustHave:      []string{"09:00"},
		},
		{
			name: "pending booking blocks",
			req: Request{
				Shifts:   []model.Shift{shift("09:00", "10:00")},
				Duration: 60,
				Bookings: []model.Booking{booking("a", "09:00", 60, model.StatusPendingApproval)},
			},
			expectedCount: 0,
		},
		{
			name: "overlapping shifts do not duplicate starts",
			req: Request{
				Shifts:   []model.Shift{shift("09:00", "10:00"), shift("09:30", "10:30")},
				Duration: 30,
			},
			mustHave:      []string{"09:00", "09:15", "09:30", "09:45", "10:00"},
			expectedCount: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gen.Generate(tt.req)
			require.NoError(t, err)
			assert.Len(t, got, tt.expectedCount)

			labels := Labels(got)
			for _, want := range tt.mustHave {
				assert.Contains(t, labels, want)
			}
			for _, unwanted := range tt.mustNotHave {
				assert.NotContains(t, labels, unwanted)
			}
		})
	}
}

func TestGapBoundaryScenario(t *testing.T) {
	gen := NewGenerator(Options{Granularity: 15, MinUsableGap: 30})
	req := Request{
		Shifts:   []model.Shift{shift("09:00", "17:00")},
		Duration: 30,
		Bookings: []model.Booking{booking("x", "10:00", 60, model.StatusConfirmed)},
	}

	candidates, err := gen.Evaluate(req)
	require.NoError(t, err)

	byStart := make(map[string]Reason)
	for _, c := range candidates {
		byStart[c.Start.String()] = c.Reason
	}

	assert.Equal(t, ReasonOK, byStart["09:00"], "gap after of exactly 30 is usable")
	assert.Equal(t, ReasonGapAfter, byStart["09:15"], "gap after of 15 is a sliver")
	assert.Equal(t, ReasonOK, byStart["09:30"], "touching the booking leaves no gap")
	assert.Equal(t, ReasonOverlap, byStart["09:45"])
	assert.Equal(t, ReasonOverlap, byStart["10:30"])
	assert.Equal(t, ReasonOK, byStart["11:00"], "touching the booking end")
	assert.Equal(t, ReasonGapBefore, byStart["11:15"])
	assert.Equal(t, ReasonOK, byStart["11:30"])
}

func TestGeneratedSlotsNeverOverlapOrLeaveSlivers(t *testing.T) {
	const minGap = 30
	gen := NewGenerator(Options{Granularity: 5, MinUsableGap: minGap})
	bookings := []model.Booking{
		booking("a", "09:10", 25, model.StatusConfirmed),
		booking("b", "11:00", 90, model.StatusPendingApproval),
		booking("c", "14:05", 40, model.StatusConfirmed),
		booking("d", "15:00", 60, model.StatusCancelled),
	}

	for _, duration := range []int{15, 30, 45, 60, 75} {
		starts, err := gen.Generate(Request{
			Shifts:   []model.Shift{shift("08:00", "18:00")},
			Duration: duration,
			Bookings: bookings,
		})
		require.NoError(t, err)

		for _, s := range starts {
			end := s.Add(duration)
			for _, b := range bookings {
				if !b.Active() {
					continue
				}
				assert.False(t, Overlaps(s, end, b.Time, b.End()), "slot %s overlaps %s", s, b.ID)
				if b.End() <= s {
					gap := int(s - b.End())
					assert.True(t, gap == 0 || gap >= minGap || hasCloserBefore(bookings, s, b), "slot %s gap before %d", s, gap)
				}
				if b.Time >= end {
					gap := int(b.Time - end)
					assert.True(t, gap == 0 || gap >= minGap || hasCloserAfter(bookings, end, b), "slot %s gap after %d", s, gap)
				}
			}
		}
	}
}

func hasCloserBefore(bookings []model.Booking, start model.Clock, ref model.Booking) bool {
	for _, b := range bookings {
		if b.Active() && b.End() <= start && b.End() > ref.End() {
			return true
		}
	}
	return false
}

func hasCloserAfter(bookings []model.Booking, end model.Clock, ref model.Booking) bool {
	for _, b := range bookings {
		if b.Active() && b.Time >= end && b.Time < ref.Time {
			return true
		}
	}
	return false
}

func TestRescheduleExcludesOwnBooking(t *testing.T) {
	gen := NewGenerator(DefaultOptions())
	own := booking("own", "10:00", 60, model.StatusConfirmed)
	own.Date = model.MustDate("2024-06-10")

	req := Request{
		Shifts:   []model.Shift{shift("09:00", "17:00")},
		Duration: 60,
		Bookings: []model.Booking{own},
	}

	blocked, err := gen.Generate(req)
	require.NoError(t, err)
	assert.False(t, Contains(blocked, clock("10:00")))

	req.ExcludeBookingID = "own"
	free, err := gen.Generate(req)
	require.NoError(t, err)
	assert.True(t, Contains(free, clock("10:00")))
}

func TestGenerateValidation(t *testing.T) {
	gen := NewGenerator(DefaultOptions())

	_, err := gen.Generate(Request{Shifts: []model.Shift{shift("09:00", "17:00")}, Duration: 0})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = gen.Generate(Request{Shifts: []model.Shift{shift("09:00", "17:00")}, Duration: -30})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = gen.Generate(Request{Shifts: []model.Shift{shift("17:00", "09:00")}, Duration: 30})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestNewGeneratorDefaults(t *testing.T) {
	gen := NewGenerator(Options{})
	assert.Equal(t, DefaultGranularity, gen.Options().Granularity)
	assert.Equal(t, 0, gen.Options().MinUsableGap)
}

func TestToSlotInfo(t *testing.T) {
	infos := ToSlotInfo([]model.Clock{clock("09:00"), clock("09:15")}, 30)

	require.Len(t, infos, 2)
	assert.Equal(t, SlotInfo{Start: "09:00", End: "09:30"}, infos[0])
	assert.Equal(t, SlotInfo{Start: "09:15", End: "09:45"}, infos[1])
}

func TestNotBefore(t *testing.T) {
	starts := []model.Clock{clock("09:00"), clock("09:15"), clock("09:30")}
	assert.Equal(t, []model.Clock{clock("09:15"), clock("09:30")}, NotBefore(starts, clock("09:10")))
	assert.Len(t, starts, 3)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes  int
		expected string
	}{
		{30, "30 min"},
		{60, "1 hour"},
		{90, "1 h 30 min"},
		{120, "2 hours"},
		{150, "2 h 30 min"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.minutes))
		})
	}
}
