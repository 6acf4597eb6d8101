package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"slotbook/internal/model"
)

func past(id, date string, status model.BookingStatus) model.Booking {
	return model.Booking{
		ID:          id,
		BusinessID:  "biz",
		ClientPhone: "+1 555 0100",
		Date:        model.MustDate(date),
		Status:      status,
	}
}

func TestDecide(t *testing.T) {
	off := false
	enabled := model.FeatureFlags{NewClientApproval: true}

	tests := []struct {
		name      string
		date      string
		history   []model.Booking
		features  model.FeatureFlags
		policy    model.BusinessPolicy
		exclude   string
		want      model.BookingStatus
		wantRule  Rule
		wantFirst bool
	}{
		{
			// 2024-06-10 is a Monday, 2024-06-12 the Wednesday of the same week.
			name:     "weekly limit regardless of returning client",
			date:     "2024-06-12",
			history:  []model.Booking{past("a", "2024-06-10", model.StatusConfirmed), past("old", "2024-01-03", model.StatusCompleted)},
			want:     model.StatusPendingApproval,
			wantRule: RuleWeeklyLimit,
		},
		{
			name:     "weekly limit counts completed bookings",
			date:     "2024-06-15",
			history:  []model.Booking{past("a", "2024-06-09", model.StatusCompleted)},
			want:     model.StatusPendingApproval,
			wantRule: RuleWeeklyLimit,
		},
		{
			name:      "previous week does not count",
			date:      "2024-06-16",
			history:   []model.Booking{past("a", "2024-06-15", model.StatusConfirmed)},
			want:      model.StatusConfirmed,
			wantRule:  RuleAuto,
			wantFirst: false,
		},
		{
			name:      "pending booking in same week does not count",
			date:      "2024-06-12",
			history:   []model.Booking{past("a", "2024-06-10", model.StatusPendingApproval)},
			features:  enabled,
			want:      model.StatusPendingApproval,
			wantRule:  RuleNewClient,
			wantFirst: true,
		},
		{
			name:      "first booking with approval feature",
			date:      "2024-06-12",
			features:  enabled,
			want:      model.StatusPendingApproval,
			wantRule:  RuleNewClient,
			wantFirst: true,
		},
		{
			name:      "first booking without feature",
			date:      "2024-06-12",
			want:      model.StatusConfirmed,
			wantRule:  RuleAuto,
			wantFirst: true,
		},
		{
			name:      "first booking with approval explicitly off",
			date:      "2024-06-12",
			features:  enabled,
			policy:    model.BusinessPolicy{RequireApprovalForNewClients: &off},
			want:      model.StatusConfirmed,
			wantRule:  RuleAuto,
			wantFirst: true,
		},
		{
			name:     "returning client auto confirmed",
			date:     "2024-06-12",
			history:  []model.Booking{past("a", "2024-05-01", model.StatusCompleted)},
			features: enabled,
			want:     model.StatusConfirmed,
			wantRule: RuleAuto,
		},
		{
			name:      "cancelled history keeps client new",
			date:      "2024-06-12",
			history:   []model.Booking{past("a", "2024-05-01", model.StatusCancelled)},
			features:  enabled,
			want:      model.StatusPendingApproval,
			wantRule:  RuleNewClient,
			wantFirst: true,
		},
		{
			name:      "booking being decided is excluded",
			date:      "2024-06-12",
			history:   []model.Booking{past("self", "2024-06-12", model.StatusConfirmed)},
			exclude:   "self",
			want:      model.StatusConfirmed,
			wantRule:  RuleAuto,
			wantFirst: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(Input{
				BusinessID:       "biz",
				ClientPhone:      "+15550100",
				BookingDate:      model.MustDate(tt.date),
				Policy:           tt.policy,
				Features:         tt.features,
				History:          tt.history,
				ExcludeBookingID: tt.exclude,
			})
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.wantRule, got.Rule)
			assert.Equal(t, tt.wantFirst, got.IsFirstBooking)
		})
	}
}

func TestDecideSecondBookingAfterFirstCompleted(t *testing.T) {
	in := Input{
		BusinessID:  "biz",
		ClientPhone: "+15550100",
		BookingDate: model.MustDate("2024-06-12"),
		Features:    model.FeatureFlags{NewClientApproval: true},
	}
	assert.Equal(t, model.StatusPendingApproval, Decide(in).Status)

	in.History = []model.Booking{past("first", "2024-06-03", model.StatusCompleted)}
	assert.Equal(t, model.StatusConfirmed, Decide(in).Status)
}

func TestDecideIgnoresOtherClientsAndBusinesses(t *testing.T) {
	other := past("x", "2024-06-10", model.StatusConfirmed)
	other.ClientPhone = "+15559999"
	elsewhere := past("y", "2024-06-10", model.StatusConfirmed)
	elsewhere.BusinessID = "other"

	got := Decide(Input{
		BusinessID:  "biz",
		ClientPhone: "+15550100",
		BookingDate: model.MustDate("2024-06-12"),
		History:     []model.Booking{other, elsewhere},
	})
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.True(t, got.IsFirstBooking)
}
