// Package approval decides whether a new booking is confirmed straight away
// or waits for the owner.
package approval

import (
	"time"

	"slotbook/internal/model"
)

// Rule names the rule that produced a decision.
type Rule string

const (
	RuleWeeklyLimit Rule = "weekly_limit"
	RuleNewClient   Rule = "new_client"
	RuleAuto        Rule = "auto_confirm"
)

// Input is everything the engine looks at.
type Input struct {
	BusinessID  string
	ClientPhone string
	BookingDate time.Time
	Policy      model.BusinessPolicy
	Features    model.FeatureFlags
	// History is the client's bookings at the business. Rows of other
	// businesses or other phones are ignored.
	History []model.Booking
	// ExcludeBookingID drops the booking being decided from History.
	ExcludeBookingID string
}

// Decision is the outcome plus the first-booking snapshot stored on the row.
type Decision struct {
	Status         model.BookingStatus
	IsFirstBooking bool
	Rule           Rule
}

// Decide applies the rules in order; the first match wins.
//
//  1. Another confirmed or completed booking in the same Sunday–Saturday week
//     sends the booking to approval.
//  2. A client with no confirmed or completed booking at all goes to approval
//     when the plan has new-client approval and the owner has not turned it off.
//  3. Otherwise the booking is confirmed.
func Decide(in Input) Decision {
	counted := countable(in)
	first := len(counted) == 0

	for _, b := range counted {
		if model.SameWeek(b.Date, in.BookingDate) {
			return Decision{Status: model.StatusPendingApproval, IsFirstBooking: first, Rule: RuleWeeklyLimit}
		}
	}

	if first && in.Features.NewClientApproval && in.Policy.NewClientApprovalRequired() {
		return Decision{Status: model.StatusPendingApproval, IsFirstBooking: true, Rule: RuleNewClient}
	}

	return Decision{Status: model.StatusConfirmed, IsFirstBooking: first, Rule: RuleAuto}
}

// IsFirstBooking reports whether the client has no confirmed or completed
// booking at the business.
func IsFirstBooking(in Input) bool {
	return len(countable(in)) == 0
}

func countable(in Input) []model.Booking {
	phone := model.NormalizePhone(in.ClientPhone)
	var out []model.Booking
	for _, b := range in.History {
		if b.Status != model.StatusConfirmed && b.Status != model.StatusCompleted {
			continue
		}
		if in.ExcludeBookingID != "" && b.ID == in.ExcludeBookingID {
			continue
		}
		if in.BusinessID != "" && b.BusinessID != in.BusinessID {
			continue
		}
		if phone != "" && model.NormalizePhone(b.ClientPhone) != phone {
			continue
		}
		out = append(out, b)
	}
	return out
}
