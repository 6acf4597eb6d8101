package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"slotbook/internal/conflict"
	"slotbook/internal/metrics"
	"slotbook/internal/model"
)

// Result is the outcome of one occurrence.
type Result string

const (
	ResultCreated  Result = "created"
	ResultConflict Result = "conflict"
	ResultExisting Result = "existing"
	ResultFailed   Result = "failed"
)

// Occurrence is one materialised (or not) date of a rule.
type Occurrence struct {
	Date      time.Time `json:"date"`
	Result    Result    `json:"result"`
	BookingID string    `json:"booking_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Report collects per-date outcomes of a batch.
type Report struct {
	RuleID      string       `json:"rule_id"`
	Occurrences []Occurrence `json:"occurrences"`
}

func (r *Report) count(res Result) int {
	n := 0
	for _, o := range r.Occurrences {
		if o.Result == res {
			n++
		}
	}
	return n
}

// Succeeded counts created occurrences.
func (r *Report) Succeeded() int { return r.count(ResultCreated) }

// Failed counts occurrences whose store write or fetch failed.
func (r *Report) Failed() int { return r.count(ResultFailed) }

// Skipped counts occurrences not written because the slot was taken.
func (r *Report) Skipped() int { return r.count(ResultConflict) }

// LastDate returns the latest date that has a booking row, created now or before.
func (r *Report) LastDate() time.Time {
	var last time.Time
	for _, o := range r.Occurrences {
		if (o.Result == ResultCreated || o.Result == ResultExisting) && o.Date.After(last) {
			last = o.Date
		}
	}
	return last
}

// Err returns a *PartialFailure when any occurrence failed or was skipped.
func (r *Report) Err() error {
	if r.Failed() == 0 && r.Skipped() == 0 {
		return nil
	}
	return &PartialFailure{Succeeded: r.Succeeded(), Failed: r.Failed(), Skipped: r.Skipped()}
}

// PartialFailure reports a batch where some occurrences were not created.
type PartialFailure struct {
	Succeeded int
	Failed    int
	Skipped   int
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("recurring: %d created, %d failed, %d skipped on conflict", e.Succeeded, e.Failed, e.Skipped)
}

// Store is the slice of the booking store the materialiser needs.
type Store interface {
	FilterBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
}

// Materializer writes one booking per occurrence date.
type Materializer struct {
	store  Store
	logger *zerolog.Logger
	now    func() time.Time
}

// NewMaterializer creates a materializer.
func NewMaterializer(store Store, logger *zerolog.Logger) *Materializer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Materializer{store: store, logger: logger, now: time.Now}
}

// Materialize creates a confirmed, owner-booked row for every date. A failure
// on one date is logged and recorded; the remaining dates are still attempted.
// Dates already occupied by an active booking of the staff member are skipped.
func (m *Materializer) Materialize(ctx context.Context, rule model.RecurringAppointment, dates []time.Time) *Report {
	report := &Report{RuleID: rule.ID}

	for _, date := range dates {
		occ := m.one(ctx, rule, model.Day(date))
		metrics.IncRecurringOccurrence(string(occ.Result))
		report.Occurrences = append(report.Occurrences, occ)
	}

	if report.Failed() > 0 || report.Skipped() > 0 {
		m.logger.Warn().
			Str("rule_id", rule.ID).
			Int("created", report.Succeeded()).
			Int("failed", report.Failed()).
			Int("skipped", report.Skipped()).
			Msg("recurring batch finished with gaps")
	}
	return report
}

func (m *Materializer) one(ctx context.Context, rule model.RecurringAppointment, date time.Time) Occurrence {
	occ := Occurrence{Date: date}

	existing, err := m.store.FilterBookings(ctx, model.BookingFilter{
		BusinessID: rule.BusinessID,
		StaffID:    rule.StaffID,
		Date:       date,
		Statuses:   model.ActiveStatuses,
	})
	if err != nil {
		m.logger.Error().Err(err).Str("rule_id", rule.ID).Str("date", model.FormatDate(date)).Msg("fetch bookings for occurrence failed")
		occ.Result, occ.Error = ResultFailed, err.Error()
		return occ
	}

	candidate := conflict.Candidate{Date: date, Time: rule.Time, Duration: rule.Duration, StaffID: rule.StaffID}
	if hits := conflict.Find(candidate, existing, ""); len(hits) > 0 {
		if hits[0].RecurringID == rule.ID && hits[0].Time == rule.Time {
			occ.Result, occ.BookingID = ResultExisting, hits[0].ID
			return occ
		}
		occ.Result, occ.Error = ResultConflict, fmt.Sprintf("slot taken by booking %s", hits[0].ID)
		return occ
	}

	now := m.now()
	b := &model.Booking{
		ID:             uuid.NewString(),
		BusinessID:     rule.BusinessID,
		StaffID:        rule.StaffID,
		ServiceID:      rule.ServiceID,
		ClientPhone:    rule.ClientPhone,
		ClientName:     rule.ClientName,
		Date:           date,
		Time:           rule.Time,
		Duration:       rule.Duration,
		Status:         model.StatusConfirmed,
		Notes:          rule.Notes,
		IsFirstBooking: false,
		BookedByOwner:  true,
		RecurringID:    rule.ID,
		IdempotencyKey: OccurrenceKey(rule.ID, date),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.store.CreateBooking(ctx, b); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			occ.Result = ResultExisting
			return occ
		}
		m.logger.Error().Err(err).Str("rule_id", rule.ID).Str("date", model.FormatDate(date)).Msg("create occurrence failed")
		occ.Result, occ.Error = ResultFailed, err.Error()
		return occ
	}

	occ.Result, occ.BookingID = ResultCreated, b.ID
	return occ
}

// OccurrenceKey is the idempotency key of a rule's booking on a date.
func OccurrenceKey(ruleID string, date time.Time) string {
	return fmt.Sprintf("recurring:%s:%s", ruleID, model.FormatDate(date))
}
