package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slotbook/internal/model"
	"slotbook/internal/recurring"
)

// RecurringRequest creates a rule that repeats a client's appointment.
type RecurringRequest struct {
	BusinessID  string
	StaffID     string
	ServiceID   string
	ClientName  string
	ClientPhone string
	DayOfWeek   time.Weekday
	Time        model.Clock
	Frequency   model.Frequency
	// StartDate is the first date to consider; it defaults to today.
	StartDate time.Time
	Notes     string
}

// CreateRecurring stores the rule and materialises its occurrences up to the
// booking horizon. Occurrences blocked by other bookings are reported, not
// fatal; the rule is still returned.
func (s *Service) CreateRecurring(ctx context.Context, req RecurringRequest) (*model.RecurringAppointment, *recurring.Report, error) {
	business, _, service, err := s.loadCatalog(ctx, req.BusinessID, req.StaffID, req.ServiceID)
	if err != nil {
		return nil, nil, err
	}

	today, _ := s.earliest(business)
	from := s.upcoming(business, req.Time)
	if !req.StartDate.IsZero() && model.Day(req.StartDate).After(from) {
		from = model.Day(req.StartDate)
	}

	rule := &model.RecurringAppointment{
		ID:          uuid.NewString(),
		BusinessID:  business.ID,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		ServiceID:   service.ID,
		StaffID:     req.StaffID,
		DayOfWeek:   req.DayOfWeek,
		Time:        req.Time,
		Duration:    service.Duration,
		Frequency:   req.Frequency,
		IsActive:    true,
		Notes:       req.Notes,
	}
	if err := rule.Validate(); err != nil {
		return nil, nil, err
	}
	if int(rule.Time.Add(rule.Duration)) > model.MinutesPerDay {
		return nil, nil, model.Invalid("time", "%s plus %d minutes crosses midnight", rule.Time, rule.Duration)
	}
	if rule.Frequency == model.FrequencyBiweekly {
		rule.BiweeklyStartDate = recurring.FirstOccurrence(*rule, from)
	}

	if err := s.rules.CreateRecurring(ctx, rule); err != nil {
		return nil, nil, fmt.Errorf("create recurring: %w", err)
	}
	s.logger.Info().Str("rule_id", rule.ID).Str("frequency", string(rule.Frequency)).Msg("recurring rule created")

	report, err := s.materialize(ctx, rule, business, from, today)
	if err != nil {
		return rule, nil, err
	}
	return rule, report, nil
}

// ExtendRecurring materialises an active rule from the day after its last
// booking up to the current horizon. Running it twice creates nothing new.
func (s *Service) ExtendRecurring(ctx context.Context, id string) (*model.RecurringAppointment, *recurring.Report, error) {
	rule, err := s.rules.GetRecurring(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get recurring: %w", err)
	}
	if !rule.IsActive {
		return nil, nil, fmt.Errorf("%w: recurring rule %s is inactive", ErrInvalidTransition, id)
	}

	business, err := s.schedules.GetBusiness(ctx, rule.BusinessID)
	if err != nil {
		return nil, nil, fmt.Errorf("get business: %w", err)
	}

	today, _ := s.earliest(business)
	from := s.upcoming(business, rule.Time)
	if !rule.LastBookingDate.IsZero() {
		if next := rule.LastBookingDate.AddDate(0, 0, 1); next.After(from) {
			from = next
		}
	}

	report, err := s.materialize(ctx, rule, business, from, today)
	if err != nil {
		return rule, nil, err
	}
	return rule, report, nil
}

// StopRecurring deactivates a rule. Bookings already created stay.
func (s *Service) StopRecurring(ctx context.Context, id string) (*model.RecurringAppointment, error) {
	rule, err := s.rules.GetRecurring(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get recurring: %w", err)
	}
	if !rule.IsActive {
		return rule, nil
	}
	rule.IsActive = false
	if err := s.rules.UpdateRecurring(ctx, rule); err != nil {
		return nil, fmt.Errorf("update recurring: %w", err)
	}
	s.logger.Info().Str("rule_id", rule.ID).Msg("recurring rule stopped")
	return rule, nil
}

// upcoming returns the first date an occurrence at start may fall on:
// today while start is still bookable, tomorrow once it has passed.
func (s *Service) upcoming(business *model.Business, start model.Clock) time.Time {
	today, minStart := s.earliest(business)
	if start < minStart {
		return today.AddDate(0, 0, 1)
	}
	return today
}

func (s *Service) materialize(
	ctx context.Context,
	rule *model.RecurringAppointment,
	business *model.Business,
	from, today time.Time,
) (*recurring.Report, error) {
	horizon := recurring.Horizon(today, business.Policy, s.opts.DefaultHorizonDays)
	dates, err := recurring.Occurrences(*rule, from, horizon)
	if err != nil {
		return nil, err
	}

	report := s.materializer.Materialize(ctx, *rule, dates)

	if last := report.LastDate(); last.After(rule.LastBookingDate) {
		rule.LastBookingDate = last
		if err := s.rules.UpdateRecurring(ctx, rule); err != nil {
			s.logger.Error().Err(err).Str("rule_id", rule.ID).Msg("update last booking date")
		}
	}
	if err := report.Err(); err != nil {
		s.logger.Warn().Err(err).Str("rule_id", rule.ID).Msg("recurring occurrences incomplete")
	}
	return report, nil
}
