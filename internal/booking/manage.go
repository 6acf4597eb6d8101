package booking

import (
	"context"
	"fmt"
	"slices"
	"time"

	"slotbook/internal/conflict"
	"slotbook/internal/metrics"
	"slotbook/internal/model"
)

// RescheduleRequest moves an active booking. Empty StaffID or ServiceID keep
// the current values.
type RescheduleRequest struct {
	BookingID string
	StaffID   string
	ServiceID string
	Date      time.Time
	Time      model.Clock
	ByOwner   bool
}

// Reschedule moves a booking to a new date and time. The booking's own
// interval is excluded from the conflict check so it can shift by less than
// its duration.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (*model.Booking, error) {
	if req.BookingID == "" {
		return nil, model.Invalid("booking_id", "required")
	}
	if req.Date.IsZero() {
		return nil, model.Invalid("date", "required")
	}
	if !req.Time.Valid() {
		return nil, model.Invalid("time", "%d is outside 00:00-23:59", int(req.Time))
	}

	release, err := s.acquire(ctx, "booking:"+req.BookingID)
	if err != nil {
		return nil, err
	}
	defer s.release(release, "booking:"+req.BookingID)

	b, err := s.bookings.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if !b.Active() {
		return nil, fmt.Errorf("%w: cannot reschedule %s booking", ErrInvalidTransition, b.Status)
	}

	staffID := firstNonEmpty(req.StaffID, b.StaffID)
	serviceID := firstNonEmpty(req.ServiceID, b.ServiceID)
	business, staff, service, err := s.loadCatalog(ctx, b.BusinessID, staffID, serviceID)
	if err != nil {
		return nil, err
	}

	date := model.Day(req.Date)
	if err := s.checkWindow(business, date, req.ByOwner); err != nil {
		return nil, err
	}

	duration := b.Duration
	if serviceID != b.ServiceID {
		duration = service.Duration
	}
	candidate := conflict.Candidate{Date: date, Time: req.Time, Duration: duration, StaffID: staffID}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	if err := s.verify(ctx, business, staff, candidate, b.ID, !req.ByOwner, "reschedule"); err != nil {
		return nil, err
	}

	b.StaffID = staffID
	b.ServiceID = serviceID
	b.Duration = duration
	b.Date = date
	b.Time = req.Time
	if err := s.bookings.UpdateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}

	s.logger.Info().
		Str("booking_id", b.ID).
		Str("date", model.FormatDate(b.Date)).
		Str("time", b.Time.String()).
		Msg("booking rescheduled")
	s.notify(model.NotifyBookingRescheduled, b, business, service)
	return b, nil
}

// Cancel cancels an active booking. Clients cannot cancel once the start is
// closer than the business cancellation limit; owners always can.
func (s *Service) Cancel(ctx context.Context, id string, byOwner bool) (*model.Booking, error) {
	return s.transition(ctx, id, model.ActiveStatuses, model.StatusCancelled, model.NotifyBookingCancelled,
		func(b *model.Booking, business *model.Business) error {
			if byOwner {
				return nil
			}
			limit := business.Policy.CancellationHoursLimit
			if limit <= 0 {
				return nil
			}
			loc := business.Location()
			if b.StartsAt(loc).Sub(s.now().In(loc)) < time.Duration(limit)*time.Hour {
				return fmt.Errorf("%w: cancellations close %d hours before the appointment", ErrCancellationWindow, limit)
			}
			return nil
		})
}

// Approve confirms a pending booking.
func (s *Service) Approve(ctx context.Context, id string) (*model.Booking, error) {
	return s.transition(ctx, id, []model.BookingStatus{model.StatusPendingApproval}, model.StatusConfirmed, model.NotifyBookingApproved, nil)
}

// Reject cancels a pending booking.
func (s *Service) Reject(ctx context.Context, id string) (*model.Booking, error) {
	return s.transition(ctx, id, []model.BookingStatus{model.StatusPendingApproval}, model.StatusCancelled, model.NotifyBookingRejected, nil)
}

// Complete marks a confirmed booking as done.
func (s *Service) Complete(ctx context.Context, id string) (*model.Booking, error) {
	return s.transition(ctx, id, []model.BookingStatus{model.StatusConfirmed}, model.StatusCompleted, "", nil)
}

func (s *Service) transition(
	ctx context.Context,
	id string,
	from []model.BookingStatus,
	to model.BookingStatus,
	kind model.NotificationKind,
	check func(b *model.Booking, business *model.Business) error,
) (*model.Booking, error) {
	if id == "" {
		return nil, model.Invalid("booking_id", "required")
	}

	release, err := s.acquire(ctx, "booking:"+id)
	if err != nil {
		return nil, err
	}
	defer s.release(release, "booking:"+id)

	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if !slices.Contains(from, b.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}

	business, err := s.schedules.GetBusiness(ctx, b.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("get business: %w", err)
	}
	if check != nil {
		if err := check(b, business); err != nil {
			return nil, err
		}
	}

	prev := b.Status
	b.Status = to
	if err := s.bookings.UpdateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	metrics.IncStatusChange(string(to))
	s.logger.Info().Str("booking_id", b.ID).Str("from", string(prev)).Str("to", string(to)).Msg("booking status changed")

	if kind != "" {
		service, err := s.schedules.GetService(ctx, b.ServiceID)
		if err != nil {
			s.logger.Warn().Err(err).Str("service_id", b.ServiceID).Msg("notification without service name")
		}
		s.notify(kind, b, business, service)
	}
	return b, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
