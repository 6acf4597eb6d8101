// Package booking runs the booking flow: fetch fresh data, compute slots,
// lock, re-verify, decide status, write and notify.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"slotbook/internal/alternatives"
	"slotbook/internal/approval"
	"slotbook/internal/conflict"
	"slotbook/internal/lock"
	"slotbook/internal/metrics"
	"slotbook/internal/model"
	"slotbook/internal/recurring"
	"slotbook/internal/schedule"
	"slotbook/internal/slots"
)

// BookingStore is the single source of truth for occupied time.
type BookingStore interface {
	FilterBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	GetBookingByKey(ctx context.Context, key string) (*model.Booking, error)
	UpdateBooking(ctx context.Context, b *model.Booking) error
}

// ScheduleProvider supplies businesses, staff, services and overrides.
type ScheduleProvider interface {
	GetBusiness(ctx context.Context, id string) (*model.Business, error)
	GetStaff(ctx context.Context, id string) (*model.Staff, error)
	GetService(ctx context.Context, id string) (*model.Service, error)
	ListServices(ctx context.Context, businessID string) ([]model.Service, error)
	ListOverrides(ctx context.Context, businessID string, from, to time.Time) ([]model.ScheduleOverride, error)
}

// RecurringStore persists recurring rules.
type RecurringStore interface {
	CreateRecurring(ctx context.Context, r *model.RecurringAppointment) error
	GetRecurring(ctx context.Context, id string) (*model.RecurringAppointment, error)
	UpdateRecurring(ctx context.Context, r *model.RecurringAppointment) error
}

// Notifier is the fire-and-forget notification sink.
type Notifier interface {
	Notify(n model.Notification)
}

// Options tunes the service.
type Options struct {
	Slots slots.Options
	// MinAdvance hides same-day slots starting sooner than now+MinAdvance.
	MinAdvance         time.Duration
	DefaultHorizonDays int
	Alternatives       alternatives.Options
}

// Service orchestrates the booking flow.
type Service struct {
	bookings  BookingStore
	schedules ScheduleProvider
	rules     RecurringStore
	notifier  Notifier
	locker    lock.Locker

	gen          *slots.Generator
	finder       *alternatives.Finder
	materializer *recurring.Materializer
	opts         Options
	logger       *zerolog.Logger
	now          func() time.Time
}

// catalogSource lets the alternative finder read through the same stores.
type catalogSource struct {
	ScheduleProvider
	BookingStore
}

// NewService creates a booking service.
func NewService(
	bookings BookingStore,
	schedules ScheduleProvider,
	rules RecurringStore,
	notifier Notifier,
	locker lock.Locker,
	opts Options,
	logger *zerolog.Logger,
) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if locker == nil {
		locker = lock.NewMemoryLocker(lock.DefaultTTL)
	}
	if opts.DefaultHorizonDays <= 0 {
		opts.DefaultHorizonDays = recurring.DefaultHorizonDays
	}
	gen := slots.NewGenerator(opts.Slots)

	return &Service{
		bookings:     bookings,
		schedules:    schedules,
		rules:        rules,
		notifier:     notifier,
		locker:       locker,
		gen:          gen,
		finder:       alternatives.NewFinder(catalogSource{schedules, bookings}, gen, opts.Alternatives, logger),
		materializer: recurring.NewMaterializer(bookings, logger),
		opts:         opts,
		logger:       logger,
		now:          time.Now,
	}
}

// SlotQuery asks for the free start times of one staff member on one date.
type SlotQuery struct {
	BusinessID string
	StaffID    string
	ServiceID  string
	Date       time.Time
	// RescheduleBookingID excludes that booking's own interval.
	RescheduleBookingID string
	ByOwner             bool
}

// SlotResult is the answer to a SlotQuery.
type SlotResult struct {
	Date    time.Time     `json:"date"`
	Slots   []model.Clock `json:"slots"`
	Enabled bool          `json:"enabled"`
	// Degraded is set when a fetch failed and the result was emptied.
	Degraded     bool                 `json:"degraded,omitempty"`
	Alternatives *alternatives.Result `json:"alternatives,omitempty"`
}

func (q SlotQuery) validate() error {
	switch {
	case q.BusinessID == "":
		return model.Invalid("business_id", "required")
	case q.StaffID == "":
		return model.Invalid("staff_id", "required")
	case q.ServiceID == "":
		return model.Invalid("service_id", "required")
	case q.Date.IsZero():
		return model.Invalid("date", "required")
	}
	return nil
}

// AvailableSlots returns the bookable start times. Lookup errors for unknown
// ids are returned; other fetch failures degrade to an empty, flagged result.
// When nothing is free an advisory alternative search is attached.
func (s *Service) AvailableSlots(ctx context.Context, q SlotQuery) (*SlotResult, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	defer func() { metrics.ObserveSlotGeneration(time.Since(started).Seconds()) }()

	date := model.Day(q.Date)
	res := &SlotResult{Date: date, Slots: []model.Clock{}}

	business, staff, service, err := s.loadCatalog(ctx, q.BusinessID, q.StaffID, q.ServiceID)
	if err != nil {
		if isLookupError(err) {
			return nil, err
		}
		s.stale("catalog", err)
		res.Degraded = true
		return res, nil
	}

	if err := s.checkWindow(business, date, q.ByOwner); err != nil {
		return nil, err
	}

	day, err := s.resolveDay(ctx, business, staff, date)
	if err != nil {
		s.stale("overrides", err)
		res.Degraded = true
		return res, nil
	}
	res.Enabled = day.Enabled

	if day.Enabled {
		existing, err := s.bookings.FilterBookings(ctx, dayFilter(q.StaffID, date))
		if err != nil {
			s.stale("bookings", err)
			res.Degraded = true
			return res, nil
		}
		starts, err := s.gen.Generate(slots.Request{
			Shifts:           day.Shifts,
			Duration:         service.Duration,
			Bookings:         existing,
			ExcludeBookingID: q.RescheduleBookingID,
		})
		if err != nil {
			return nil, err
		}
		res.Slots = s.notPassed(business, date, starts)
	}

	if len(res.Slots) == 0 {
		today, minStart := s.earliest(business)
		alt := s.finder.Find(ctx, alternatives.Request{
			BusinessID: q.BusinessID,
			StaffID:    q.StaffID,
			ServiceID:  q.ServiceID,
			Date:       date,
			Today:      today,
			MinStart:   minStart,
		})
		if !alt.Empty() {
			res.Alternatives = &alt
		}
	}
	return res, nil
}

// SubmitRequest is a new booking attempt.
type SubmitRequest struct {
	BusinessID  string
	StaffID     string
	ServiceID   string
	ClientPhone string
	ClientName  string
	Date        time.Time
	Time        model.Clock
	Notes       string
	// BookedByOwner skips the approval rules and the offered-slot check.
	BookedByOwner bool
	// IdempotencyKey identifies one logical submission. A replay with the
	// same key returns the booking created the first time.
	IdempotencyKey string
}

func (r SubmitRequest) validate() error {
	switch {
	case r.BusinessID == "":
		return model.Invalid("business_id", "required")
	case r.StaffID == "":
		return model.Invalid("staff_id", "required")
	case r.ServiceID == "":
		return model.Invalid("service_id", "required")
	case model.NormalizePhone(r.ClientPhone) == "":
		return model.Invalid("client_phone", "required")
	case r.Date.IsZero():
		return model.Invalid("date", "required")
	case !r.Time.Valid():
		return model.Invalid("time", "%d is outside 00:00-23:59", int(r.Time))
	}
	return nil
}

func (r SubmitRequest) lockKey() string {
	if r.IdempotencyKey != "" {
		return "submit:" + r.IdempotencyKey
	}
	return fmt.Sprintf("submit:%s:%s:%s:%s:%s", r.BusinessID, r.StaffID, model.FormatDate(r.Date), r.Time, model.NormalizePhone(r.ClientPhone))
}

// Submit creates a booking. The store is re-read after the lock is taken so
// the conflict check never trusts the data the slots were shown from.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*model.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	date := model.Day(req.Date)

	if req.IdempotencyKey != "" {
		existing, err := s.bookings.GetBookingByKey(ctx, req.IdempotencyKey)
		if err == nil {
			s.logger.Info().Str("booking_id", existing.ID).Str("idempotency_key", req.IdempotencyKey).Msg("replayed submission")
			return existing, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("check idempotency key: %w", err)
		}
	}

	release, err := s.acquire(ctx, req.lockKey())
	if err != nil {
		return nil, err
	}
	defer s.release(release, req.lockKey())

	business, staff, service, err := s.loadCatalog(ctx, req.BusinessID, req.StaffID, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if err := s.checkWindow(business, date, req.BookedByOwner); err != nil {
		return nil, err
	}

	candidate := conflict.Candidate{Date: date, Time: req.Time, Duration: service.Duration, StaffID: staff.ID}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	if err := s.verify(ctx, business, staff, candidate, "", !req.BookedByOwner, "submit"); err != nil {
		return nil, err
	}

	decision := approval.Decision{Status: model.StatusConfirmed, Rule: approval.RuleAuto}
	history, err := s.bookings.FilterBookings(ctx, model.BookingFilter{
		BusinessID:  business.ID,
		ClientPhone: req.ClientPhone,
		Statuses:    []model.BookingStatus{model.StatusConfirmed, model.StatusCompleted},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch client history: %w", err)
	}
	input := approval.Input{
		BusinessID:  business.ID,
		ClientPhone: req.ClientPhone,
		BookingDate: date,
		Policy:      business.Policy,
		Features:    business.Features,
		History:     history,
	}
	if req.BookedByOwner {
		decision.IsFirstBooking = approval.IsFirstBooking(input)
	} else {
		decision = approval.Decide(input)
	}

	b := &model.Booking{
		ID:             uuid.NewString(),
		BusinessID:     business.ID,
		StaffID:        staff.ID,
		ServiceID:      service.ID,
		ClientPhone:    req.ClientPhone,
		ClientName:     req.ClientName,
		Date:           date,
		Time:           req.Time,
		Duration:       service.Duration,
		Status:         decision.Status,
		Notes:          req.Notes,
		IsFirstBooking: decision.IsFirstBooking,
		BookedByOwner:  req.BookedByOwner,
		IdempotencyKey: req.IdempotencyKey,
	}

	if err := s.bookings.CreateBooking(ctx, b); err != nil {
		if errors.Is(err, model.ErrDuplicate) && req.IdempotencyKey != "" {
			if existing, getErr := s.bookings.GetBookingByKey(ctx, req.IdempotencyKey); getErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	metrics.IncBookingCreated(string(b.Status))
	s.logger.Info().
		Str("booking_id", b.ID).
		Str("staff_id", b.StaffID).
		Str("date", model.FormatDate(b.Date)).
		Str("time", b.Time.String()).
		Str("status", string(b.Status)).
		Str("rule", string(decision.Rule)).
		Msg("booking created")

	kind := model.NotifyBookingCreated
	if b.Status == model.StatusPendingApproval {
		kind = model.NotifyBookingPending
	}
	s.notify(kind, b, business, service)
	return b, nil
}

// verify re-reads the staff member's bookings for the date and rejects the
// candidate when it overlaps one. With offeredOnly, the start must also be one
// of the generated slots.
func (s *Service) verify(
	ctx context.Context,
	business *model.Business,
	staff *model.Staff,
	c conflict.Candidate,
	excludeID string,
	offeredOnly bool,
	stage string,
) error {
	existing, err := s.bookings.FilterBookings(ctx, dayFilter(c.StaffID, c.Date))
	if err != nil {
		return fmt.Errorf("fetch bookings: %w", err)
	}

	hits := conflict.Find(c, existing, excludeID)
	if len(hits) == 0 && !offeredOnly {
		return nil
	}

	day, err := s.resolveDay(ctx, business, staff, c.Date)
	if err != nil {
		return fmt.Errorf("resolve schedule: %w", err)
	}
	var offered []model.Clock
	if day.Enabled {
		starts, err := s.gen.Generate(slots.Request{
			Shifts:           day.Shifts,
			Duration:         c.Duration,
			Bookings:         existing,
			ExcludeBookingID: excludeID,
		})
		if err != nil {
			return err
		}
		offered = s.notPassed(business, c.Date, starts)
	}

	if len(hits) > 0 {
		metrics.IncConflict(stage)
		s.logger.Warn().
			Str("staff_id", c.StaffID).
			Str("date", model.FormatDate(c.Date)).
			Str("time", c.Time.String()).
			Str("conflict_id", hits[0].ID).
			Msg("booking conflict")
		return &ConflictError{Conflicts: hits, Slots: offered}
	}
	if !slots.Contains(offered, c.Time) {
		return fmt.Errorf("%w: %s on %s", ErrNotBookable, c.Time, model.FormatDate(c.Date))
	}
	return nil
}

func (s *Service) loadCatalog(ctx context.Context, businessID, staffID, serviceID string) (*model.Business, *model.Staff, *model.Service, error) {
	business, err := s.schedules.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get business: %w", err)
	}
	staff, err := s.schedules.GetStaff(ctx, staffID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get staff: %w", err)
	}
	if staff.BusinessID != business.ID {
		return nil, nil, nil, model.Invalid("staff_id", "staff %s does not work at %s", staffID, businessID)
	}
	service, err := s.schedules.GetService(ctx, serviceID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get service: %w", err)
	}
	if service.BusinessID != business.ID {
		return nil, nil, nil, model.Invalid("service_id", "service %s is not offered by %s", serviceID, businessID)
	}
	if err := service.Validate(); err != nil {
		return nil, nil, nil, err
	}
	return business, staff, service, nil
}

func (s *Service) resolveDay(ctx context.Context, business *model.Business, staff *model.Staff, date time.Time) (schedule.Day, error) {
	overrides, err := s.schedules.ListOverrides(ctx, business.ID, date, date)
	if err != nil {
		return schedule.Day{}, err
	}
	return schedule.ResolveDay(date, *staff, *business, overrides), nil
}

// earliest returns the business-local date and the earliest start still
// bookable on it.
func (s *Service) earliest(business *model.Business) (time.Time, model.Clock) {
	now := s.now().In(business.Location())
	today := model.Day(now)

	at := now.Add(s.opts.MinAdvance)
	if at.Second() > 0 || at.Nanosecond() > 0 {
		at = at.Add(time.Minute)
	}
	if !model.Day(at).Equal(today) {
		return today, model.Clock(model.MinutesPerDay)
	}
	return today, model.ClockOf(at)
}

func (s *Service) notPassed(business *model.Business, date time.Time, starts []model.Clock) []model.Clock {
	today, minStart := s.earliest(business)
	if !date.Equal(today) {
		return starts
	}
	return slots.NotBefore(starts, minStart)
}

func (s *Service) checkWindow(business *model.Business, date time.Time, byOwner bool) error {
	today, _ := s.earliest(business)
	if date.Before(today) {
		return fmt.Errorf("%w: %s is in the past", ErrOutsideBookingWindow, model.FormatDate(date))
	}
	if byOwner {
		return nil
	}
	p := business.Policy
	if p.BookingWindowEnabled && p.BookingWindowDays > 0 {
		if last := today.AddDate(0, 0, p.BookingWindowDays); date.After(last) {
			return fmt.Errorf("%w: bookings open until %s", ErrOutsideBookingWindow, model.FormatDate(last))
		}
	}
	return nil
}

func (s *Service) acquire(ctx context.Context, key string) (lock.ReleaseFunc, error) {
	release, err := s.locker.Acquire(ctx, key)
	if errors.Is(err, lock.ErrHeld) {
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	return release, nil
}

func (s *Service) release(release lock.ReleaseFunc, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := release(ctx); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("release lock")
	}
}

func (s *Service) notify(kind model.NotificationKind, b *model.Booking, business *model.Business, service *model.Service) {
	if s.notifier == nil {
		return
	}
	n := model.Notification{
		Kind:       kind,
		BookingID:  b.ID,
		Phone:      b.ClientPhone,
		ClientName: b.ClientName,
		Date:       b.Date,
		Time:       b.Time,
	}
	if business != nil {
		n.BusinessName = business.Name
	}
	if service != nil {
		n.ServiceName = service.Name
	}
	s.notifier.Notify(n)
}

func (s *Service) stale(source string, err error) {
	metrics.IncStaleData(source)
	s.logger.Warn().Err(&StaleDataWarning{Source: source, Err: err}).Msg("slot query degraded to empty result")
}

func dayFilter(staffID string, date time.Time) model.BookingFilter {
	return model.BookingFilter{StaffID: staffID, Date: date, Statuses: model.ActiveStatuses}
}

func isLookupError(err error) bool {
	return errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrValidation)
}
