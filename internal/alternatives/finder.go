// Package alternatives looks for nearby availability when a requested
// date and service have no free slots.
package alternatives

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/metrics"
	"slotbook/internal/model"
	"slotbook/internal/schedule"
	"slotbook/internal/slots"
)

const (
	DefaultLookaheadDays = 14
	DefaultMaxDates      = 3
)

// Source is the read side of the schedule provider and booking store.
type Source interface {
	GetBusiness(ctx context.Context, id string) (*model.Business, error)
	GetStaff(ctx context.Context, id string) (*model.Staff, error)
	ListServices(ctx context.Context, businessID string) ([]model.Service, error)
	ListOverrides(ctx context.Context, businessID string, from, to time.Time) ([]model.ScheduleOverride, error)
	FilterBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

// Options bounds the search.
type Options struct {
	LookaheadDays int
	MaxDates      int
}

// Request describes the slot query that came back empty.
type Request struct {
	BusinessID string
	StaffID    string
	ServiceID  string
	Date       time.Time
	// Today caps the search with the business booking window.
	Today time.Time
	// MinStart, when the requested date is today, hides same-day slots that
	// already passed.
	MinStart model.Clock
}

// ServiceOption is another service with free slots on the requested date.
type ServiceOption struct {
	ServiceID string `json:"service_id"`
	Name      string `json:"name"`
	Duration  int    `json:"duration"`
	Count     int    `json:"count"`
}

// DateOption is a later date with free slots for the requested service.
type DateOption struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Result holds what was found. Both lists may be empty.
type Result struct {
	Services []ServiceOption `json:"services,omitempty"`
	Dates    []DateOption    `json:"dates,omitempty"`
}

// Empty reports whether nothing was found.
func (r Result) Empty() bool {
	return len(r.Services) == 0 && len(r.Dates) == 0
}

// Finder runs the advisory search.
type Finder struct {
	src    Source
	gen    *slots.Generator
	opts   Options
	logger *zerolog.Logger
}

// NewFinder creates a finder.
func NewFinder(src Source, gen *slots.Generator, opts Options, logger *zerolog.Logger) *Finder {
	if opts.LookaheadDays <= 0 {
		opts.LookaheadDays = DefaultLookaheadDays
	}
	if opts.MaxDates <= 0 {
		opts.MaxDates = DefaultMaxDates
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Finder{src: src, gen: gen, opts: opts, logger: logger}
}

// Find never fails: fetch errors are logged as stale data and whatever was
// found before the failure is returned.
func (f *Finder) Find(ctx context.Context, req Request) Result {
	var res Result
	date := model.Day(req.Date)

	business, err := f.src.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		f.stale("business", err)
		return res
	}
	staff, err := f.src.GetStaff(ctx, req.StaffID)
	if err != nil {
		f.stale("staff", err)
		return res
	}

	last := date.AddDate(0, 0, f.opts.LookaheadDays)
	if business.Policy.BookingWindowEnabled && business.Policy.BookingWindowDays > 0 && !req.Today.IsZero() {
		if limit := model.Day(req.Today).AddDate(0, 0, business.Policy.BookingWindowDays); limit.Before(last) {
			last = limit
		}
	}

	overrides, err := f.src.ListOverrides(ctx, req.BusinessID, date, last)
	if err != nil {
		f.stale("overrides", err)
		return res
	}
	bookings, err := f.src.FilterBookings(ctx, model.BookingFilter{
		BusinessID: req.BusinessID,
		StaffID:    req.StaffID,
		DateFrom:   date,
		DateTo:     last,
		Statuses:   model.ActiveStatuses,
	})
	if err != nil {
		f.stale("bookings", err)
		return res
	}

	services, err := f.src.ListServices(ctx, req.BusinessID)
	if err != nil {
		f.stale("services", err)
		return res
	}

	var requested *model.Service
	for i := range services {
		if services[i].ID == req.ServiceID {
			requested = &services[i]
		}
	}

	day := schedule.ResolveDay(date, *staff, *business, overrides)
	if day.Enabled {
		onDate := bookingsOn(bookings, date)
		minStart := model.Clock(0)
		if date.Equal(model.Day(req.Today)) {
			minStart = req.MinStart
		}
		for _, svc := range services {
			if svc.ID == req.ServiceID {
				continue
			}
			if n := f.count(day.Shifts, svc.Duration, onDate, minStart); n > 0 {
				res.Services = append(res.Services, ServiceOption{ServiceID: svc.ID, Name: svc.Name, Duration: svc.Duration, Count: n})
			}
		}
	}

	if requested == nil {
		return res
	}

	for d := date.AddDate(0, 0, 1); !d.After(last) && len(res.Dates) < f.opts.MaxDates; d = d.AddDate(0, 0, 1) {
		day := schedule.ResolveDay(d, *staff, *business, overrides)
		if !day.Enabled {
			continue
		}
		if n := f.count(day.Shifts, requested.Duration, bookingsOn(bookings, d), 0); n > 0 {
			res.Dates = append(res.Dates, DateOption{Date: d, Count: n})
		}
	}
	return res
}

func (f *Finder) count(shifts []model.Shift, duration int, bookings []model.Booking, minStart model.Clock) int {
	starts, err := f.gen.Generate(slots.Request{Shifts: shifts, Duration: duration, Bookings: bookings})
	if err != nil {
		f.logger.Debug().Err(err).Int("duration", duration).Msg("skip alternative")
		return 0
	}
	return len(slots.NotBefore(starts, minStart))
}

func (f *Finder) stale(source string, err error) {
	warn := &model.StaleDataWarning{Source: source, Err: err}
	metrics.IncStaleData(source)
	f.logger.Warn().Err(warn).Msg("alternative search degraded to empty result")
}

func bookingsOn(bookings []model.Booking, date time.Time) []model.Booking {
	var out []model.Booking
	for _, b := range bookings {
		if model.Day(b.Date).Equal(date) {
			out = append(out, b)
		}
	}
	return out
}
