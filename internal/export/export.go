// Package export writes owner-facing booking reports as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/model"
	"slotbook/internal/slots"
)

// Source reads the rows of a report.
type Source interface {
	FilterBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
	ListServices(ctx context.Context, businessID string) ([]model.Service, error)
}

// Range selects the bookings of one business between two dates, inclusive.
type Range struct {
	BusinessID string
	From       time.Time
	To         time.Time
}

// Validate checks the range.
func (r Range) Validate() error {
	switch {
	case r.BusinessID == "":
		return model.Invalid("business_id", "required")
	case r.From.IsZero() || r.To.IsZero():
		return model.Invalid("range", "from and to are required")
	case r.To.Before(r.From):
		return model.Invalid("range", "to %s is before from %s", model.FormatDate(r.To), model.FormatDate(r.From))
	}
	return nil
}

// Filename returns a download name such as "bookings_studio_2024-06-01_2024-06-30.xlsx".
func (r Range) Filename() string {
	return fmt.Sprintf("bookings_%s_%s_%s.xlsx", r.BusinessID, model.FormatDate(r.From), model.FormatDate(r.To))
}

var bookingColumns = []string{
	"Date", "Time", "End", "Duration", "Staff", "Service", "Client", "Phone",
	"Status", "First booking", "By owner", "Recurring", "Notes",
}

var statusOrder = []model.BookingStatus{
	model.StatusConfirmed, model.StatusPendingApproval, model.StatusCompleted, model.StatusCancelled,
}

// Exporter builds booking workbooks.
type Exporter struct {
	src    Source
	logger *zerolog.Logger
}

func NewExporter(src Source, logger *zerolog.Logger) *Exporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Exporter{src: src, logger: logger}
}

// Bookings writes a workbook with a "Bookings" sheet (one row per booking in
// date and time order) and a "Summary" sheet with counts per status.
func (e *Exporter) Bookings(ctx context.Context, r Range, out io.Writer) (int, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	bookings, err := e.src.FilterBookings(ctx, model.BookingFilter{
		BusinessID: r.BusinessID,
		DateFrom:   model.Day(r.From),
		DateTo:     model.Day(r.To),
	})
	if err != nil {
		return 0, fmt.Errorf("fetch bookings: %w", err)
	}

	names := make(map[string]string)
	services, err := e.src.ListServices(ctx, r.BusinessID)
	if err != nil {
		e.logger.Warn().Err(err).Str("business_id", r.BusinessID).Msg("export without service names")
	}
	for _, s := range services {
		names[s.ID] = s.Name
	}

	w := newSheetWriter()
	defer func() { _ = w.close() }()

	if err := w.addSheet("Bookings"); err != nil {
		return 0, err
	}
	if err := w.header(bookingColumns); err != nil {
		return 0, err
	}

	counts := make(map[model.BookingStatus]int)
	for _, b := range bookings {
		counts[b.Status]++
		service := names[b.ServiceID]
		if service == "" {
			service = b.ServiceID
		}
		row := []any{
			model.FormatDate(b.Date),
			b.Time.String(),
			b.End().String(),
			slots.FormatDuration(b.Duration),
			b.StaffID,
			service,
			b.ClientName,
			b.ClientPhone,
			string(b.Status),
			yesNo(b.IsFirstBooking),
			yesNo(b.BookedByOwner),
			yesNo(b.RecurringID != ""),
			b.Notes,
		}
		if err := w.write(row); err != nil {
			return 0, err
		}
	}

	if err := w.addSheet("Summary"); err != nil {
		return 0, err
	}
	if err := w.header([]string{"Status", "Count"}); err != nil {
		return 0, err
	}
	for _, s := range statusOrder {
		if err := w.write([]any{string(s), counts[s]}); err != nil {
			return 0, err
		}
	}
	if err := w.write([]any{"total", len(bookings)}); err != nil {
		return 0, err
	}

	if err := w.save(out); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}

	e.logger.Info().
		Str("business_id", r.BusinessID).
		Str("from", model.FormatDate(r.From)).
		Str("to", model.FormatDate(r.To)).
		Int("rows", len(bookings)).
		Msg("bookings exported")
	return len(bookings), nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
