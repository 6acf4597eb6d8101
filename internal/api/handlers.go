package api

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"slotbook/internal/booking"
	"slotbook/internal/export"
	"slotbook/internal/metrics"
	"slotbook/internal/model"
	"slotbook/internal/recurring"
	"slotbook/internal/slots"
)

// SlotsRequest is the body of POST /api/v1/slots.
type SlotsRequest struct {
	BusinessID          string `json:"business_id"`
	StaffID             string `json:"staff_id"`
	ServiceID           string `json:"service_id"`
	Date                string `json:"date"` // YYYY-MM-DD
	RescheduleBookingID string `json:"reschedule_booking_id,omitempty"`
	ByOwner             bool   `json:"by_owner,omitempty"`
}

// SlotsResponse lists free start times as "HH:MM".
type SlotsResponse struct {
	Date         string               `json:"date"`
	Enabled      bool                 `json:"enabled"`
	Degraded     bool                 `json:"degraded,omitempty"`
	Slots        []string             `json:"slots"`
	Alternatives *AlternativesPayload `json:"alternatives,omitempty"`
}

type AlternativesPayload struct {
	Services []ServiceAlternative `json:"services,omitempty"`
	Dates    []DateAlternative    `json:"dates,omitempty"`
}

type ServiceAlternative struct {
	ServiceID string `json:"service_id"`
	Name      string `json:"name"`
	Duration  int    `json:"duration"`
	Slots     int    `json:"slots"`
}

type DateAlternative struct {
	Date  string `json:"date"`
	Slots int    `json:"slots"`
}

// SubmitRequest is the body of POST /api/v1/bookings.
type SubmitRequest struct {
	BusinessID     string `json:"business_id"`
	StaffID        string `json:"staff_id"`
	ServiceID      string `json:"service_id"`
	ClientPhone    string `json:"client_phone"`
	ClientName     string `json:"client_name"`
	Date           string `json:"date"`
	Time           string `json:"time"` // HH:MM
	Notes          string `json:"notes,omitempty"`
	BookedByOwner  bool   `json:"booked_by_owner,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type RescheduleRequest struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	StaffID   string `json:"staff_id,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
	ByOwner   bool   `json:"by_owner,omitempty"`
}

type CancelRequest struct {
	ID      string `json:"id"`
	ByOwner bool   `json:"by_owner"`
}

type IDRequest struct {
	ID string `json:"id"`
}

type RecurringRequest struct {
	BusinessID  string `json:"business_id"`
	StaffID     string `json:"staff_id"`
	ServiceID   string `json:"service_id"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	DayOfWeek   int    `json:"day_of_week"` // 0 = Sunday
	Time        string `json:"time"`
	Frequency   string `json:"frequency"` // weekly | biweekly
	StartDate   string `json:"start_date,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// BookingResponse is a booking with wire-format date and time.
type BookingResponse struct {
	ID             string `json:"id"`
	BusinessID     string `json:"business_id"`
	StaffID        string `json:"staff_id"`
	ServiceID      string `json:"service_id"`
	ClientPhone    string `json:"client_phone"`
	ClientName     string `json:"client_name"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	End            string `json:"end"`
	Duration       int    `json:"duration"`
	Status         string `json:"status"`
	Notes          string `json:"notes,omitempty"`
	IsFirstBooking bool   `json:"is_first_booking"`
	BookedByOwner  bool   `json:"booked_by_owner"`
	RecurringID    string `json:"recurring_id,omitempty"`
}

type RuleResponse struct {
	ID              string `json:"id"`
	BusinessID      string `json:"business_id"`
	StaffID         string `json:"staff_id"`
	ServiceID       string `json:"service_id"`
	ClientName      string `json:"client_name"`
	ClientPhone     string `json:"client_phone"`
	DayOfWeek       int    `json:"day_of_week"`
	Time            string `json:"time"`
	Duration        int    `json:"duration"`
	Frequency       string `json:"frequency"`
	IsActive        bool   `json:"is_active"`
	LastBookingDate string `json:"last_booking_date,omitempty"`
}

type OccurrenceResponse struct {
	Date      string `json:"date"`
	Result    string `json:"result"`
	BookingID string `json:"booking_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ReportResponse struct {
	Created     int                  `json:"created"`
	Skipped     int                  `json:"skipped"`
	Failed      int                  `json:"failed"`
	Occurrences []OccurrenceResponse `json:"occurrences"`
}

type RecurringResponse struct {
	Rule   RuleResponse    `json:"rule"`
	Report *ReportResponse `json:"report,omitempty"`
}

// handleSlots returns free start times, with alternatives when there are none.
// POST /api/v1/slots
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	const endpoint = "slots"
	var req SlotsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}

	res, err := s.svc.AvailableSlots(r.Context(), booking.SlotQuery{
		BusinessID:          req.BusinessID,
		StaffID:             req.StaffID,
		ServiceID:           req.ServiceID,
		Date:                date,
		RescheduleBookingID: req.RescheduleBookingID,
		ByOwner:             req.ByOwner,
	})
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}

	resp := SlotsResponse{
		Date:     model.FormatDate(res.Date),
		Enabled:  res.Enabled,
		Degraded: res.Degraded,
		Slots:    labels(res.Slots),
	}
	if res.Alternatives != nil && !res.Alternatives.Empty() {
		alt := &AlternativesPayload{}
		for _, o := range res.Alternatives.Services {
			alt.Services = append(alt.Services, ServiceAlternative{ServiceID: o.ServiceID, Name: o.Name, Duration: o.Duration, Slots: o.Count})
		}
		for _, o := range res.Alternatives.Dates {
			alt.Dates = append(alt.Dates, DateAlternative{Date: model.FormatDate(o.Date), Slots: o.Count})
		}
		resp.Alternatives = alt
	}
	s.ok(w, endpoint, http.StatusOK, resp)
}

// handleSubmit creates a booking. The Idempotency-Key header is used when the
// body carries no key.
// POST /api/v1/bookings
func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const endpoint = "submit"
	var req SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	clock, err := parseClock(req.Time)
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}

	b, err := s.svc.Submit(r.Context(), booking.SubmitRequest{
		BusinessID:     req.BusinessID,
		StaffID:        req.StaffID,
		ServiceID:      req.ServiceID,
		ClientPhone:    req.ClientPhone,
		ClientName:     req.ClientName,
		Date:           date,
		Time:           clock,
		Notes:          req.Notes,
		BookedByOwner:  req.BookedByOwner,
		IdempotencyKey: key,
	})
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	s.ok(w, endpoint, http.StatusCreated, toBookingResponse(b))
}

// POST /api/v1/bookings/reschedule
func (s *HTTPServer) handleReschedule(w http.ResponseWriter, r *http.Request) {
	const endpoint = "reschedule"
	var req RescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	clock, err := parseClock(req.Time)
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}

	b, err := s.svc.Reschedule(r.Context(), booking.RescheduleRequest{
		BookingID: req.ID,
		StaffID:   req.StaffID,
		ServiceID: req.ServiceID,
		Date:      date,
		Time:      clock,
		ByOwner:   req.ByOwner,
	})
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	s.ok(w, endpoint, http.StatusOK, toBookingResponse(b))
}

// POST /api/v1/bookings/cancel
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	const endpoint = "cancel"
	var req CancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := s.svc.Cancel(r.Context(), req.ID, req.ByOwner)
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	s.ok(w, endpoint, http.StatusOK, toBookingResponse(b))
}

func (s *HTTPServer) handleTransition(
	endpoint string,
	apply func(ctx context.Context, id string) (*model.Booking, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IDRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		b, err := apply(r.Context(), req.ID)
		if err != nil {
			s.fail(w, endpoint, err)
			return
		}
		s.ok(w, endpoint, http.StatusOK, toBookingResponse(b))
	}
}

// handleExport streams an XLSX workbook.
// GET /api/v1/bookings/export?business_id=&from=&to=
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	const endpoint = "export"
	q := r.URL.Query()
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	to, err := parseDate("to", q.Get("to"))
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	rng := export.Range{BusinessID: q.Get("business_id"), From: from, To: to}

	var buf bytes.Buffer
	if _, err := s.exporter.Bookings(r.Context(), rng, &buf); err != nil {
		s.fail(w, endpoint, err)
		return
	}

	metrics.IncHTTP(endpoint, http.StatusOK)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+rng.Filename()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// POST /api/v1/recurring
func (s *HTTPServer) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	const endpoint = "recurring_create"
	var req RecurringRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	clock, err := parseClock(req.Time)
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	var start time.Time
	if req.StartDate != "" {
		if start, err = parseDate("start_date", req.StartDate); err != nil {
			s.fail(w, endpoint, err)
			return
		}
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		s.fail(w, endpoint, model.Invalid("day_of_week", "must be 0..6, got %d", req.DayOfWeek))
		return
	}

	rule, report, err := s.svc.CreateRecurring(r.Context(), booking.RecurringRequest{
		BusinessID:  req.BusinessID,
		StaffID:     req.StaffID,
		ServiceID:   req.ServiceID,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		DayOfWeek:   time.Weekday(req.DayOfWeek),
		Time:        clock,
		Frequency:   model.Frequency(req.Frequency),
		StartDate:   start,
		Notes:       req.Notes,
	})
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	s.ok(w, endpoint, http.StatusCreated, RecurringResponse{Rule: toRuleResponse(rule), Report: toReportResponse(report)})
}

// POST /api/v1/recurring/extend
func (s *HTTPServer) handleExtendRecurring(w http.ResponseWriter, r *http.Request) {
	const endpoint = "recurring_extend"
	var req IDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, report, err := s.svc.ExtendRecurring(r.Context(), req.ID)
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	s.ok(w, endpoint, http.StatusOK, RecurringResponse{Rule: toRuleResponse(rule), Report: toReportResponse(report)})
}

// POST /api/v1/recurring/stop
func (s *HTTPServer) handleStopRecurring(w http.ResponseWriter, r *http.Request) {
	const endpoint = "recurring_stop"
	var req IDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, err := s.svc.StopRecurring(r.Context(), req.ID)
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	s.ok(w, endpoint, http.StatusOK, RecurringResponse{Rule: toRuleResponse(rule)})
}

func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, model.Invalid(field, "required")
	}
	d, err := model.ParseDate(value)
	if err != nil {
		return time.Time{}, model.Invalid(field, "expected YYYY-MM-DD, got %q", value)
	}
	return d, nil
}

func parseClock(value string) (model.Clock, error) {
	c, err := model.ParseClock(value)
	if err != nil {
		return 0, model.Invalid("time", "expected HH:MM, got %q", value)
	}
	return c, nil
}

func labels(starts []model.Clock) []string {
	out := slots.Labels(starts)
	if out == nil {
		out = []string{}
	}
	return out
}

func toBookingResponse(b *model.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		BusinessID:     b.BusinessID,
		StaffID:        b.StaffID,
		ServiceID:      b.ServiceID,
		ClientPhone:    b.ClientPhone,
		ClientName:     b.ClientName,
		Date:           model.FormatDate(b.Date),
		Time:           b.Time.String(),
		End:            b.End().String(),
		Duration:       b.Duration,
		Status:         string(b.Status),
		Notes:          b.Notes,
		IsFirstBooking: b.IsFirstBooking,
		BookedByOwner:  b.BookedByOwner,
		RecurringID:    b.RecurringID,
	}
}

func toRuleResponse(r *model.RecurringAppointment) RuleResponse {
	resp := RuleResponse{
		ID:          r.ID,
		BusinessID:  r.BusinessID,
		StaffID:     r.StaffID,
		ServiceID:   r.ServiceID,
		ClientName:  r.ClientName,
		ClientPhone: r.ClientPhone,
		DayOfWeek:   int(r.DayOfWeek),
		Time:        r.Time.String(),
		Duration:    r.Duration,
		Frequency:   string(r.Frequency),
		IsActive:    r.IsActive,
	}
	if !r.LastBookingDate.IsZero() {
		resp.LastBookingDate = model.FormatDate(r.LastBookingDate)
	}
	return resp
}

func toReportResponse(rep *recurring.Report) *ReportResponse {
	if rep == nil {
		return nil
	}
	out := &ReportResponse{
		Created:     rep.Succeeded(),
		Skipped:     rep.Skipped(),
		Failed:      rep.Failed(),
		Occurrences: make([]OccurrenceResponse, 0, len(rep.Occurrences)),
	}
	for _, o := range rep.Occurrences {
		out.Occurrences = append(out.Occurrences, OccurrenceResponse{
			Date:      model.FormatDate(o.Date),
			Result:    string(o.Result),
			BookingID: o.BookingID,
			Error:     o.Error,
		})
	}
	return out
}
