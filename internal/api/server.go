// Package api serves the booking service over JSON HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/booking"
	"slotbook/internal/export"
	"slotbook/internal/metrics"
	"slotbook/internal/model"
	"slotbook/internal/recurring"
)

const maxBodyBytes = 1 << 20

// BookingService is the part of booking.Service the API exposes.
type BookingService interface {
	AvailableSlots(ctx context.Context, q booking.SlotQuery) (*booking.SlotResult, error)
	Submit(ctx context.Context, req booking.SubmitRequest) (*model.Booking, error)
	Reschedule(ctx context.Context, req booking.RescheduleRequest) (*model.Booking, error)
	Cancel(ctx context.Context, id string, byOwner bool) (*model.Booking, error)
	Approve(ctx context.Context, id string) (*model.Booking, error)
	Reject(ctx context.Context, id string) (*model.Booking, error)
	Complete(ctx context.Context, id string) (*model.Booking, error)
	CreateRecurring(ctx context.Context, req booking.RecurringRequest) (*model.RecurringAppointment, *recurring.Report, error)
	ExtendRecurring(ctx context.Context, id string) (*model.RecurringAppointment, *recurring.Report, error)
	StopRecurring(ctx context.Context, id string) (*model.RecurringAppointment, error)
}

// Exporter writes booking workbooks.
type Exporter interface {
	Bookings(ctx context.Context, r export.Range, out io.Writer) (int, error)
}

// HTTPServer routes /api/v1 requests to the booking service.
type HTTPServer struct {
	server   *http.Server
	svc      BookingService
	exporter Exporter
	apiKey   string
	logger   *zerolog.Logger
}

// NewHTTPServer builds the server. An empty apiKey disables authentication.
func NewHTTPServer(port int, apiKey string, svc BookingService, exporter Exporter, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &HTTPServer{svc: svc, exporter: exporter, apiKey: apiKey, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/slots", s.handleSlots)
	mux.HandleFunc("POST /api/v1/bookings", s.handleSubmit)
	mux.HandleFunc("POST /api/v1/bookings/reschedule", s.handleReschedule)
	mux.HandleFunc("POST /api/v1/bookings/cancel", s.handleCancel)
	mux.HandleFunc("POST /api/v1/bookings/approve", s.handleTransition("approve", svc.Approve))
	mux.HandleFunc("POST /api/v1/bookings/reject", s.handleTransition("reject", svc.Reject))
	mux.HandleFunc("POST /api/v1/bookings/complete", s.handleTransition("complete", svc.Complete))
	mux.HandleFunc("GET /api/v1/bookings/export", s.handleExport)
	mux.HandleFunc("POST /api/v1/recurring", s.handleCreateRecurring)
	mux.HandleFunc("POST /api/v1/recurring/extend", s.handleExtendRecurring)
	mux.HandleFunc("POST /api/v1/recurring/stop", s.handleStopRecurring)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.withAuth(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler with authentication applied.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "missing or invalid API key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

type conflictResponse struct {
	Error     string   `json:"error"`
	Conflicts int      `json:"conflicts"`
	Slots     []string `json:"slots"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, booking.ErrOutsideBookingWindow):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrConflict), errors.Is(err, booking.ErrNotBookable),
		errors.Is(err, booking.ErrInvalidTransition), errors.Is(err, model.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, booking.ErrCancellationWindow):
		return http.StatusForbidden
	case errors.Is(err, booking.ErrInFlight):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// fail writes err and counts the request.
func (s *HTTPServer) fail(w http.ResponseWriter, endpoint string, err error) {
	code := statusFor(err)
	metrics.IncHTTP(endpoint, code)

	var conflictErr *booking.ConflictError
	if errors.As(err, &conflictErr) {
		writeJSON(w, code, conflictResponse{
			Error:     conflictErr.Error(),
			Conflicts: len(conflictErr.Conflicts),
			Slots:     labels(conflictErr.Slots),
		})
		return
	}

	if code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("endpoint", endpoint).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

func (s *HTTPServer) ok(w http.ResponseWriter, endpoint string, status int, v any) {
	metrics.IncHTTP(endpoint, status)
	writeJSON(w, status, v)
}
