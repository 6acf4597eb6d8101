package booking

import (
	"errors"
	"fmt"

	"slotbook/internal/model"
)

var (
	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("slot is no longer available")
	// ErrInFlight is returned while the same submission is still being processed.
	ErrInFlight = errors.New("submission already in progress")
	// ErrCancellationWindow blocks client cancellations too close to the start.
	ErrCancellationWindow = errors.New("too late to cancel")
	// ErrInvalidTransition is returned when the booking status does not allow the action.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrOutsideBookingWindow is returned for past dates or dates beyond the booking window.
	ErrOutsideBookingWindow = errors.New("date outside booking window")
	// ErrNotBookable is returned when a client picks a time that is not offered.
	ErrNotBookable = errors.New("time is not an available slot")
)

// ConflictError reports that the chosen interval overlaps an active booking
// found when re-reading the store at submit time. Slots is the refreshed list
// the caller should show instead.
type ConflictError struct {
	Conflicts []model.Booking
	Slots     []model.Clock
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: overlaps %d active booking(s)", ErrConflict.Error(), len(e.Conflicts))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StaleDataWarning is logged when a collaborator fetch fails on a path that
// degrades to empty results.
type StaleDataWarning = model.StaleDataWarning
