package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by stores when an idempotency key was already used.
	ErrDuplicate = errors.New("duplicate submission")
)

// ValidationError reports malformed input rejected before any computation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StaleDataWarning wraps a collaborator fetch failure on an advisory path.
// Callers log it and carry on with empty results.
type StaleDataWarning struct {
	Source string
	Err    error
}

func (w *StaleDataWarning) Error() string {
	return fmt.Sprintf("stale data from %s: %v", w.Source, w.Err)
}

func (w *StaleDataWarning) Unwrap() error {
	return w.Err
}
