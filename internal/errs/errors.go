package errs

import (
	"errors"
	"fmt"
)

// Sentinels shared by the store, service and handler layers.
var (
	ErrNotFound  = errors.New("not_found")
	ErrInvalid   = errors.New("invalid")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
	ErrPartial   = errors.New("partial_failure")
)

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError covers both missing rows and rows owned by another user.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// PartialFailure reports a batch where some rows were written and some were not.
type PartialFailure struct {
	Op        string
	Attempted int
	Failed    int
	Causes    []string
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%s: %d of %d rows failed", e.Op, e.Failed, e.Attempted)
}

func (e *PartialFailure) Unwrap() error { return ErrPartial }

// Conflict wraps err so that errors.Is(err, ErrConflict) holds.
func Conflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}

// InconsistencyWarning reports settled rows that unsettle found still tied to a marker
// outside its absorbed list, and reopened. It is a result, not an error.
type InconsistencyWarning struct {
	MarkerID string `json:"marker_id"`
	Repaired int    `json:"repaired"`
}
