package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBadInput is returned for malformed input that cannot be defaulted.
	ErrBadInput = errors.New("bad input")
	// ErrUnauthorized is returned when no caller identity is present.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrBusy is returned when another request holds the caller's admission lock.
	ErrBusy = errors.New("busy")
	// ErrNotFound is returned when a session or its tables do not exist.
	ErrNotFound = errors.New("not found")
	// ErrBackendUnavailable marks a primary search failure. The resolver recovers from it.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrDuplicateTurn is returned when (session_id, turn_index) already exists.
	ErrDuplicateTurn = errors.New("duplicate turn")
)

// BusyError describes the lock holder that caused an ErrBusy.
type BusyError struct {
	OwnerRequestID    string
	ExpiresAt         time.Time
	RetryAfterSeconds int
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("busy: request %s holds the lock, retry after %ds", e.OwnerRequestID, e.RetryAfterSeconds)
}

// Unwrap lets errors.Is(err, ErrBusy) match.
func (e *BusyError) Unwrap() error {
	return ErrBusy
}
