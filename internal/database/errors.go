package database

import (
	"errors"
	"fmt"
)

var (
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrVenueNotFound          = errors.New("venue not found")
	ErrConcurrentModification = errors.New("reservation was modified concurrently")
	ErrNotifyTaskNotFound     = errors.New("notify task not found")
)

// ConflictError is returned when a candidate interval overlaps an
// active reservation on the same venue. It carries the blocking
// reservation for diagnostics.
type ConflictError struct {
	BlockingID   string
	BlockingCode string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("interval conflicts with active reservation %s", e.BlockingID)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
