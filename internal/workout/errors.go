package workout

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTemplate is returned when a template has no exercises or an
	// exercise has no sets. No session is created.
	ErrEmptyTemplate = errors.New("template has no exercises")
	// ErrInvalidCursor is returned for out-of-range indices or a set record
	// whose status does not allow the operation.
	ErrInvalidCursor = errors.New("invalid set cursor")
	// ErrInvalidState is returned when an operation is not valid in the
	// session's current status.
	ErrInvalidState = errors.New("operation not valid in current state")
	// ErrInvalidInput is returned for negative reps, weights or durations.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBusy is returned when another mutation is in flight. Retry.
	ErrBusy = errors.New("session busy")
	// ErrNotFound is returned when the catalog has no such routine.
	ErrNotFound = errors.New("not found")
	// ErrSessionActive is returned when an owner already has a live session.
	ErrSessionActive = errors.New("a workout is already in progress")
	// ErrNoActiveSession is returned when an owner has nothing to resume.
	ErrNoActiveSession = errors.New("no workout in progress")
)

// StorageError reports a failed persistence call. The in-memory session is
// unaffected and remains authoritative.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
