// Package apperr holds the error taxonomy shared by the scheduler, its
// repositories and the HTTP handlers. Callers match with errors.Is.
package apperr

import "errors"

var (
	// ErrInvalidTimeOfDay reports an hour outside 0..23 or a minute outside 0..59.
	ErrInvalidTimeOfDay = errors.New("invalid time of day")

	// ErrNotFound reports a schedule or scan run that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateTrigger reports a second run for the same schedule and trigger date.
	ErrDuplicateTrigger = errors.New("schedule already fired for this date")

	// ErrAlreadyRunning reports that another scan run is in progress.
	ErrAlreadyRunning = errors.New("scan already running")

	// ErrInvalidState reports an operation on a run in the wrong lifecycle state.
	ErrInvalidState = errors.New("invalid run state")
)
