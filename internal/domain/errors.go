package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or missing.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidStability is returned when a memory state carries a
	// non-positive stability. Stability must stay strictly positive.
	ErrInvalidStability = errors.New("stability must be greater than 0")

	// ErrInvalidDifficulty is returned when difficulty falls outside [1, 10].
	ErrInvalidDifficulty = errors.New("difficulty must be between 1 and 10")

	// ErrInvalidLifecycle is returned when a lifecycle value is not one of
	// new, learning, review, relearning.
	ErrInvalidLifecycle = errors.New("invalid lifecycle state")

	// ErrInvalidSessionStatus is returned when a session status is not one of
	// active, completed, abandoned.
	ErrInvalidSessionStatus = errors.New("invalid session status")

	// ErrCursorMismatch is returned when a session's cursor disagrees with
	// its recorded responses. The cursor must always equal len(responses).
	ErrCursorMismatch = errors.New("session cursor must equal number of responses")

	// ErrNegativeElapsed is returned when a review reports negative elapsed
	// time. Callers must surface it, never clamp.
	ErrNegativeElapsed = errors.New("elapsed time cannot be negative")
)
