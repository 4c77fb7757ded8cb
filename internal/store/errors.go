package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic version of the entity-specific not found
	// errors below.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate of
	// a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrVersionConflict is returned when an optimistic write names a version
	// that no longer matches the stored record. Callers reread and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrCursorConflict is returned when a session update names an expected
	// cursor that no longer matches the stored session. The review processor
	// surfaces this as an out-of-sequence submission.
	ErrCursorConflict = errors.New("cursor conflict")

	// ErrSessionNotActive is returned when a status write targets a session
	// that has already reached a terminal status. Completed and Abandoned are
	// final; a session that finalized between a caller's read and its write
	// stays as it is.
	ErrSessionNotActive = errors.New("session not active")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails to
	// commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrMemoryStateNotFound indicates that no memory state exists for the
	// requested (student, item) pair.
	ErrMemoryStateNotFound = fmt.Errorf("%w: memory state", ErrNotFound)

	// ErrSessionNotFound indicates that the requested practice session does
	// not exist.
	ErrSessionNotFound = fmt.Errorf("%w: practice session", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrAlreadyEnrolled indicates that a memory state already exists for the
	// (student, item) pair. Enrollment treats this as an idempotent no-op.
	ErrAlreadyEnrolled = fmt.Errorf("%w: memory state", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError checks if the error is a version or cursor conflict, the
// two transient errors that callers may retry after rereading.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrCursorConflict)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "memory_state", "practice_session")
	Operation string // The operation that failed (e.g., "insert", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation,
// message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
