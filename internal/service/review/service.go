// Package review processes answer submissions: it advances the session cursor
// and reschedules the answered card in one atomic step.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/domain"
)

// Progress reports the session's position after a successful submission.
type Progress struct {
	// CardsCompleted is the number of answered cards, including this one.
	CardsCompleted int
	// TotalCards is the length of the session's card sequence.
	TotalCards int
	// Complete is true when this submission answered the final card.
	Complete bool
	// State is the card's memory state after rescheduling.
	State *domain.MemoryState
	// Summary is non-nil only when Complete is true.
	Summary *domain.SessionSummary
}

// Processor accepts one rated answer at a time for an active session.
type Processor interface {
	// Submit records the student's rating for the card the session cursor
	// currently points at, reschedules the card through the memory model,
	// and advances the cursor. The memory-state write and the session write
	// commit or fail together.
	//
	// Returns:
	//   - (*Progress, nil): the submission was applied
	//   - (nil, ErrSessionNotFound): no session with that ID exists
	//   - (nil, ErrSessionClosed): the session is completed or abandoned
	//   - (nil, ErrOutOfSequence): itemID is not the card at the cursor, or a
	//     concurrent submission advanced the session first
	//   - (nil, ErrCardStateNotFound): the session references a card the
	//     student is not enrolled in
	//   - (nil, ErrConcurrentUpdateExceeded): optimistic retries ran out
	//   - (nil, domain.ErrInvalidRating): the rating is outside 1-4
	//
	// Whenever an error is returned, neither the session nor the card's
	// memory state has been modified by this call.
	Submit(
		ctx context.Context,
		sessionID uuid.UUID,
		itemID uuid.UUID,
		rating domain.Rating,
		elapsedSeconds int,
	) (*Progress, error)
}

// Common error types for the review processor
var (
	// ErrSessionNotFound indicates that no session with the given ID exists.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed indicates a submission against a completed or
	// abandoned session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrOutOfSequence indicates that the submitted item does not match the
	// card at the session cursor.
	ErrOutOfSequence = errors.New("submission out of sequence")

	// ErrCardStateNotFound indicates that the student has no memory state for
	// the submitted item.
	ErrCardStateNotFound = errors.New("card state not found")

	// ErrConcurrentUpdateExceeded indicates that the optimistic-concurrency
	// retry budget was exhausted without a successful write.
	ErrConcurrentUpdateExceeded = errors.New("concurrent update retries exceeded")
)

// ServiceError wraps errors from the review processor with additional
// context, so consumers can differentiate failure modes with errors.As
// instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "submit")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewSubmitError returns a new ServiceError for the submit operation.
func NewSubmitError(message string, err error) *ServiceError {
	return &ServiceError{
		Operation: "submit",
		Message:   message,
		Err:       err,
	}
}
