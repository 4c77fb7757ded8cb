// Package scheduler is the façade over the spaced-repetition core. The
// enclosing platform talks to this package only; enrollment, session
// composition, answer submission, and progress queries all route through it.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/domain"
	"github.com/revisely/scheduler/internal/service/review"
)

// SessionOptions tunes one session request. The zero value asks for the
// configured default card count, all topics, interleaved ordering.
type SessionOptions struct {
	// TargetCount is the desired number of cards; 0 uses the configured
	// default. The session may be shorter when fewer cards are due.
	TargetCount int

	// Topics restricts the session to the named topics. Empty means all.
	Topics []string

	// Sequential disables interleaving and presents cards in plain due
	// order.
	Sequential bool
}

// Service is the scheduler's public surface.
//
// Session and card errors are the review package's sentinels
// (review.ErrSessionNotFound, review.ErrSessionClosed,
// review.ErrCardStateNotFound); the façade and the processor share one
// vocabulary so callers match a single error set.
type Service interface {
	// Enroll creates memory states for the given items, due immediately.
	// Items unknown to the catalog are skipped with a warning; items the
	// student already holds are an idempotent no-op. Returns the number of
	// newly enrolled items.
	Enroll(ctx context.Context, studentID, courseID uuid.UUID, itemIDs []uuid.UUID) (int, error)

	// CreateSession composes a session from the student's due cards and
	// persists it. An empty due pool yields a session that is already
	// Completed, never an error.
	CreateSession(
		ctx context.Context,
		studentID, courseID uuid.UUID,
		opts SessionOptions,
	) (*domain.PracticeSession, error)

	// Submit records one rated answer for the card at the session cursor.
	// See review.Processor.Submit for the full contract.
	Submit(
		ctx context.Context,
		sessionID uuid.UUID,
		itemID uuid.UUID,
		rating domain.Rating,
		elapsedSeconds int,
	) (*review.Progress, error)

	// Abandon moves an Active session to Abandoned. Already-answered cards
	// keep their updated schedules; unanswered cards are untouched.
	Abandon(ctx context.Context, sessionID uuid.UUID) error

	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.PracticeSession, error)

	// RecentSessions returns a student's sessions for one course, newest
	// first.
	RecentSessions(
		ctx context.Context,
		studentID, courseID uuid.UUID,
		limit int,
	) ([]*domain.PracticeSession, error)

	// DueCount reports how many cards are due now plus lookaheadDays ahead.
	// Zero looks at the current moment only.
	DueCount(ctx context.Context, studentID, courseID uuid.UUID, lookaheadDays int) (int, error)

	// CardState returns the memory state for a (student, item) pair.
	CardState(ctx context.Context, studentID, itemID uuid.UUID) (*domain.MemoryState, error)

	// Retrievability predicts the probability that the student still recalls
	// the item as of the given time. Never-reviewed cards report 1.0.
	Retrievability(ctx context.Context, studentID, itemID uuid.UUID, asOf time.Time) (float64, error)

	// ResetCard wipes a card's scheduling state back to enrollment defaults:
	// lifecycle New, due immediately, history cleared.
	ResetCard(ctx context.Context, studentID, itemID uuid.UUID) error
}

// ServiceError wraps errors from the scheduler façade with the operation that
// failed, so consumers can differentiate failure modes with errors.As.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "enroll", "create_session")
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

// newServiceError creates a ServiceError for the given operation.
func newServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
