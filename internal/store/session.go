package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/domain"
)

// SessionStore owns the durable practice-session record. Sessions are created
// by the scheduler façade, advanced one response at a time by the review
// processor, and finalized exactly once.
type SessionStore interface {
	// Create persists a new session.
	// Returns validation errors from the domain PracticeSession if data is
	// invalid; returns ErrDuplicate if the session ID already exists.
	Create(ctx context.Context, session *domain.PracticeSession) error

	// Get retrieves a session by ID. Returns ErrSessionNotFound if absent.
	Get(ctx context.Context, sessionID uuid.UUID) (*domain.PracticeSession, error)

	// Advance overwrites a session's mutable fields (cursor, responses,
	// status, activity and completion timestamps), but only while the stored
	// cursor still equals expectedCursor. Returns ErrCursorConflict when a
	// concurrent submission advanced the session first; returns
	// ErrSessionNotFound if the record does not exist.
	Advance(ctx context.Context, session *domain.PracticeSession, expectedCursor int) error

	// SetStatus moves an Active session to the given terminal status without
	// touching cursor or responses. Used by explicit abandonment and the
	// inactivity reaper. Returns ErrSessionNotFound if absent and
	// ErrSessionNotActive if the session already reached a terminal status;
	// terminal statuses are never overwritten.
	SetStatus(ctx context.Context, sessionID uuid.UUID, status domain.SessionStatus, at time.Time) error

	// ListRecent returns a student's sessions for one course ordered by
	// start time descending, newest first.
	ListRecent(ctx context.Context, studentID, courseID uuid.UUID, limit int) ([]*domain.PracticeSession, error)

	// ListInactive returns Active sessions whose last activity predates the
	// cutoff. The reaper abandons them out of band.
	ListInactive(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PracticeSession, error)

	// WithTx returns a SessionStore bound to the provided transaction.
	// A nil transaction returns the store unchanged.
	WithTx(tx *sql.Tx) SessionStore
}
