package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/domain"
)

// CardStateStore owns the durable memory-state record per (student, item)
// pair. All mutation flows through the review processor under the
// single-writer-per-key discipline; the optimistic version check is the only
// concurrency control.
type CardStateStore interface {
	// Insert persists a freshly enrolled memory state.
	// Returns ErrAlreadyEnrolled if a record already exists for the
	// (student, item) pair; enrollment treats that as an idempotent no-op.
	// Returns validation errors from the domain MemoryState if data is invalid.
	Insert(ctx context.Context, state *domain.MemoryState) error

	// Get retrieves the memory state for a (student, item) pair, including
	// its current version. Returns ErrMemoryStateNotFound if absent.
	Get(ctx context.Context, studentID, itemID uuid.UUID) (*domain.MemoryState, error)

	// Update overwrites the record identified by the state's (student, item)
	// key, but only while the stored version still equals priorVersion.
	// Returns ErrVersionConflict when the version has moved on, forcing the
	// caller to reread and retry; returns ErrMemoryStateNotFound if the
	// record does not exist. On success the state's Version is bumped to
	// priorVersion+1.
	Update(ctx context.Context, state *domain.MemoryState, priorVersion int64) error

	// ListDue returns the states due as of the given time for one student
	// and course, ordered by due time ascending with item ID as the
	// deterministic tiebreak. An empty topic filter means all topics; limit
	// <= 0 means no limit. An empty result is a valid outcome, not an error.
	ListDue(
		ctx context.Context,
		studentID, courseID uuid.UUID,
		asOf time.Time,
		topics []string,
		limit int,
	) ([]*domain.MemoryState, error)

	// CountDue counts the cards due as of the given time. Callers pass a
	// future asOf to look ahead.
	CountDue(ctx context.Context, studentID, courseID uuid.UUID, asOf time.Time) (int, error)

	// WithTx returns a CardStateStore bound to the provided transaction.
	// A nil transaction returns the store unchanged.
	WithTx(tx *sql.Tx) CardStateStore
}
