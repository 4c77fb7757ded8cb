// Package postgres implements the store interfaces over PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/domain"
	"github.com/revisely/scheduler/internal/platform/logger"
	"github.com/revisely/scheduler/internal/store"
)

// PostgresCardStateStore implements the store.CardStateStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStateStore creates a new PostgreSQL implementation of the
// CardStateStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresCardStateStore(db store.DBTX, logger *slog.Logger) *PostgresCardStateStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCardStateStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_state_store")),
	}
}

// Ensure PostgresCardStateStore implements store.CardStateStore interface
var _ store.CardStateStore = (*PostgresCardStateStore)(nil)

// WithTx implements store.CardStateStore.WithTx.
func (s *PostgresCardStateStore) WithTx(tx *sql.Tx) store.CardStateStore {
	if tx == nil {
		return s
	}
	return &PostgresCardStateStore{
		db:     tx,
		logger: s.logger,
	}
}

// Insert implements store.CardStateStore.Insert.
// Returns store.ErrAlreadyEnrolled if a row already exists for the
// (student, item) pair.
func (s *PostgresCardStateStore) Insert(ctx context.Context, state *domain.MemoryState) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := state.Validate(); err != nil {
		log.Warn("memory state validation failed during insert",
			slog.String("error", err.Error()),
			slog.String("student_id", state.StudentID.String()),
			slog.String("item_id", state.ItemID.String()))
		return err
	}

	history, err := json.Marshal(state.ReviewHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal review history: %w", err)
	}

	query := `
		INSERT INTO card_states (
			student_id, item_id, course_id, topic,
			stability, difficulty, repetition_count, lapse_count, lifecycle,
			last_reviewed_at, due_at, review_history,
			total_reviews, correct_reviews, average_seconds,
			version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		state.StudentID,
		state.ItemID,
		state.CourseID,
		state.Topic,
		state.Stability,
		state.Difficulty,
		state.RepetitionCount,
		state.LapseCount,
		state.Lifecycle,
		nullableTime(state.LastReviewedAt),
		state.DueAt,
		history,
		state.TotalReviews,
		state.CorrectReviews,
		state.AverageSeconds,
		state.Version,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("memory state already exists",
				slog.String("student_id", state.StudentID.String()),
				slog.String("item_id", state.ItemID.String()))
			return store.ErrAlreadyEnrolled
		}
		log.Error("failed to insert memory state",
			slog.String("error", err.Error()),
			slog.String("student_id", state.StudentID.String()),
			slog.String("item_id", state.ItemID.String()))
		return MapError(err)
	}

	log.Debug("memory state inserted",
		slog.String("student_id", state.StudentID.String()),
		slog.String("item_id", state.ItemID.String()),
		slog.String("topic", state.Topic))
	return nil
}

// Get implements store.CardStateStore.Get.
// Returns store.ErrMemoryStateNotFound if the row does not exist.
func (s *PostgresCardStateStore) Get(
	ctx context.Context,
	studentID, itemID uuid.UUID,
) (*domain.MemoryState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT student_id, item_id, course_id, topic,
		       stability, difficulty, repetition_count, lapse_count, lifecycle,
		       last_reviewed_at, due_at, review_history,
		       total_reviews, correct_reviews, average_seconds,
		       version, created_at, updated_at
		FROM card_states
		WHERE student_id = $1 AND item_id = $2
	`

	state, err := scanMemoryState(s.db.QueryRowContext(ctx, query, studentID, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("memory state not found",
				slog.String("student_id", studentID.String()),
				slog.String("item_id", itemID.String()))
			return nil, store.ErrMemoryStateNotFound
		}
		log.Error("failed to get memory state",
			slog.String("error", err.Error()),
			slog.String("student_id", studentID.String()),
			slog.String("item_id", itemID.String()))
		return nil, MapError(err)
	}

	return state, nil
}

// Update implements store.CardStateStore.Update. The version predicate in the
// WHERE clause is the optimistic compare-and-set; a row that moved on matches
// nothing and the caller gets store.ErrVersionConflict.
func (s *PostgresCardStateStore) Update(
	ctx context.Context,
	state *domain.MemoryState,
	priorVersion int64,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := state.Validate(); err != nil {
		log.Warn("memory state validation failed during update",
			slog.String("error", err.Error()),
			slog.String("student_id", state.StudentID.String()),
			slog.String("item_id", state.ItemID.String()))
		return err
	}

	history, err := json.Marshal(state.ReviewHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal review history: %w", err)
	}

	query := `
		UPDATE card_states
		SET stability = $1, difficulty = $2, repetition_count = $3,
		    lapse_count = $4, lifecycle = $5, last_reviewed_at = $6,
		    due_at = $7, review_history = $8, total_reviews = $9,
		    correct_reviews = $10, average_seconds = $11,
		    version = version + 1, updated_at = $12
		WHERE student_id = $13 AND item_id = $14 AND version = $15
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		state.Stability,
		state.Difficulty,
		state.RepetitionCount,
		state.LapseCount,
		state.Lifecycle,
		nullableTime(state.LastReviewedAt),
		state.DueAt,
		history,
		state.TotalReviews,
		state.CorrectReviews,
		state.AverageSeconds,
		state.UpdatedAt,
		state.StudentID,
		state.ItemID,
		priorVersion,
	)
	if err != nil {
		log.Error("failed to update memory state",
			slog.String("error", err.Error()),
			slog.String("student_id", state.StudentID.String()),
			slog.String("item_id", state.ItemID.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the row is gone or its version moved on. One more read
		// tells them apart.
		var exists bool
		checkErr := s.db.QueryRowContext(
			ctx,
			`SELECT EXISTS (SELECT 1 FROM card_states WHERE student_id = $1 AND item_id = $2)`,
			state.StudentID, state.ItemID,
		).Scan(&exists)
		if checkErr != nil {
			return MapError(checkErr)
		}
		if !exists {
			return store.ErrMemoryStateNotFound
		}

		log.Debug("version conflict during memory state update",
			slog.String("student_id", state.StudentID.String()),
			slog.String("item_id", state.ItemID.String()),
			slog.Int64("prior_version", priorVersion))
		return store.ErrVersionConflict
	}

	state.Version = priorVersion + 1
	return nil
}

// ListDue implements store.CardStateStore.ListDue.
func (s *PostgresCardStateStore) ListDue(
	ctx context.Context,
	studentID, courseID uuid.UUID,
	asOf time.Time,
	topics []string,
	limit int,
) ([]*domain.MemoryState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT student_id, item_id, course_id, topic,
		       stability, difficulty, repetition_count, lapse_count, lifecycle,
		       last_reviewed_at, due_at, review_history,
		       total_reviews, correct_reviews, average_seconds,
		       version, created_at, updated_at
		FROM card_states
		WHERE student_id = $1 AND course_id = $2 AND due_at <= $3
	`
	args := []interface{}{studentID, courseID, asOf}

	if len(topics) > 0 {
		args = append(args, topics)
		query += fmt.Sprintf(" AND topic = ANY($%d)", len(args))
	}

	query += " ORDER BY due_at ASC, item_id ASC"

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query due cards",
			slog.String("error", err.Error()),
			slog.String("student_id", studentID.String()),
			slog.String("course_id", courseID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	states := []*domain.MemoryState{}
	for rows.Next() {
		state, err := scanMemoryState(rows)
		if err != nil {
			log.Error("failed to scan memory state row",
				slog.String("error", err.Error()))
			return nil, err
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	log.Debug("listed due cards",
		slog.String("student_id", studentID.String()),
		slog.String("course_id", courseID.String()),
		slog.Int("count", len(states)))
	return states, nil
}

// CountDue implements store.CardStateStore.CountDue.
func (s *PostgresCardStateStore) CountDue(
	ctx context.Context,
	studentID, courseID uuid.UUID,
	asOf time.Time,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM card_states
		WHERE student_id = $1 AND course_id = $2 AND due_at <= $3
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, studentID, courseID, asOf).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMemoryState reads one card_states row into a domain MemoryState.
func scanMemoryState(row rowScanner) (*domain.MemoryState, error) {
	var (
		state          domain.MemoryState
		lifecycle      string
		lastReviewedAt sql.NullTime
		history        []byte
	)

	err := row.Scan(
		&state.StudentID,
		&state.ItemID,
		&state.CourseID,
		&state.Topic,
		&state.Stability,
		&state.Difficulty,
		&state.RepetitionCount,
		&state.LapseCount,
		&lifecycle,
		&lastReviewedAt,
		&state.DueAt,
		&history,
		&state.TotalReviews,
		&state.CorrectReviews,
		&state.AverageSeconds,
		&state.Version,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	state.Lifecycle = domain.Lifecycle(lifecycle)
	if lastReviewedAt.Valid {
		state.LastReviewedAt = lastReviewedAt.Time
	}
	if err := json.Unmarshal(history, &state.ReviewHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal review history: %w", err)
	}
	if state.ReviewHistory == nil {
		state.ReviewHistory = []domain.ReviewRecord{}
	}

	return &state, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
