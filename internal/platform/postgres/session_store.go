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

// PostgresSessionStore implements the store.SessionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionStore creates a new PostgreSQL implementation of the
// SessionStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresSessionStore(db store.DBTX, logger *slog.Logger) *PostgresSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

// Ensure PostgresSessionStore implements store.SessionStore interface
var _ store.SessionStore = (*PostgresSessionStore)(nil)

// WithTx implements store.SessionStore.WithTx.
func (s *PostgresSessionStore) WithTx(tx *sql.Tx) store.SessionStore {
	if tx == nil {
		return s
	}
	return &PostgresSessionStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.SessionStore.Create.
func (s *PostgresSessionStore) Create(ctx context.Context, session *domain.PracticeSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during create",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return err
	}

	sequence, responses, err := marshalSessionPayloads(session)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO practice_sessions (
			id, student_id, course_id,
			card_sequence, cursor, responses,
			status, interleaved,
			started_at, completed_at, last_activity_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.StudentID,
		session.CourseID,
		sequence,
		session.Cursor,
		responses,
		session.Status,
		session.Interleaved,
		session.StartedAt,
		nullableTime(session.CompletedAt),
		session.LastActivityAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrDuplicate
		}
		log.Error("failed to create session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return MapError(err)
	}

	log.Debug("session created",
		slog.String("session_id", session.ID.String()),
		slog.String("student_id", session.StudentID.String()),
		slog.Int("cards", len(session.CardSequence)))
	return nil
}

// Get implements store.SessionStore.Get.
// Returns store.ErrSessionNotFound if the row does not exist.
func (s *PostgresSessionStore) Get(
	ctx context.Context,
	sessionID uuid.UUID,
) (*domain.PracticeSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := sessionSelect + ` WHERE id = $1`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("session not found", slog.String("session_id", sessionID.String()))
			return nil, store.ErrSessionNotFound
		}
		log.Error("failed to get session",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
		return nil, MapError(err)
	}

	return session, nil
}

// Advance implements store.SessionStore.Advance. The cursor predicate in the
// WHERE clause is the compare-and-set; a concurrently advanced session
// matches nothing and the caller gets store.ErrCursorConflict.
func (s *PostgresSessionStore) Advance(
	ctx context.Context,
	session *domain.PracticeSession,
	expectedCursor int,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during advance",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return err
	}

	_, responses, err := marshalSessionPayloads(session)
	if err != nil {
		return err
	}

	query := `
		UPDATE practice_sessions
		SET cursor = $1, responses = $2, status = $3,
		    completed_at = $4, last_activity_at = $5, updated_at = $6
		WHERE id = $7 AND cursor = $8
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		session.Cursor,
		responses,
		session.Status,
		nullableTime(session.CompletedAt),
		session.LastActivityAt,
		session.UpdatedAt,
		session.ID,
		expectedCursor,
	)
	if err != nil {
		log.Error("failed to advance session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		checkErr := s.db.QueryRowContext(
			ctx,
			`SELECT EXISTS (SELECT 1 FROM practice_sessions WHERE id = $1)`,
			session.ID,
		).Scan(&exists)
		if checkErr != nil {
			return MapError(checkErr)
		}
		if !exists {
			return store.ErrSessionNotFound
		}

		log.Debug("cursor conflict during session advance",
			slog.String("session_id", session.ID.String()),
			slog.Int("expected_cursor", expectedCursor))
		return store.ErrCursorConflict
	}

	return nil
}

// SetStatus implements store.SessionStore.SetStatus. The status predicate in
// the WHERE clause keeps terminal statuses final: a session that completed
// between the caller's read and this write matches nothing, and the caller
// gets store.ErrSessionNotActive instead of a reversed status.
func (s *PostgresSessionStore) SetStatus(
	ctx context.Context,
	sessionID uuid.UUID,
	status domain.SessionStatus,
	at time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var completedAt sql.NullTime
	if status.Terminal() {
		completedAt = sql.NullTime{Time: at, Valid: true}
	}

	query := `
		UPDATE practice_sessions
		SET status = $1, completed_at = COALESCE($2, completed_at), updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := s.db.ExecContext(ctx, query, status, completedAt, at, sessionID, domain.SessionActive)
	if err != nil {
		log.Error("failed to set session status",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		checkErr := s.db.QueryRowContext(
			ctx,
			`SELECT EXISTS (SELECT 1 FROM practice_sessions WHERE id = $1)`,
			sessionID,
		).Scan(&exists)
		if checkErr != nil {
			return MapError(checkErr)
		}
		if !exists {
			return store.ErrSessionNotFound
		}

		log.Debug("session already terminal, status left unchanged",
			slog.String("session_id", sessionID.String()),
			slog.String("requested_status", string(status)))
		return store.ErrSessionNotActive
	}

	log.Debug("session status updated",
		slog.String("session_id", sessionID.String()),
		slog.String("status", string(status)))
	return nil
}

// ListRecent implements store.SessionStore.ListRecent.
func (s *PostgresSessionStore) ListRecent(
	ctx context.Context,
	studentID, courseID uuid.UUID,
	limit int,
) ([]*domain.PracticeSession, error) {
	query := sessionSelect + `
		WHERE student_id = $1 AND course_id = $2
		ORDER BY started_at DESC
	`
	args := []interface{}{studentID, courseID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return s.querySessions(ctx, query, args...)
}

// ListInactive implements store.SessionStore.ListInactive.
func (s *PostgresSessionStore) ListInactive(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*domain.PracticeSession, error) {
	query := sessionSelect + `
		WHERE status = $1 AND last_activity_at < $2
		ORDER BY last_activity_at ASC
	`
	args := []interface{}{domain.SessionActive, cutoff}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return s.querySessions(ctx, query, args...)
}

// querySessions runs a multi-row session query.
func (s *PostgresSessionStore) querySessions(
	ctx context.Context,
	query string,
	args ...interface{},
) ([]*domain.PracticeSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query sessions", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	sessions := []*domain.PracticeSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			log.Error("failed to scan session row", slog.String("error", err.Error()))
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return sessions, nil
}

const sessionSelect = `
	SELECT id, student_id, course_id,
	       card_sequence, cursor, responses,
	       status, interleaved,
	       started_at, completed_at, last_activity_at,
	       created_at, updated_at
	FROM practice_sessions
`

// marshalSessionPayloads serializes the JSONB columns.
func marshalSessionPayloads(session *domain.PracticeSession) (sequence, responses []byte, err error) {
	sequence, err = json.Marshal(session.CardSequence)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal card sequence: %w", err)
	}
	responses, err = json.Marshal(session.Responses)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal responses: %w", err)
	}
	return sequence, responses, nil
}

// scanSession reads one practice_sessions row into a domain PracticeSession.
func scanSession(row rowScanner) (*domain.PracticeSession, error) {
	var (
		session     domain.PracticeSession
		status      string
		sequence    []byte
		responses   []byte
		completedAt sql.NullTime
	)

	err := row.Scan(
		&session.ID,
		&session.StudentID,
		&session.CourseID,
		&sequence,
		&session.Cursor,
		&responses,
		&status,
		&session.Interleaved,
		&session.StartedAt,
		&completedAt,
		&session.LastActivityAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.Status = domain.SessionStatus(status)
	if completedAt.Valid {
		session.CompletedAt = completedAt.Time
	}
	if err := json.Unmarshal(sequence, &session.CardSequence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal card sequence: %w", err)
	}
	if err := json.Unmarshal(responses, &session.Responses); err != nil {
		return nil, fmt.Errorf("failed to unmarshal responses: %w", err)
	}
	if session.CardSequence == nil {
		session.CardSequence = []uuid.UUID{}
	}
	if session.Responses == nil {
		session.Responses = []domain.CardResponse{}
	}

	return &session, nil
}
