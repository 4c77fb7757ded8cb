package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/domain"
	"github.com/revisely/scheduler/internal/store"
)

// SessionStore is an in-memory implementation of store.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.PracticeSession
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*domain.PracticeSession),
	}
}

// Ensure SessionStore implements store.SessionStore.
var _ store.SessionStore = (*SessionStore)(nil)

// Create implements store.SessionStore.Create.
func (s *SessionStore) Create(_ context.Context, session *domain.PracticeSession) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return store.ErrDuplicate
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Get implements store.SessionStore.Get.
func (s *SessionStore) Get(_ context.Context, sessionID uuid.UUID) (*domain.PracticeSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Advance implements store.SessionStore.Advance. The cursor check and the
// overwrite happen under one lock, mirroring the SQL compare-and-set.
func (s *SessionStore) Advance(_ context.Context, session *domain.PracticeSession, expectedCursor int) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[session.ID]
	if !ok {
		return store.ErrSessionNotFound
	}
	if current.Cursor != expectedCursor {
		return store.ErrCursorConflict
	}

	s.sessions[session.ID] = session.Clone()
	return nil
}

// SetStatus implements store.SessionStore.SetStatus. Terminal statuses are
// final; only Active sessions accept the write, mirroring the SQL status
// predicate.
func (s *SessionStore) SetStatus(
	_ context.Context,
	sessionID uuid.UUID,
	status domain.SessionStatus,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrSessionNotFound
	}
	if session.Status != domain.SessionActive {
		return store.ErrSessionNotActive
	}

	session.Status = status
	if status.Terminal() {
		session.CompletedAt = at
	}
	session.UpdatedAt = at
	return nil
}

// ListRecent implements store.SessionStore.ListRecent.
func (s *SessionStore) ListRecent(
	_ context.Context,
	studentID, courseID uuid.UUID,
	limit int,
) ([]*domain.PracticeSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.PracticeSession
	for _, session := range s.sessions {
		if session.StudentID == studentID && session.CourseID == courseID {
			matched = append(matched, session.Clone())
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ListInactive implements store.SessionStore.ListInactive.
func (s *SessionStore) ListInactive(
	_ context.Context,
	cutoff time.Time,
	limit int,
) ([]*domain.PracticeSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []*domain.PracticeSession
	for _, session := range s.sessions {
		if session.Status == domain.SessionActive && session.LastActivityAt.Before(cutoff) {
			stale = append(stale, session.Clone())
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].LastActivityAt.Before(stale[j].LastActivityAt)
	})

	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

// WithTx implements store.SessionStore.WithTx. In-memory stores have no
// transactions; the store itself is returned.
func (s *SessionStore) WithTx(_ *sql.Tx) store.SessionStore {
	return s
}
