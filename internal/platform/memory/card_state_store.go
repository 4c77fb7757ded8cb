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

type cardKey struct {
	studentID uuid.UUID
	itemID    uuid.UUID
}

// CardStateStore is an in-memory implementation of store.CardStateStore.
type CardStateStore struct {
	mu     sync.RWMutex
	states map[cardKey]*domain.MemoryState
}

// NewCardStateStore creates an empty in-memory card-state store.
func NewCardStateStore() *CardStateStore {
	return &CardStateStore{
		states: make(map[cardKey]*domain.MemoryState),
	}
}

// Ensure CardStateStore implements store.CardStateStore.
var _ store.CardStateStore = (*CardStateStore)(nil)

// Insert implements store.CardStateStore.Insert.
func (s *CardStateStore) Insert(_ context.Context, state *domain.MemoryState) error {
	if err := state.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := cardKey{state.StudentID, state.ItemID}
	if _, exists := s.states[key]; exists {
		return store.ErrAlreadyEnrolled
	}

	s.states[key] = state.Clone()
	return nil
}

// Get implements store.CardStateStore.Get.
func (s *CardStateStore) Get(_ context.Context, studentID, itemID uuid.UUID) (*domain.MemoryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[cardKey{studentID, itemID}]
	if !ok {
		return nil, store.ErrMemoryStateNotFound
	}
	return state.Clone(), nil
}

// Update implements store.CardStateStore.Update. The version check and the
// overwrite happen under one lock, mirroring the atomic compare-and-set the
// SQL implementation gets from its WHERE clause.
func (s *CardStateStore) Update(_ context.Context, state *domain.MemoryState, priorVersion int64) error {
	if err := state.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := cardKey{state.StudentID, state.ItemID}
	current, ok := s.states[key]
	if !ok {
		return store.ErrMemoryStateNotFound
	}
	if current.Version != priorVersion {
		return store.ErrVersionConflict
	}

	next := state.Clone()
	next.Version = priorVersion + 1
	s.states[key] = next
	state.Version = next.Version
	return nil
}

// ListDue implements store.CardStateStore.ListDue.
func (s *CardStateStore) ListDue(
	_ context.Context,
	studentID, courseID uuid.UUID,
	asOf time.Time,
	topics []string,
	limit int,
) ([]*domain.MemoryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topicSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		topicSet[t] = struct{}{}
	}

	var due []*domain.MemoryState
	for _, state := range s.states {
		if state.StudentID != studentID || state.CourseID != courseID {
			continue
		}
		if !state.Due(asOf) {
			continue
		}
		if len(topicSet) > 0 {
			if _, ok := topicSet[state.Topic]; !ok {
				continue
			}
		}
		due = append(due, state.Clone())
	}

	// Due time ascending, item ID as the deterministic tiebreak.
	sort.Slice(due, func(i, j int) bool {
		if !due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].DueAt.Before(due[j].DueAt)
		}
		return due[i].ItemID.String() < due[j].ItemID.String()
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// CountDue implements store.CardStateStore.CountDue.
func (s *CardStateStore) CountDue(
	_ context.Context,
	studentID, courseID uuid.UUID,
	asOf time.Time,
) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, state := range s.states {
		if state.StudentID == studentID && state.CourseID == courseID && state.Due(asOf) {
			count++
		}
	}
	return count, nil
}

// WithTx implements store.CardStateStore.WithTx. In-memory stores have no
// transactions; the store itself is returned.
func (s *CardStateStore) WithTx(_ *sql.Tx) store.CardStateStore {
	return s
}
