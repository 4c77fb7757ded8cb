package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/domain"
	"github.com/revisely/scheduler/internal/platform/memory"
	"github.com/revisely/scheduler/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState(t *testing.T, studentID, courseID uuid.UUID, topic string) *domain.MemoryState {
	t.Helper()
	state, err := domain.NewMemoryState(studentID, uuid.New(), courseID, topic, 2.4, 5.0)
	require.NoError(t, err)
	return state
}

func TestCardStateStoreInsertAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewCardStateStore()
	studentID, courseID := uuid.New(), uuid.New()

	state := newState(t, studentID, courseID, "algebra")
	require.NoError(t, s.Insert(ctx, state))

	got, err := s.Get(ctx, studentID, state.ItemID)
	require.NoError(t, err)
	assert.Equal(t, state.ItemID, got.ItemID)
	assert.Equal(t, "algebra", got.Topic)

	// Stores hand out clones.
	got.Stability = 99
	again, err := s.Get(ctx, studentID, state.ItemID)
	require.NoError(t, err)
	assert.Equal(t, 2.4, again.Stability)
}

func TestCardStateStoreInsertDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewCardStateStore()

	state := newState(t, uuid.New(), uuid.New(), "algebra")
	require.NoError(t, s.Insert(ctx, state))

	err := s.Insert(ctx, state)
	assert.ErrorIs(t, err, store.ErrAlreadyEnrolled)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestCardStateStoreGetMissing(t *testing.T) {
	t.Parallel()

	s := memory.NewCardStateStore()
	_, err := s.Get(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrMemoryStateNotFound)
	assert.True(t, store.IsNotFoundError(err))
}

func TestCardStateStoreUpdateVersionCompareAndSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewCardStateStore()
	studentID, courseID := uuid.New(), uuid.New()

	state := newState(t, studentID, courseID, "algebra")
	require.NoError(t, s.Insert(ctx, state))

	// Two readers load version 1 and both try to write.
	first, err := s.Get(ctx, studentID, state.ItemID)
	require.NoError(t, err)
	second, err := s.Get(ctx, studentID, state.ItemID)
	require.NoError(t, err)

	first.Stability = 4.0
	require.NoError(t, s.Update(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.Stability = 6.0
	err = s.Update(ctx, second, 1)
	assert.ErrorIs(t, err, store.ErrVersionConflict)
	assert.True(t, store.IsConflictError(err))

	// The first write won.
	got, err := s.Get(ctx, studentID, state.ItemID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Stability)
	assert.Equal(t, int64(2), got.Version)
}

func TestCardStateStoreUpdateMissing(t *testing.T) {
	t.Parallel()

	s := memory.NewCardStateStore()
	state := newState(t, uuid.New(), uuid.New(), "algebra")

	err := s.Update(context.Background(), state, 1)
	assert.ErrorIs(t, err, store.ErrMemoryStateNotFound)
}

func TestCardStateStoreListDue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewCardStateStore()
	studentID, courseID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	algebra := newState(t, studentID, courseID, "algebra")
	algebra.DueAt = now.Add(-2 * time.Hour)
	geometry := newState(t, studentID, courseID, "geometry")
	geometry.DueAt = now.Add(-time.Hour)
	future := newState(t, studentID, courseID, "algebra")
	future.DueAt = now.Add(time.Hour)
	otherStudent := newState(t, uuid.New(), courseID, "algebra")
	otherStudent.DueAt = now.Add(-time.Hour)

	for _, st := range []*domain.MemoryState{algebra, geometry, future, otherStudent} {
		require.NoError(t, s.Insert(ctx, st))
	}

	due, err := s.ListDue(ctx, studentID, courseID, now, nil, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)

	// Most overdue first.
	assert.Equal(t, algebra.ItemID, due[0].ItemID)
	assert.Equal(t, geometry.ItemID, due[1].ItemID)

	// Topic filter.
	onlyGeometry, err := s.ListDue(ctx, studentID, courseID, now, []string{"geometry"}, 0)
	require.NoError(t, err)
	require.Len(t, onlyGeometry, 1)
	assert.Equal(t, geometry.ItemID, onlyGeometry[0].ItemID)

	// Limit.
	limited, err := s.ListDue(ctx, studentID, courseID, now, nil, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestCardStateStoreCountDue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewCardStateStore()
	studentID, courseID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	dueNow := newState(t, studentID, courseID, "algebra")
	dueNow.DueAt = now.Add(-time.Minute)
	dueTomorrow := newState(t, studentID, courseID, "algebra")
	dueTomorrow.DueAt = now.Add(20 * time.Hour)

	require.NoError(t, s.Insert(ctx, dueNow))
	require.NoError(t, s.Insert(ctx, dueTomorrow))

	count, err := s.CountDue(ctx, studentID, courseID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Look-ahead picks up tomorrow's card.
	count, err = s.CountDue(ctx, studentID, courseID, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCardStateStoreWithTxReturnsSelf(t *testing.T) {
	t.Parallel()

	s := memory.NewCardStateStore()
	assert.Equal(t, store.CardStateStore(s), s.WithTx(nil))
}
