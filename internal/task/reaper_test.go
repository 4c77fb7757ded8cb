package task_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/domain"
	"github.com/revisely/scheduler/internal/platform/memory"
	"github.com/revisely/scheduler/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedSession(t *testing.T, s *memory.SessionStore, lastActivity time.Time) *domain.PracticeSession {
	t.Helper()
	session, err := domain.NewPracticeSession(
		uuid.New(), uuid.New(),
		[]uuid.UUID{uuid.New(), uuid.New()},
		true,
	)
	require.NoError(t, err)
	session.LastActivityAt = lastActivity
	require.NoError(t, s.Create(context.Background(), session))
	return session
}

func TestReapOnceAbandonsOnlyStaleSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sessions := memory.NewSessionStore()
	now := time.Now().UTC()

	stale := storedSession(t, sessions, now.Add(-3*time.Hour))
	fresh := storedSession(t, sessions, now.Add(-time.Minute))

	reaper := task.NewReaper(sessions, nil, task.ReaperConfig{
		InactivityTimeout: 2 * time.Hour,
		CheckInterval:     time.Hour,
	}, slog.Default())

	abandoned, err := reaper.ReapOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, abandoned)

	got, err := sessions.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionAbandoned, got.Status)
	assert.False(t, got.CompletedAt.IsZero())

	got, err = sessions.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, got.Status)
}

func TestReapOnceIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sessions := memory.NewSessionStore()
	now := time.Now().UTC()

	storedSession(t, sessions, now.Add(-3*time.Hour))

	reaper := task.NewReaper(sessions, nil, task.ReaperConfig{
		InactivityTimeout: 2 * time.Hour,
		CheckInterval:     time.Hour,
	}, slog.Default())

	abandoned, err := reaper.ReapOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, abandoned)

	// Already-abandoned sessions are no longer candidates.
	abandoned, err = reaper.ReapOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, abandoned)
}

// finalizingSessionStore completes a session right after the reaper takes its
// inactivity snapshot, reproducing a submission racing the sweep.
type finalizingSessionStore struct {
	*memory.SessionStore
	finalize func()
}

func (s *finalizingSessionStore) ListInactive(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*domain.PracticeSession, error) {
	stale, err := s.SessionStore.ListInactive(ctx, cutoff, limit)
	s.finalize()
	return stale, err
}

func TestReapOnceLeavesSessionCompletedMidScanAlone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := memory.NewSessionStore()
	now := time.Now().UTC()

	racing := storedSession(t, inner, now.Add(-3*time.Hour))
	sessions := &finalizingSessionStore{
		SessionStore: inner,
		finalize: func() {
			require.NoError(t, inner.SetStatus(ctx, racing.ID, domain.SessionCompleted, now))
		},
	}

	reaper := task.NewReaper(sessions, nil, task.ReaperConfig{
		InactivityTimeout: 2 * time.Hour,
		CheckInterval:     time.Hour,
	}, slog.Default())

	abandoned, err := reaper.ReapOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, abandoned)

	got, err := inner.Get(ctx, racing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, got.Status)
}

func TestReaperStartStop(t *testing.T) {
	t.Parallel()

	sessions := memory.NewSessionStore()
	reaper := task.NewReaper(sessions, nil, task.ReaperConfig{
		InactivityTimeout: time.Hour,
		CheckInterval:     10 * time.Millisecond,
	}, slog.Default())

	reaper.Start()
	time.Sleep(30 * time.Millisecond)
	reaper.Stop()
}
