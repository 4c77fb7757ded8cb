package review_test

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/catalog"
	"github.com/revisely/scheduler/internal/domain"
	"github.com/revisely/scheduler/internal/domain/fsrs"
	"github.com/revisely/scheduler/internal/events"
	"github.com/revisely/scheduler/internal/platform/memory"
	"github.com/revisely/scheduler/internal/service/review"
	"github.com/revisely/scheduler/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingHandler records every event it receives.
type capturingHandler struct {
	mu     sync.Mutex
	events []*events.Event
}

func (h *capturingHandler) HandleEvent(_ context.Context, event *events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

type fixture struct {
	processor  review.Processor
	sessions   *memory.SessionStore
	cardStates *memory.CardStateStore
	catalog    *catalog.StaticCatalog
	handler    *capturingHandler
	studentID  uuid.UUID
	courseID   uuid.UUID
	session    *domain.PracticeSession
	now        time.Time
}

// newFixture enrolls the given topics as one card each and opens a session
// covering all of them, in enrollment order.
func newFixture(t *testing.T, topics []string, opts ...review.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		sessions:   memory.NewSessionStore(),
		cardStates: memory.NewCardStateStore(),
		handler:    &capturingHandler{},
		studentID:  uuid.New(),
		courseID:   uuid.New(),
		now:        time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}

	items := make([]catalog.Item, 0, len(topics))
	sequence := make([]uuid.UUID, 0, len(topics))
	for _, topic := range topics {
		itemID := uuid.New()
		items = append(items, catalog.Item{ID: itemID, Topic: topic})
		sequence = append(sequence, itemID)

		state, err := domain.NewMemoryState(f.studentID, itemID, f.courseID, topic, 2.4, 5.0)
		require.NoError(t, err)
		require.NoError(t, f.cardStates.Insert(ctx, state))
	}
	f.catalog = catalog.NewStaticCatalog(items)

	session, err := domain.NewPracticeSession(f.studentID, f.courseID, sequence, true)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Create(ctx, session))
	f.session = session

	emitter := events.NewInMemoryEventEmitter(slog.Default())
	emitter.RegisterHandler(f.handler)

	allOpts := append([]review.Option{
		review.WithEmitter(emitter),
		review.WithClock(func() time.Time { return f.now }),
	}, opts...)

	f.processor = review.NewProcessor(
		f.sessions,
		f.cardStates,
		fsrs.NewDefaultService(),
		store.PassthroughRunner{},
		f.catalog,
		slog.Default(),
		allOpts...,
	)
	return f
}

func TestSubmitAdvancesSessionAndReschedulesCard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, []string{"algebra", "geometry"})
	itemID := f.session.CardSequence[0]

	progress, err := f.processor.Submit(ctx, f.session.ID, itemID, domain.RatingGood, 12)
	require.NoError(t, err)

	assert.Equal(t, 1, progress.CardsCompleted)
	assert.Equal(t, 2, progress.TotalCards)
	assert.False(t, progress.Complete)
	assert.Nil(t, progress.Summary)

	// The card took the first-review path and got rescheduled.
	state := progress.State
	require.NotNil(t, state)
	assert.Equal(t, domain.LifecycleReview, state.Lifecycle)
	assert.Equal(t, 2.4, state.Stability)
	assert.True(t, state.DueAt.After(f.now))
	assert.Equal(t, int64(2), state.Version)
	assert.Equal(t, 1, state.TotalReviews)
	assert.Equal(t, 1, state.CorrectReviews)
	assert.InDelta(t, 12.0, state.AverageSeconds, 1e-9)
	require.Len(t, state.ReviewHistory, 1)
	assert.Equal(t, 12, state.ReviewHistory[0].ElapsedSeconds)

	// The session cursor moved with the response recorded.
	session, err := f.sessions.Get(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, session.Cursor)
	require.Len(t, session.Responses, 1)
	assert.Equal(t, itemID, session.Responses[0].ItemID)
	assert.Equal(t, domain.SessionActive, session.Status)
	assert.Equal(t, f.now, session.LastActivityAt)
}

func TestSubmitOutOfSequenceLeavesNothingModified(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, []string{"algebra", "geometry"})

	// Submitting the second card while the cursor points at the first.
	wrongItem := f.session.CardSequence[1]
	progress, err := f.processor.Submit(ctx, f.session.ID, wrongItem, domain.RatingGood, 5)
	assert.ErrorIs(t, err, review.ErrOutOfSequence)
	assert.Nil(t, progress)

	session, getErr := f.sessions.Get(ctx, f.session.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 0, session.Cursor)
	assert.Empty(t, session.Responses)

	state, getErr := f.cardStates.Get(ctx, f.studentID, wrongItem)
	require.NoError(t, getErr)
	assert.Equal(t, int64(1), state.Version)
	assert.Equal(t, domain.LifecycleNew, state.Lifecycle)
}

func TestSubmitClosedSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, []string{"algebra"})
	require.NoError(t, f.sessions.SetStatus(ctx, f.session.ID, domain.SessionAbandoned, f.now))

	_, err := f.processor.Submit(ctx, f.session.ID, f.session.CardSequence[0], domain.RatingGood, 5)
	assert.ErrorIs(t, err, review.ErrSessionClosed)
}

func TestSubmitUnknownSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []string{"algebra"})
	_, err := f.processor.Submit(context.Background(), uuid.New(), f.session.CardSequence[0], domain.RatingGood, 5)
	assert.ErrorIs(t, err, review.ErrSessionNotFound)
}

func TestSubmitInvalidRating(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []string{"algebra"})
	_, err := f.processor.Submit(context.Background(), f.session.ID, f.session.CardSequence[0], 9, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidRating)
}

func TestSubmitFinalCardCompletesSessionAndEmitsSummary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, []string{"algebra", "geometry"})

	_, err := f.processor.Submit(ctx, f.session.ID, f.session.CardSequence[0], domain.RatingGood, 10)
	require.NoError(t, err)

	progress, err := f.processor.Submit(ctx, f.session.ID, f.session.CardSequence[1], domain.RatingAgain, 30)
	require.NoError(t, err)

	assert.True(t, progress.Complete)
	require.NotNil(t, progress.Summary)
	assert.Equal(t, 2, progress.Summary.CardsCompleted)
	assert.InDelta(t, 0.5, progress.Summary.Accuracy, 1e-9)
	assert.Equal(t, 1, progress.Summary.Topics["algebra"].Presented)
	assert.Equal(t, 1, progress.Summary.Topics["geometry"].Presented)

	session, err := f.sessions.Get(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, session.Status)
	assert.Equal(t, f.now, session.CompletedAt)

	// The completion event carries the same summary.
	require.Len(t, f.handler.events, 1)
	event := f.handler.events[0]
	assert.Equal(t, events.TypeSessionCompleted, event.Type)

	var summary domain.SessionSummary
	require.NoError(t, event.UnmarshalPayload(&summary))
	assert.Equal(t, f.session.ID.String(), summary.SessionID)
	assert.InDelta(t, 0.5, summary.Accuracy, 1e-9)
}

func TestSubmitAfterCompletionIsClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, []string{"algebra"})

	_, err := f.processor.Submit(ctx, f.session.ID, f.session.CardSequence[0], domain.RatingGood, 5)
	require.NoError(t, err)

	_, err = f.processor.Submit(ctx, f.session.ID, f.session.CardSequence[0], domain.RatingGood, 5)
	assert.ErrorIs(t, err, review.ErrSessionClosed)
}

// conflictingCardStates fails the first n updates with a version conflict,
// then delegates.
type conflictingCardStates struct {
	store.CardStateStore
	mu        sync.Mutex
	conflicts int
}

func (c *conflictingCardStates) Update(
	ctx context.Context,
	state *domain.MemoryState,
	priorVersion int64,
) error {
	c.mu.Lock()
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()
		return store.ErrVersionConflict
	}
	c.mu.Unlock()
	return c.CardStateStore.Update(ctx, state, priorVersion)
}

func (c *conflictingCardStates) WithTx(*sql.Tx) store.CardStateStore {
	return c
}

func TestSubmitRetriesAfterVersionConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, []string{"algebra"})

	conflicting := &conflictingCardStates{CardStateStore: f.cardStates, conflicts: 2}
	processor := review.NewProcessor(
		f.sessions,
		conflicting,
		fsrs.NewDefaultService(),
		store.PassthroughRunner{},
		f.catalog,
		slog.Default(),
		review.WithRetryLimit(3),
		review.WithClock(func() time.Time { return f.now }),
	)

	progress, err := processor.Submit(ctx, f.session.ID, f.session.CardSequence[0], domain.RatingGood, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.CardsCompleted)
}

func TestSubmitGivesUpWhenRetriesExhausted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, []string{"algebra"})

	conflicting := &conflictingCardStates{CardStateStore: f.cardStates, conflicts: 100}
	processor := review.NewProcessor(
		f.sessions,
		conflicting,
		fsrs.NewDefaultService(),
		store.PassthroughRunner{},
		f.catalog,
		slog.Default(),
		review.WithRetryLimit(2),
		review.WithClock(func() time.Time { return f.now }),
	)

	_, err := processor.Submit(ctx, f.session.ID, f.session.CardSequence[0], domain.RatingGood, 5)
	assert.ErrorIs(t, err, review.ErrConcurrentUpdateExceeded)

	// The session cursor never moved.
	session, getErr := f.sessions.Get(ctx, f.session.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 0, session.Cursor)
}
