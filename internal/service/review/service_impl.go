package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/catalog"
	"github.com/revisely/scheduler/internal/domain"
	"github.com/revisely/scheduler/internal/domain/fsrs"
	"github.com/revisely/scheduler/internal/events"
	"github.com/revisely/scheduler/internal/platform/logger"
	"github.com/revisely/scheduler/internal/platform/metrics"
	"github.com/revisely/scheduler/internal/store"
)

// DefaultRetryLimit bounds optimistic-concurrency retries per submission.
const DefaultRetryLimit = 3

// Verify interface compliance at compile time
var _ Processor = (*processorImpl)(nil)

// processorImpl implements the Processor interface.
type processorImpl struct {
	sessions    store.SessionStore
	cardStates  store.CardStateStore
	memoryModel fsrs.Service
	runner      store.Runner
	catalog     catalog.Catalog
	emitter     events.EventEmitter
	metrics     *metrics.Collector
	retryLimit  int
	logger      *slog.Logger
	now         func() time.Time
}

// Option customizes a Processor.
type Option func(*processorImpl)

// WithRetryLimit sets how many times a submission is retried after an
// optimistic version conflict before giving up.
func WithRetryLimit(n int) Option {
	return func(p *processorImpl) {
		if n >= 1 {
			p.retryLimit = n
		}
	}
}

// WithEmitter wires the event emitter that receives session-completion
// summaries. Without one, completion is still recorded but nothing is
// published.
func WithEmitter(emitter events.EventEmitter) Option {
	return func(p *processorImpl) {
		p.emitter = emitter
	}
}

// WithMetrics wires the Prometheus collector. A nil collector disables
// instrumentation.
func WithMetrics(collector *metrics.Collector) Option {
	return func(p *processorImpl) {
		p.metrics = collector
	}
}

// WithClock injects the time source. Tests pin it for deterministic
// schedules.
func WithClock(now func() time.Time) Option {
	return func(p *processorImpl) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProcessor creates a review Processor.
func NewProcessor(
	sessions store.SessionStore,
	cardStates store.CardStateStore,
	memoryModel fsrs.Service,
	runner store.Runner,
	cat catalog.Catalog,
	log *slog.Logger,
	opts ...Option,
) Processor {
	if sessions == nil {
		panic("sessions cannot be nil")
	}
	if cardStates == nil {
		panic("cardStates cannot be nil")
	}
	if memoryModel == nil {
		panic("memoryModel cannot be nil")
	}
	if runner == nil {
		panic("runner cannot be nil")
	}
	if cat == nil {
		panic("catalog cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	p := &processorImpl{
		sessions:    sessions,
		cardStates:  cardStates,
		memoryModel: memoryModel,
		runner:      runner,
		catalog:     cat,
		retryLimit:  DefaultRetryLimit,
		logger:      log.With(slog.String("component", "review_processor")),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit implements Processor.Submit.
func (p *processorImpl) Submit(
	ctx context.Context,
	sessionID uuid.UUID,
	itemID uuid.UUID,
	rating domain.Rating,
	elapsedSeconds int,
) (*Progress, error) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	if err := rating.Validate(); err != nil {
		log.Warn("invalid rating submitted",
			slog.String("session_id", sessionID.String()),
			slog.String("item_id", itemID.String()),
			slog.Int("rating", int(rating)))
		return nil, err
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}

	var (
		session *domain.PracticeSession
		state   *domain.MemoryState
	)

	attempts := 0
	for {
		attempts++

		err := p.runner.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			var txErr error
			session, state, txErr = p.submitInTx(ctx, tx, sessionID, itemID, rating, elapsedSeconds)
			return txErr
		})
		if err == nil {
			break
		}

		if errors.Is(err, store.ErrVersionConflict) && attempts <= p.retryLimit {
			p.metrics.ObserveRetry()
			log.Debug("retrying submission after version conflict",
				slog.String("session_id", sessionID.String()),
				slog.String("item_id", itemID.String()),
				slog.Int("attempt", attempts))
			continue
		}

		return nil, p.mapSubmitError(log, sessionID, itemID, err)
	}

	p.metrics.ObserveReview(rating.String())

	progress := &Progress{
		CardsCompleted: session.Cursor,
		TotalCards:     len(session.CardSequence),
		Complete:       session.Status == domain.SessionCompleted,
		State:          state,
	}

	if progress.Complete {
		progress.Summary = p.finalize(ctx, log, session)
	}

	log.Debug("submission applied",
		slog.String("session_id", sessionID.String()),
		slog.String("item_id", itemID.String()),
		slog.String("rating", rating.String()),
		slog.Int("cursor", session.Cursor),
		slog.Bool("complete", progress.Complete),
		slog.Time("due_at", state.DueAt))

	return progress, nil
}

// submitInTx performs one transactional attempt: load and check the session,
// reschedule the card under its prior version, then advance the cursor under
// the prior cursor. Either compare-and-set failing aborts the whole attempt.
func (p *processorImpl) submitInTx(
	ctx context.Context,
	tx *sql.Tx,
	sessionID uuid.UUID,
	itemID uuid.UUID,
	rating domain.Rating,
	elapsedSeconds int,
) (*domain.PracticeSession, *domain.MemoryState, error) {
	sessions := p.sessions.WithTx(tx)
	cardStates := p.cardStates.WithTx(tx)
	now := p.now()

	session, err := sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.Status.Terminal() {
		return nil, nil, ErrSessionClosed
	}

	current, ok := session.CurrentItem()
	if !ok || current != itemID {
		return nil, nil, ErrOutOfSequence
	}

	state, err := cardStates.Get(ctx, session.StudentID, itemID)
	if err != nil {
		if errors.Is(err, store.ErrMemoryStateNotFound) {
			return nil, nil, ErrCardStateNotFound
		}
		return nil, nil, fmt.Errorf("failed to get card state: %w", err)
	}
	priorVersion := state.Version

	// Clock skew between the scheduler and the review timestamps must never
	// turn into a negative elapsed interval.
	elapsedDays := 0.0
	if !state.LastReviewedAt.IsZero() {
		elapsedDays = now.Sub(state.LastReviewedAt).Hours() / 24
		if elapsedDays < 0 {
			elapsedDays = 0
		}
	}

	newState, err := p.memoryModel.Review(state, rating, elapsedDays, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reschedule card: %w", err)
	}

	applyResponseStats(newState, rating, elapsedSeconds)
	newState.UpdatedAt = now

	if err := cardStates.Update(ctx, newState, priorVersion); err != nil {
		return nil, nil, err
	}

	updated := session.Clone()
	updated.Responses = append(updated.Responses, domain.CardResponse{
		ItemID:         itemID,
		Rating:         rating,
		ElapsedSeconds: elapsedSeconds,
		RecordedAt:     now,
	})
	updated.Cursor++
	updated.LastActivityAt = now
	updated.UpdatedAt = now
	if updated.Finished() {
		updated.Status = domain.SessionCompleted
		updated.CompletedAt = now
	}

	if err := sessions.Advance(ctx, updated, session.Cursor); err != nil {
		if errors.Is(err, store.ErrCursorConflict) {
			return nil, nil, ErrOutOfSequence
		}
		return nil, nil, fmt.Errorf("failed to advance session: %w", err)
	}

	return updated, newState, nil
}

// applyResponseStats stamps the response duration onto the history record the
// memory model just appended and folds it into the per-card aggregates.
func applyResponseStats(state *domain.MemoryState, rating domain.Rating, elapsedSeconds int) {
	if n := len(state.ReviewHistory); n > 0 {
		state.ReviewHistory[n-1].ElapsedSeconds = elapsedSeconds
	}

	state.TotalReviews++
	if rating.Correct() {
		state.CorrectReviews++
	}
	total := float64(state.TotalReviews)
	state.AverageSeconds = (state.AverageSeconds*(total-1) + float64(elapsedSeconds)) / total
}

// finalize summarizes a just-completed session, records the completion
// metrics, and publishes the summary. Publication failures are logged and
// swallowed: the submission already committed.
func (p *processorImpl) finalize(
	ctx context.Context,
	log *slog.Logger,
	session *domain.PracticeSession,
) *domain.SessionSummary {
	summary := session.Summarize(func(itemID string) string {
		id, err := uuid.Parse(itemID)
		if err != nil {
			return ""
		}
		item, err := p.catalog.GetItem(ctx, id)
		if err != nil {
			return ""
		}
		return item.Topic
	})

	p.metrics.ObserveSessionEvent("completed")
	p.metrics.ObserveSessionAccuracy(summary.Accuracy)

	if p.emitter != nil {
		event, err := events.NewSessionCompletedEvent(summary)
		if err != nil {
			log.Error("failed to build session-completed event",
				slog.String("error", err.Error()),
				slog.String("session_id", session.ID.String()))
			return summary
		}
		if err := p.emitter.EmitEvent(ctx, event); err != nil {
			log.Error("failed to emit session-completed event",
				slog.String("error", err.Error()),
				slog.String("session_id", session.ID.String()))
		}
	}

	return summary
}

// mapSubmitError passes known sentinel errors through untouched and wraps
// everything else.
func (p *processorImpl) mapSubmitError(
	log *slog.Logger,
	sessionID, itemID uuid.UUID,
	err error,
) error {
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionClosed),
		errors.Is(err, ErrOutOfSequence),
		errors.Is(err, ErrCardStateNotFound):
		return err
	case errors.Is(err, store.ErrVersionConflict):
		log.Warn("optimistic retries exhausted",
			slog.String("session_id", sessionID.String()),
			slog.String("item_id", itemID.String()),
			slog.Int("retry_limit", p.retryLimit))
		return ErrConcurrentUpdateExceeded
	default:
		log.Error("failed to submit review",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()),
			slog.String("item_id", itemID.String()))
		return NewSubmitError("failed to submit review", err)
	}
}
