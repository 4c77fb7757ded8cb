package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/revisely/scheduler/internal/catalog"
	"github.com/revisely/scheduler/internal/config"
	"github.com/revisely/scheduler/internal/domain"
	"github.com/revisely/scheduler/internal/domain/fsrs"
	"github.com/revisely/scheduler/internal/platform/logger"
	"github.com/revisely/scheduler/internal/platform/metrics"
	"github.com/revisely/scheduler/internal/service/composer"
	"github.com/revisely/scheduler/internal/service/review"
	"github.com/revisely/scheduler/internal/store"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

// serviceImpl implements the Service interface.
type serviceImpl struct {
	cardStates  store.CardStateStore
	sessions    store.SessionStore
	memoryModel fsrs.Service
	composer    *composer.Composer
	processor   review.Processor
	catalog     catalog.Catalog
	metrics     *metrics.Collector
	cfg         config.SchedulerConfig
	logger      *slog.Logger
	now         func() time.Time
}

// Option customizes the scheduler service.
type Option func(*serviceImpl)

// WithMetrics wires the Prometheus collector. A nil collector disables
// instrumentation.
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *serviceImpl) {
		s.metrics = collector
	}
}

// WithClock injects the time source. Tests pin it to walk cards through
// multi-day schedules.
func WithClock(now func() time.Time) Option {
	return func(s *serviceImpl) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the scheduler façade.
func NewService(
	cardStates store.CardStateStore,
	sessions store.SessionStore,
	memoryModel fsrs.Service,
	comp *composer.Composer,
	processor review.Processor,
	cat catalog.Catalog,
	cfg config.SchedulerConfig,
	log *slog.Logger,
	opts ...Option,
) Service {
	if cardStates == nil {
		panic("cardStates cannot be nil")
	}
	if sessions == nil {
		panic("sessions cannot be nil")
	}
	if memoryModel == nil {
		panic("memoryModel cannot be nil")
	}
	if comp == nil {
		panic("composer cannot be nil")
	}
	if processor == nil {
		panic("processor cannot be nil")
	}
	if cat == nil {
		panic("catalog cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &serviceImpl{
		cardStates:  cardStates,
		sessions:    sessions,
		memoryModel: memoryModel,
		composer:    comp,
		processor:   processor,
		catalog:     cat,
		cfg:         cfg,
		logger:      log.With(slog.String("component", "scheduler_service")),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enroll implements Service.Enroll.
func (s *serviceImpl) Enroll(
	ctx context.Context,
	studentID, courseID uuid.UUID,
	itemIDs []uuid.UUID,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	stability, difficulty := s.memoryModel.EnrollmentDefaults()

	enrolled := 0
	for _, itemID := range itemIDs {
		item, err := s.catalog.GetItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, catalog.ErrItemNotFound) {
				log.Warn("skipping enrollment for unknown item",
					slog.String("student_id", studentID.String()),
					slog.String("item_id", itemID.String()))
				continue
			}
			return enrolled, newServiceError("enroll", "catalog lookup failed", err)
		}

		state, err := domain.NewMemoryState(
			studentID, itemID, courseID,
			item.Topic, stability, difficulty,
		)
		if err != nil {
			return enrolled, newServiceError("enroll", "invalid memory state", err)
		}

		if err := s.cardStates.Insert(ctx, state); err != nil {
			if errors.Is(err, store.ErrAlreadyEnrolled) {
				log.Debug("item already enrolled",
					slog.String("student_id", studentID.String()),
					slog.String("item_id", itemID.String()))
				continue
			}
			return enrolled, newServiceError("enroll", "failed to insert memory state", err)
		}
		enrolled++
	}

	log.Info("enrollment processed",
		slog.String("student_id", studentID.String()),
		slog.String("course_id", courseID.String()),
		slog.Int("requested", len(itemIDs)),
		slog.Int("enrolled", enrolled))

	return enrolled, nil
}

// CreateSession implements Service.CreateSession.
func (s *serviceImpl) CreateSession(
	ctx context.Context,
	studentID, courseID uuid.UUID,
	opts SessionOptions,
) (*domain.PracticeSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	target := opts.TargetCount
	if target <= 0 {
		target = s.cfg.SessionTargetCount
	}

	// Fetch beyond the target so the composer has topic variety to draw on.
	due, err := s.cardStates.ListDue(ctx, studentID, courseID, now, opts.Topics, target*2)
	if err != nil {
		return nil, newServiceError("create_session", "failed to list due cards", err)
	}
	s.metrics.ObserveDuePool(len(due))

	pool := make([]composer.DueCard, len(due))
	for i, state := range due {
		pool[i] = composer.DueCard{
			ItemID: state.ItemID,
			Topic:  state.Topic,
			DueAt:  state.DueAt,
		}
	}

	var sequence []uuid.UUID
	if opts.Sequential {
		sequence = s.composer.Sequential(pool, target)
	} else {
		sequence = s.composer.Compose(pool, target)
	}

	session, err := domain.NewPracticeSession(studentID, courseID, sequence, !opts.Sequential)
	if err != nil {
		return nil, newServiceError("create_session", "invalid session", err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, newServiceError("create_session", "failed to persist session", err)
	}

	if session.Status == domain.SessionActive {
		s.metrics.ObserveSessionEvent("started")
	}

	log.Info("session created",
		slog.String("session_id", session.ID.String()),
		slog.String("student_id", studentID.String()),
		slog.String("course_id", courseID.String()),
		slog.Int("due_pool", len(due)),
		slog.Int("cards", len(sequence)),
		slog.String("status", string(session.Status)))

	return session, nil
}

// Submit implements Service.Submit by delegating to the review processor.
func (s *serviceImpl) Submit(
	ctx context.Context,
	sessionID uuid.UUID,
	itemID uuid.UUID,
	rating domain.Rating,
	elapsedSeconds int,
) (*review.Progress, error) {
	return s.processor.Submit(ctx, sessionID, itemID, rating, elapsedSeconds)
}

// Abandon implements Service.Abandon.
func (s *serviceImpl) Abandon(ctx context.Context, sessionID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return review.ErrSessionNotFound
		}
		return newServiceError("abandon", "failed to get session", err)
	}

	if session.Status.Terminal() {
		return review.ErrSessionClosed
	}

	if err := s.sessions.SetStatus(ctx, sessionID, domain.SessionAbandoned, s.now()); err != nil {
		// The session may have finalized between the read above and this
		// write; the store refuses to overwrite a terminal status.
		if errors.Is(err, store.ErrSessionNotActive) {
			return review.ErrSessionClosed
		}
		if errors.Is(err, store.ErrSessionNotFound) {
			return review.ErrSessionNotFound
		}
		return newServiceError("abandon", "failed to set status", err)
	}
	s.metrics.ObserveSessionEvent("abandoned")

	log.Info("session abandoned",
		slog.String("session_id", sessionID.String()),
		slog.Int("cards_completed", session.Cursor),
		slog.Int("total_cards", len(session.CardSequence)))

	return nil
}

// GetSession implements Service.GetSession.
func (s *serviceImpl) GetSession(
	ctx context.Context,
	sessionID uuid.UUID,
) (*domain.PracticeSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, review.ErrSessionNotFound
		}
		return nil, newServiceError("get_session", "failed to get session", err)
	}
	return session, nil
}

// RecentSessions implements Service.RecentSessions.
func (s *serviceImpl) RecentSessions(
	ctx context.Context,
	studentID, courseID uuid.UUID,
	limit int,
) ([]*domain.PracticeSession, error) {
	sessions, err := s.sessions.ListRecent(ctx, studentID, courseID, limit)
	if err != nil {
		return nil, newServiceError("recent_sessions", "failed to list sessions", err)
	}
	return sessions, nil
}

// DueCount implements Service.DueCount.
func (s *serviceImpl) DueCount(
	ctx context.Context,
	studentID, courseID uuid.UUID,
	lookaheadDays int,
) (int, error) {
	asOf := s.now()
	if lookaheadDays > 0 {
		asOf = asOf.Add(time.Duration(lookaheadDays) * 24 * time.Hour)
	}

	count, err := s.cardStates.CountDue(ctx, studentID, courseID, asOf)
	if err != nil {
		return 0, newServiceError("due_count", "failed to count due cards", err)
	}
	return count, nil
}

// CardState implements Service.CardState.
func (s *serviceImpl) CardState(
	ctx context.Context,
	studentID, itemID uuid.UUID,
) (*domain.MemoryState, error) {
	state, err := s.cardStates.Get(ctx, studentID, itemID)
	if err != nil {
		if errors.Is(err, store.ErrMemoryStateNotFound) {
			return nil, review.ErrCardStateNotFound
		}
		return nil, newServiceError("card_state", "failed to get memory state", err)
	}
	return state, nil
}

// Retrievability implements Service.Retrievability.
func (s *serviceImpl) Retrievability(
	ctx context.Context,
	studentID, itemID uuid.UUID,
	asOf time.Time,
) (float64, error) {
	state, err := s.CardState(ctx, studentID, itemID)
	if err != nil {
		return 0, err
	}
	return s.memoryModel.Retrievability(state, asOf), nil
}

// ResetCard implements Service.ResetCard. The reset is written under the
// optimistic version check and retried on conflict, same as a review.
func (s *serviceImpl) ResetCard(ctx context.Context, studentID, itemID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)
	stability, difficulty := s.memoryModel.EnrollmentDefaults()

	retryLimit := s.cfg.ReviewRetryLimit
	if retryLimit < 1 {
		retryLimit = 1
	}

	for attempt := 0; attempt <= retryLimit; attempt++ {
		state, err := s.cardStates.Get(ctx, studentID, itemID)
		if err != nil {
			if errors.Is(err, store.ErrMemoryStateNotFound) {
				return review.ErrCardStateNotFound
			}
			return newServiceError("reset_card", "failed to get memory state", err)
		}

		now := s.now()
		reset := state.Clone()
		reset.Stability = stability
		reset.Difficulty = difficulty
		reset.RepetitionCount = 0
		reset.LapseCount = 0
		reset.Lifecycle = domain.LifecycleNew
		reset.LastReviewedAt = time.Time{}
		reset.DueAt = now
		reset.ReviewHistory = []domain.ReviewRecord{}
		reset.TotalReviews = 0
		reset.CorrectReviews = 0
		reset.AverageSeconds = 0
		reset.UpdatedAt = now

		err = s.cardStates.Update(ctx, reset, state.Version)
		if err == nil {
			log.Info("card reset",
				slog.String("student_id", studentID.String()),
				slog.String("item_id", itemID.String()))
			return nil
		}
		if errors.Is(err, store.ErrVersionConflict) {
			s.metrics.ObserveRetry()
			continue
		}
		return newServiceError("reset_card", "failed to update memory state", err)
	}

	return review.ErrConcurrentUpdateExceeded
}
