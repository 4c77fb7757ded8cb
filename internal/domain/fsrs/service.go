package fsrs

import (
	"errors"
	"time"

	"github.com/revisely/scheduler/internal/domain"
)

// Common errors
var (
	ErrNilState = errors.New("memory state cannot be nil")
)

// Service defines the interface for memory-model operations. Implementations
// are pure: they never touch storage and always return new state instances.
// Swapping constant sets (or whole model families) happens behind this
// interface.
type Service interface {
	// Review applies a rating to a card's memory state and returns the new
	// state with updated stability, difficulty, lifecycle, and due time.
	// A card in the New lifecycle takes the initialization path; elapsedDays
	// is ignored for it. Returns domain.ErrInvalidRating for ratings outside
	// 1-4 and domain.ErrNegativeElapsed for negative elapsed time; neither
	// is ever silently corrected.
	Review(
		state *domain.MemoryState,
		rating domain.Rating,
		elapsedDays float64,
		now time.Time,
	) (*domain.MemoryState, error)

	// Retrievability predicts the probability of unprompted recall as of the
	// given time. New cards report 1.0.
	Retrievability(state *domain.MemoryState, asOf time.Time) float64

	// EnrollmentDefaults returns the stability and difficulty assigned to a
	// card at enrollment, before its first review.
	EnrollmentDefaults() (stability, difficulty float64)
}

// defaultService is the standard implementation of the Service interface.
type defaultService struct {
	params *Params
}

// NewDefaultService creates a memory-model service with default parameters.
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a memory-model service with custom parameters.
func NewServiceWithParams(params *Params) Service {
	return &defaultService{
		params: params,
	}
}

// Review implements the Service interface.
func (s *defaultService) Review(
	state *domain.MemoryState,
	rating domain.Rating,
	elapsedDays float64,
	now time.Time,
) (*domain.MemoryState, error) {
	if state == nil {
		return nil, ErrNilState
	}
	if err := rating.Validate(); err != nil {
		return nil, err
	}
	if elapsedDays < 0 {
		return nil, domain.ErrNegativeElapsed
	}

	if state.Lifecycle == domain.LifecycleNew {
		return initializeState(state, rating, now, s.params), nil
	}
	return updateState(state, rating, elapsedDays, now, s.params), nil
}

// Retrievability implements the Service interface.
func (s *defaultService) Retrievability(state *domain.MemoryState, asOf time.Time) float64 {
	if state == nil || state.Lifecycle == domain.LifecycleNew || state.LastReviewedAt.IsZero() {
		return 1.0
	}

	elapsed := asOf.Sub(state.LastReviewedAt).Hours() / 24
	return retrievability(elapsed, state.Stability, s.params)
}

// EnrollmentDefaults implements the Service interface. Enrollment uses the
// Good-rating base stability as a neutral placeholder; the first real review
// replaces it through the initialization path.
func (s *defaultService) EnrollmentDefaults() (float64, float64) {
	return s.params.BaseStability[domain.RatingGood], s.params.BaseDifficulty
}
