package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Lifecycle describes where a card sits in the learning cycle.
type Lifecycle string

// Possible lifecycle values. There is no terminal state: cards cycle
// indefinitely between review and relearning.
const (
	LifecycleNew        Lifecycle = "new"        // enrolled, never reviewed
	LifecycleLearning   Lifecycle = "learning"   // initial learning phase
	LifecycleReview     Lifecycle = "review"     // stable memory, normal cadence
	LifecycleRelearning Lifecycle = "relearning" // lapsed, rebuilding stability
)

// Valid reports whether the lifecycle value is one of the four known states.
func (l Lifecycle) Valid() bool {
	switch l {
	case LifecycleNew, LifecycleLearning, LifecycleReview, LifecycleRelearning:
		return true
	default:
		return false
	}
}

// ReviewRecord is one entry of a card's append-only review history.
type ReviewRecord struct {
	Rating             Rating    `json:"rating"`
	ReviewedAt         time.Time `json:"reviewed_at"`
	ElapsedDays        float64   `json:"elapsed_days"`
	ElapsedSeconds     int       `json:"elapsed_seconds"`
	ResultingStability float64   `json:"resulting_stability"`
}

// MemoryState tracks a student's evolving memory of a single learning item.
// One record exists per (student, item) pair; it is created at enrollment and
// mutated only through the review processor, guarded by optimistic versioning.
type MemoryState struct {
	StudentID uuid.UUID `json:"student_id"`
	ItemID    uuid.UUID `json:"item_id"`
	CourseID  uuid.UUID `json:"course_id"`

	// Topic is denormalized from the content catalog at enrollment so due
	// queries can filter by topic without consulting the catalog.
	Topic string `json:"topic"`

	Stability       float64   `json:"stability"`  // days until recall decays to the retention target
	Difficulty      float64   `json:"difficulty"` // perceived hardness, 1-10
	RepetitionCount int       `json:"repetition_count"`
	LapseCount      int       `json:"lapse_count"`
	Lifecycle       Lifecycle `json:"lifecycle"`

	LastReviewedAt time.Time `json:"last_reviewed_at"` // zero until first review
	DueAt          time.Time `json:"due_at"`

	ReviewHistory []ReviewRecord `json:"review_history"`

	// Per-card performance aggregates.
	TotalReviews   int     `json:"total_reviews"`
	CorrectReviews int     `json:"correct_reviews"`
	AverageSeconds float64 `json:"average_seconds"`

	// Version guards concurrent writes. The store increments it on every
	// successful update and rejects writes against a stale version.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewMemoryState creates the enrollment-time record for a (student, item)
// pair: never reviewed, due immediately, with the supplied initial stability
// and difficulty from the memory model's parameter set.
func NewMemoryState(
	studentID, itemID, courseID uuid.UUID,
	topic string,
	initialStability, initialDifficulty float64,
) (*MemoryState, error) {
	now := time.Now().UTC()
	state := &MemoryState{
		StudentID:     studentID,
		ItemID:        itemID,
		CourseID:      courseID,
		Topic:         topic,
		Stability:     initialStability,
		Difficulty:    initialDifficulty,
		Lifecycle:     LifecycleNew,
		DueAt:         now, // available for review immediately
		ReviewHistory: []ReviewRecord{},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := state.Validate(); err != nil {
		return nil, err
	}

	return state, nil
}

// Validate checks the MemoryState invariants.
// Returns a domain error if any field is out of range.
func (s *MemoryState) Validate() error {
	if s.StudentID == uuid.Nil {
		return fmt.Errorf("%w: student ID cannot be empty", ErrInvalidID)
	}
	if s.ItemID == uuid.Nil {
		return fmt.Errorf("%w: item ID cannot be empty", ErrInvalidID)
	}
	if s.CourseID == uuid.Nil {
		return fmt.Errorf("%w: course ID cannot be empty", ErrInvalidID)
	}
	if s.Stability <= 0 {
		return ErrInvalidStability
	}
	if s.Difficulty < 1 || s.Difficulty > 10 {
		return ErrInvalidDifficulty
	}
	if !s.Lifecycle.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLifecycle, s.Lifecycle)
	}
	if s.RepetitionCount < 0 || s.LapseCount < 0 {
		return fmt.Errorf("%w: counters cannot be negative", ErrValidation)
	}
	if !s.LastReviewedAt.IsZero() && s.DueAt.Before(s.LastReviewedAt) {
		return fmt.Errorf("%w: due time cannot precede last review", ErrValidation)
	}
	return nil
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate shared state in place.
func (s *MemoryState) Clone() *MemoryState {
	cp := *s
	cp.ReviewHistory = make([]ReviewRecord, len(s.ReviewHistory))
	copy(cp.ReviewHistory, s.ReviewHistory)
	return &cp
}

// Due reports whether the card is due for review as of the given time.
func (s *MemoryState) Due(asOf time.Time) bool {
	return !s.DueAt.After(asOf)
}
