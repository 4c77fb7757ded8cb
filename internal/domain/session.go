package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStatus describes the lifecycle of a practice session.
type SessionStatus string

// Possible session status values. Completed and Abandoned are terminal.
const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// Valid reports whether the status is one of the three known values.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionCompleted, SessionAbandoned:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status accepts no further submissions.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

// CardResponse records one answered card within a session.
type CardResponse struct {
	ItemID         uuid.UUID `json:"item_id"`
	Rating         Rating    `json:"rating"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// PracticeSession is one sitting of interleaved review. The card sequence is
// fixed at creation; the cursor always points at the next unanswered card and
// must equal the number of recorded responses.
type PracticeSession struct {
	ID        uuid.UUID `json:"id"`
	StudentID uuid.UUID `json:"student_id"`
	CourseID  uuid.UUID `json:"course_id"`

	CardSequence []uuid.UUID    `json:"card_sequence"`
	Cursor       int            `json:"cursor"`
	Responses    []CardResponse `json:"responses"`

	Status      SessionStatus `json:"status"`
	Interleaved bool          `json:"interleaved"`

	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at,omitempty"` // zero while open
	LastActivityAt time.Time `json:"last_activity_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPracticeSession creates an Active session over the given card sequence.
// An empty sequence yields a session that is already Completed: "nothing due"
// is a normal outcome, not an error.
func NewPracticeSession(
	studentID, courseID uuid.UUID,
	cardSequence []uuid.UUID,
	interleaved bool,
) (*PracticeSession, error) {
	now := time.Now().UTC()
	session := &PracticeSession{
		ID:             uuid.New(),
		StudentID:      studentID,
		CourseID:       courseID,
		CardSequence:   cardSequence,
		Responses:      []CardResponse{},
		Status:         SessionActive,
		Interleaved:    interleaved,
		StartedAt:      now,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if len(cardSequence) == 0 {
		session.Status = SessionCompleted
		session.CompletedAt = now
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// Validate checks the PracticeSession invariants.
func (p *PracticeSession) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: session ID cannot be empty", ErrInvalidID)
	}
	if p.StudentID == uuid.Nil {
		return fmt.Errorf("%w: student ID cannot be empty", ErrInvalidID)
	}
	if p.CourseID == uuid.Nil {
		return fmt.Errorf("%w: course ID cannot be empty", ErrInvalidID)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSessionStatus, p.Status)
	}
	if p.Cursor != len(p.Responses) {
		return ErrCursorMismatch
	}
	if p.Cursor > len(p.CardSequence) {
		return fmt.Errorf("%w: cursor beyond card sequence", ErrValidation)
	}
	if p.Status == SessionCompleted && p.Cursor != len(p.CardSequence) {
		return fmt.Errorf("%w: completed session with unanswered cards", ErrValidation)
	}
	return nil
}

// CurrentItem returns the item the cursor points at, or false when every
// card has been answered.
func (p *PracticeSession) CurrentItem() (uuid.UUID, bool) {
	if p.Cursor >= len(p.CardSequence) {
		return uuid.Nil, false
	}
	return p.CardSequence[p.Cursor], true
}

// Finished reports whether every card in the sequence has been answered.
func (p *PracticeSession) Finished() bool {
	return p.Cursor == len(p.CardSequence)
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate shared state in place.
func (p *PracticeSession) Clone() *PracticeSession {
	cp := *p
	cp.CardSequence = make([]uuid.UUID, len(p.CardSequence))
	copy(cp.CardSequence, p.CardSequence)
	cp.Responses = make([]CardResponse, len(p.Responses))
	copy(cp.Responses, p.Responses)
	return &cp
}
