package domain

import "fmt"

// Rating is a student's self-assessment of one review, on the standard
// four-point spaced-repetition scale.
type Rating int

// Possible rating values. The numeric values are part of the external
// contract (clients submit integers 1-4) and must not be reordered.
const (
	RatingAgain Rating = 1 // complete forget, relearn
	RatingHard  Rating = 2 // recalled with significant difficulty
	RatingGood  Rating = 3 // recalled correctly
	RatingEasy  Rating = 4 // recalled easily
)

// ErrInvalidRating is returned when a rating outside 1-4 is submitted.
// Callers must surface it, never coerce the value.
var ErrInvalidRating = fmt.Errorf("rating must be between 1 (again) and 4 (easy)")

// Valid reports whether the rating is within the 1-4 domain.
func (r Rating) Valid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

// Validate returns ErrInvalidRating for values outside the 1-4 domain.
func (r Rating) Validate() error {
	if !r.Valid() {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, int(r))
	}
	return nil
}

// Correct reports whether the rating counts as a successful recall.
// Good and Easy are successes; Again and Hard are not.
func (r Rating) Correct() bool {
	return r >= RatingGood
}

// String implements fmt.Stringer.
func (r Rating) String() string {
	switch r {
	case RatingAgain:
		return "again"
	case RatingHard:
		return "hard"
	case RatingGood:
		return "good"
	case RatingEasy:
		return "easy"
	default:
		return fmt.Sprintf("rating(%d)", int(r))
	}
}
