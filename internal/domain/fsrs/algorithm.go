package fsrs

import (
	"math"
	"time"

	"github.com/revisely/scheduler/internal/domain"
)

// retrievabilityEpsilon is the floor applied to computed recall probability
// so that extreme elapsed times never underflow downstream arithmetic.
const retrievabilityEpsilon = 1e-9

// maxEffectiveRecall caps the recall probability used in the stability growth
// term. Without the cap a same-instant review (r = 1) would zero out the
// spacing-effect term and leave stability unchanged; the growth factor must
// stay strictly above 1 for every successful rating.
const maxEffectiveRecall = 0.99

// retrievability computes R(t, S) = (1 + t/(f·S))^(-g): the probability of
// unprompted recall after elapsedDays given stability. The curve is 1 at
// t = 0, strictly decreasing, and asymptotes to 0. The result is clamped to
// [retrievabilityEpsilon, 1].
func retrievability(elapsedDays, stability float64, params *Params) float64 {
	if elapsedDays <= 0 {
		return 1.0
	}

	base := 1 + elapsedDays/(params.ForgettingFactor*stability)
	r := math.Pow(base, -params.ForgettingDecay)

	if r < retrievabilityEpsilon {
		return retrievabilityEpsilon
	}
	if r > 1 {
		return 1
	}
	return r
}

// intervalDays inverts the forgetting curve: the elapsed time at which
// R(t, S) decays to the retention target. Closed form for the power law:
//
//	Δ = f·S·(retention^(-1/g) − 1)
//
// At the defaults (f=9, g=1, retention=0.9) this is exactly the stability.
// The result is capped at MaxIntervalDays; there is no lower floor, so a
// freshly lapsed card can come due within hours.
func intervalDays(stability float64, params *Params) float64 {
	interval := params.ForgettingFactor * stability *
		(math.Pow(params.TargetRetention, -1/params.ForgettingDecay) - 1)

	if interval > params.MaxIntervalDays {
		return params.MaxIntervalDays
	}
	return interval
}

// nextDifficulty applies the rating's additive adjustment, reverts slightly
// toward the baseline, and clamps to the [1, 10] scale. Failures push
// difficulty up; easy recalls pull it down.
func nextDifficulty(difficulty float64, rating domain.Rating, params *Params) float64 {
	adjusted := difficulty + params.DifficultyDelta[rating]

	// Mean reversion keeps repeated extreme ratings from pinning the scale.
	adjusted = params.MeanReversion*params.BaseDifficulty + (1-params.MeanReversion)*adjusted

	return clamp(adjusted, 1, 10)
}

// stabilizationFactor is the multiplicative stability gain for a successful
// recall. It is strictly greater than 1, increases with the rating, decreases
// with difficulty, and grows with how surprising the recall was (low
// retrievability at review time - the spacing effect).
func stabilizationFactor(difficulty, recall float64, rating domain.Rating, params *Params) float64 {
	if recall > maxEffectiveRecall {
		recall = maxEffectiveRecall
	}
	return 1 + params.GrowthRate[rating]*((11-difficulty)/10)*(1-recall)
}

// lapseDecay is the multiplicative stability penalty for a lapse, always
// inside (0, 1). Harder cards lose proportionally more stability.
func lapseDecay(difficulty float64, params *Params) float64 {
	return params.LapseBase * (11 - difficulty) / 10
}

// nextLifecycle determines the state transition for a review. New and
// Learning cards move to Review on success and stay in (or enter) Learning on
// failure; established cards fall to Relearning on a lapse. No state is
// terminal.
func nextLifecycle(current domain.Lifecycle, rating domain.Rating) domain.Lifecycle {
	if rating != domain.RatingAgain {
		return domain.LifecycleReview
	}

	switch current {
	case domain.LifecycleNew, domain.LifecycleLearning:
		return domain.LifecycleLearning
	default:
		return domain.LifecycleRelearning
	}
}

// initializeState applies the first rating to a freshly enrolled card,
// following the initialization contract: stability from the per-rating base
// table, difficulty from the baseline plus the rating's adjustment.
func initializeState(
	state *domain.MemoryState,
	rating domain.Rating,
	now time.Time,
	params *Params,
) *domain.MemoryState {
	next := state.Clone()

	next.Stability = params.BaseStability[rating]
	next.Difficulty = clamp(params.BaseDifficulty+params.DifficultyDelta[rating], 1, 10)
	next.Lifecycle = nextLifecycle(domain.LifecycleNew, rating)
	next.RepetitionCount = 1
	if rating == domain.RatingAgain {
		next.LapseCount = 1
	}

	finishReview(next, rating, 0, now, params)
	return next
}

// updateState applies a rating to a previously reviewed card.
func updateState(
	state *domain.MemoryState,
	rating domain.Rating,
	elapsedDays float64,
	now time.Time,
	params *Params,
) *domain.MemoryState {
	next := state.Clone()

	recall := retrievability(elapsedDays, state.Stability, params)
	next.Difficulty = nextDifficulty(state.Difficulty, rating, params)

	if rating == domain.RatingAgain {
		// A lapse must shorten, never lengthen, the next interval.
		next.Lifecycle = nextLifecycle(state.Lifecycle, rating)
		next.LapseCount = state.LapseCount + 1
		next.Stability = state.Stability * lapseDecay(next.Difficulty, params)
	} else {
		next.Lifecycle = domain.LifecycleReview
		next.Stability = state.Stability * stabilizationFactor(next.Difficulty, recall, rating, params)
	}

	next.Stability = clamp(next.Stability, params.MinStability, params.MaxIntervalDays)
	next.RepetitionCount = state.RepetitionCount + 1

	finishReview(next, rating, elapsedDays, now, params)
	return next
}

// finishReview stamps the review time, schedules the next due time from the
// new stability, and appends the history record shared by both the
// initialization and update paths.
func finishReview(
	next *domain.MemoryState,
	rating domain.Rating,
	elapsedDays float64,
	now time.Time,
	params *Params,
) {
	next.LastReviewedAt = now
	next.DueAt = now.Add(daysToDuration(intervalDays(next.Stability, params)))
	next.UpdatedAt = now

	next.ReviewHistory = append(next.ReviewHistory, domain.ReviewRecord{
		Rating:             rating,
		ReviewedAt:         now,
		ElapsedDays:        elapsedDays,
		ResultingStability: next.Stability,
	})
}

func daysToDuration(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
