package fsrs

import (
	"github.com/revisely/scheduler/internal/domain"
)

// Params defines all configurable parameters for the memory model.
//
// The forgetting curve is the power law R(t, S) = (1 + t/(f·S))^(-g) with
// f = ForgettingFactor and g = ForgettingDecay. The defaults (f=9, g=1) give
// R(S, S) = 0.9, so a card's stability is exactly the interval at which recall
// probability decays to the default retention target.
type Params struct {
	// Initial stability per first rating, in days. Strictly increasing
	// from Again to Easy.
	BaseStability map[domain.Rating]float64

	// Difficulty assigned at first review, mid-scale on [1, 10].
	BaseDifficulty float64

	// Additive difficulty adjustment per rating. Positive for Again,
	// negative for Easy.
	DifficultyDelta map[domain.Rating]float64

	// MeanReversion pulls difficulty back toward BaseDifficulty on every
	// review, preventing runaway extremes. Weight of the baseline in [0, 1).
	MeanReversion float64

	// Stability growth coefficient per successful rating. Strictly
	// increasing from Hard to Easy; Again never grows stability.
	GrowthRate map[domain.Rating]float64

	// LapseBase scales the stability penalty on a lapse. The effective
	// decay is LapseBase·(11−difficulty)/10, always inside (0, 1).
	LapseBase float64

	// Forgetting-curve shape.
	ForgettingFactor float64 // f > 0
	ForgettingDecay  float64 // g > 0

	// TargetRetention is the recall probability at which a card comes due.
	TargetRetention float64

	// Stability clamps. MinStability keeps the invariant stability > 0
	// through repeated lapses; MaxIntervalDays bounds scheduling horizons.
	MinStability    float64
	MaxIntervalDays float64
}

// ParamsConfig allows overriding the default parameters when creating a new
// Params instance. Zero values leave the corresponding default untouched.
type ParamsConfig struct {
	AgainStability float64
	HardStability  float64
	GoodStability  float64
	EasyStability  float64

	BaseDifficulty float64

	AgainDifficultyDelta float64
	HardDifficultyDelta  float64
	GoodDifficultyDelta  float64
	EasyDifficultyDelta  float64

	MeanReversion float64

	HardGrowthRate float64
	GoodGrowthRate float64
	EasyGrowthRate float64

	LapseBase float64

	ForgettingFactor float64
	ForgettingDecay  float64
	TargetRetention  float64

	MinStability    float64
	MaxIntervalDays float64
}

// NewDefaultParams creates a new Params instance with default values.
func NewDefaultParams() *Params {
	return &Params{
		BaseStability: map[domain.Rating]float64{
			domain.RatingAgain: 0.4,
			domain.RatingHard:  0.6,
			domain.RatingGood:  2.4,
			domain.RatingEasy:  5.8,
		},

		BaseDifficulty: 5.0,

		DifficultyDelta: map[domain.Rating]float64{
			domain.RatingAgain: 1.2,
			domain.RatingHard:  0.5,
			domain.RatingGood:  0.0,
			domain.RatingEasy:  -0.6,
		},

		MeanReversion: 0.05,

		GrowthRate: map[domain.Rating]float64{
			domain.RatingHard: 0.8,
			domain.RatingGood: 1.6,
			domain.RatingEasy: 2.6,
		},

		LapseBase: 0.5,

		ForgettingFactor: 9.0,
		ForgettingDecay:  1.0,
		TargetRetention:  0.9,

		MinStability:    0.1,
		MaxIntervalDays: 36500,
	}
}

// NewParams creates a new Params instance with custom configuration.
// Only non-zero config fields override the defaults.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.AgainStability > 0 {
		params.BaseStability[domain.RatingAgain] = config.AgainStability
	}
	if config.HardStability > 0 {
		params.BaseStability[domain.RatingHard] = config.HardStability
	}
	if config.GoodStability > 0 {
		params.BaseStability[domain.RatingGood] = config.GoodStability
	}
	if config.EasyStability > 0 {
		params.BaseStability[domain.RatingEasy] = config.EasyStability
	}

	if config.BaseDifficulty > 0 {
		params.BaseDifficulty = config.BaseDifficulty
	}

	if config.AgainDifficultyDelta != 0 {
		params.DifficultyDelta[domain.RatingAgain] = config.AgainDifficultyDelta
	}
	if config.HardDifficultyDelta != 0 {
		params.DifficultyDelta[domain.RatingHard] = config.HardDifficultyDelta
	}
	if config.GoodDifficultyDelta != 0 {
		params.DifficultyDelta[domain.RatingGood] = config.GoodDifficultyDelta
	}
	if config.EasyDifficultyDelta != 0 {
		params.DifficultyDelta[domain.RatingEasy] = config.EasyDifficultyDelta
	}

	if config.MeanReversion > 0 {
		params.MeanReversion = config.MeanReversion
	}

	if config.HardGrowthRate > 0 {
		params.GrowthRate[domain.RatingHard] = config.HardGrowthRate
	}
	if config.GoodGrowthRate > 0 {
		params.GrowthRate[domain.RatingGood] = config.GoodGrowthRate
	}
	if config.EasyGrowthRate > 0 {
		params.GrowthRate[domain.RatingEasy] = config.EasyGrowthRate
	}

	if config.LapseBase > 0 {
		params.LapseBase = config.LapseBase
	}

	if config.ForgettingFactor > 0 {
		params.ForgettingFactor = config.ForgettingFactor
	}
	if config.ForgettingDecay > 0 {
		params.ForgettingDecay = config.ForgettingDecay
	}
	if config.TargetRetention > 0 {
		params.TargetRetention = config.TargetRetention
	}

	if config.MinStability > 0 {
		params.MinStability = config.MinStability
	}
	if config.MaxIntervalDays > 0 {
		params.MaxIntervalDays = config.MaxIntervalDays
	}

	return params
}
