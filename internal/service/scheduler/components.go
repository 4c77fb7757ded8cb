package scheduler

import (
	"github.com/revisely/scheduler/internal/config"
	"github.com/revisely/scheduler/internal/domain/fsrs"
	"github.com/revisely/scheduler/internal/service/composer"
)

// NewMemoryModel builds the memory-model service from the scheduler
// configuration. Only the knobs the config exposes override the model
// defaults; the per-rating constants stay as shipped.
func NewMemoryModel(cfg config.SchedulerConfig) fsrs.Service {
	return fsrs.NewServiceWithParams(fsrs.NewParams(fsrs.ParamsConfig{
		TargetRetention: cfg.TargetRetention,
		MaxIntervalDays: cfg.MaxIntervalDays,
	}))
}

// NewComposer builds the session composer from the scheduler configuration.
// Additional options (a seeded randomness source, for instance) apply after
// the config-derived ones.
func NewComposer(cfg config.SchedulerConfig, opts ...composer.Option) *composer.Composer {
	base := []composer.Option{
		composer.WithJitter(cfg.JitterProbability),
		composer.WithMaxTopicRunLength(cfg.MaxTopicRunLength),
	}
	return composer.New(append(base, opts...)...)
}
