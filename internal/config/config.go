package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

// ServerConfig contains process-level settings.
type ServerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// MetricsAddr is the listen address for the Prometheus scrape endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// SchedulerConfig contains the tunables of the spaced-repetition core.
type SchedulerConfig struct {
	// TargetRetention is the recall probability at which cards come due.
	TargetRetention float64 `mapstructure:"target_retention" validate:"required,gt=0,lt=1"`

	// MaxIntervalDays bounds how far out a review can be scheduled.
	MaxIntervalDays float64 `mapstructure:"max_interval_days" validate:"required,gt=0"`

	// SessionTargetCount is the default number of cards per session.
	SessionTargetCount int `mapstructure:"session_target_count" validate:"required,gt=0"`

	// JitterProbability is the chance that a composition step ignores the
	// nominal topic pick in favor of a random eligible one.
	JitterProbability float64 `mapstructure:"jitter_probability" validate:"gte=0,lte=1"`

	// MaxTopicRunLength caps consecutive same-topic cards in a session
	// while at least two topics still hold due cards.
	MaxTopicRunLength int `mapstructure:"max_topic_run_length" validate:"required,gte=1"`

	// ReviewRetryLimit bounds optimistic-concurrency retries per submission.
	ReviewRetryLimit int `mapstructure:"review_retry_limit" validate:"required,gte=1"`

	// InactivityTimeoutMinutes is how long an Active session may sit idle
	// before the reaper abandons it.
	InactivityTimeoutMinutes int `mapstructure:"inactivity_timeout_minutes" validate:"required,gt=0"`

	// ReaperIntervalMinutes is how often the reaper scans for idle sessions.
	ReaperIntervalMinutes int `mapstructure:"reaper_interval_minutes" validate:"required,gt=0"`
}
