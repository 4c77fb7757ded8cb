package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables (prefix SCHEDULER_, nested keys joined with _)
// take precedence over file values, which take precedence over defaults.
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/scheduler")

	v.SetEnvPrefix("SCHEDULER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.metrics_addr", ":9090")

	// Registered empty so AutomaticEnv can bind SCHEDULER_DATABASE_URL;
	// validation still rejects a missing URL.
	v.SetDefault("database.url", "")

	v.SetDefault("scheduler.target_retention", 0.9)
	v.SetDefault("scheduler.max_interval_days", 36500)
	v.SetDefault("scheduler.session_target_count", 20)
	v.SetDefault("scheduler.jitter_probability", 0.2)
	v.SetDefault("scheduler.max_topic_run_length", 1)
	v.SetDefault("scheduler.review_retry_limit", 3)
	v.SetDefault("scheduler.inactivity_timeout_minutes", 120)
	v.SetDefault("scheduler.reaper_interval_minutes", 10)
}
