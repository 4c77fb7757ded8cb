// Package task hosts the scheduler's background workers.
package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/revisely/scheduler/internal/domain"
	"github.com/revisely/scheduler/internal/platform/metrics"
	"github.com/revisely/scheduler/internal/store"
)

// ReaperConfig holds configuration for the session reaper.
type ReaperConfig struct {
	// InactivityTimeout defines how long an Active session can sit without a
	// submission before it is considered stale and abandoned.
	InactivityTimeout time.Duration

	// CheckInterval defines how often to scan for stale sessions. Zero
	// falls back to 10 minutes.
	CheckInterval time.Duration

	// BatchSize caps how many sessions one scan abandons. Zero falls back
	// to 100.
	BatchSize int
}

// DefaultReaperConfig returns a ReaperConfig with reasonable defaults.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		InactivityTimeout: 2 * time.Hour,
		CheckInterval:     10 * time.Minute,
		BatchSize:         100,
	}
}

// Reaper abandons practice sessions that have gone quiet. Sessions never
// expire mid-answer on their own; this is the only path from Active to
// Abandoned besides an explicit abandon call.
type Reaper struct {
	sessions   store.SessionStore
	metrics    *metrics.Collector
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     ReaperConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewReaper creates a new Reaper.
func NewReaper(
	sessions store.SessionStore,
	collector *metrics.Collector,
	config ReaperConfig,
	logger *slog.Logger,
) *Reaper {
	if sessions == nil {
		panic("sessions cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Apply defaults for unset fields.
	if config.CheckInterval == 0 {
		config.CheckInterval = 10 * time.Minute
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Reaper{
		sessions:   sessions,
		metrics:    collector,
		ctx:        ctx,
		cancelFunc: cancel,
		wg:         sync.WaitGroup{},
		config:     config,
		logger:     logger.With("component", "session_reaper"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the periodic scan in a background goroutine.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop gracefully shuts down the reaper, waiting for an in-flight scan to
// finish.
func (r *Reaper) Stop() {
	r.cancelFunc()
	r.wg.Wait()
}

// run loops until the reaper is stopped.
func (r *Reaper) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.CheckInterval)
	defer ticker.Stop()

	r.logger.Info("session reaper started",
		"inactivity_timeout", r.config.InactivityTimeout.String(),
		"check_interval", r.config.CheckInterval.String())

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Info("session reaper stopped")
			return

		case <-ticker.C:
			if n, err := r.ReapOnce(r.ctx); err != nil {
				r.logger.Error("reaper scan failed", "error", err)
			} else if n > 0 {
				r.logger.Info("abandoned stale sessions", "count", n)
			}
		}
	}
}

// ReapOnce performs a single scan and returns how many sessions it
// abandoned. Exposed so operators can trigger a sweep on demand.
func (r *Reaper) ReapOnce(ctx context.Context) (int, error) {
	now := r.now()
	cutoff := now.Add(-r.config.InactivityTimeout)

	stale, err := r.sessions.ListInactive(ctx, cutoff, r.config.BatchSize)
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for _, session := range stale {
		if err := r.sessions.SetStatus(ctx, session.ID, domain.SessionAbandoned, now); err != nil {
			// A session that got finalized or deleted since the snapshot is
			// already settled; the store refuses to overwrite it.
			if errors.Is(err, store.ErrSessionNotActive) || errors.Is(err, store.ErrSessionNotFound) {
				r.logger.Debug("stale session already settled",
					"session_id", session.ID.String())
				continue
			}
			r.logger.Warn("failed to abandon stale session",
				"session_id", session.ID.String(),
				"error", err)
			continue
		}
		abandoned++
		r.metrics.ObserveSessionEvent("abandoned")

		r.logger.Debug("abandoned stale session",
			"session_id", session.ID.String(),
			"student_id", session.StudentID.String(),
			"last_activity_at", session.LastActivityAt)
	}

	return abandoned, nil
}
