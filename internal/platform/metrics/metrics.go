// Package metrics provides Prometheus instrumentation for the scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the scheduler's Prometheus instruments. A nil *Collector
// is safe to use; every method no-ops, so wiring metrics stays optional.
type Collector struct {
	reviewsTotal    *prometheus.CounterVec
	reviewRetries   prometheus.Counter
	sessionsTotal   *prometheus.CounterVec
	duePoolSize     prometheus.Histogram
	sessionAccuracy prometheus.Histogram
	registry        *prometheus.Registry
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	reviewsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_reviews_total",
			Help: "Total number of processed reviews by rating",
		},
		[]string{"rating"},
	)

	reviewRetries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_review_retries_total",
			Help: "Total number of optimistic-concurrency retries during review submission",
		},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_sessions_total",
			Help: "Total number of practice sessions by terminal event",
		},
		[]string{"event"},
	)

	duePoolSize := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_due_pool_size",
			Help:    "Number of due cards available when a session is composed",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
		},
	)

	sessionAccuracy := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_session_accuracy",
			Help:    "Accuracy of completed sessions (fraction of ratings good or easy)",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	registry.MustRegister(reviewsTotal)
	registry.MustRegister(reviewRetries)
	registry.MustRegister(sessionsTotal)
	registry.MustRegister(duePoolSize)
	registry.MustRegister(sessionAccuracy)

	return &Collector{
		reviewsTotal:    reviewsTotal,
		reviewRetries:   reviewRetries,
		sessionsTotal:   sessionsTotal,
		duePoolSize:     duePoolSize,
		sessionAccuracy: sessionAccuracy,
		registry:        registry,
	}
}

// ObserveReview records one processed review.
func (c *Collector) ObserveReview(rating string) {
	if c == nil {
		return
	}
	c.reviewsTotal.WithLabelValues(rating).Inc()
}

// ObserveRetry records one optimistic-concurrency retry.
func (c *Collector) ObserveRetry() {
	if c == nil {
		return
	}
	c.reviewRetries.Inc()
}

// ObserveSessionEvent records a session lifecycle event
// ("started", "completed", "abandoned").
func (c *Collector) ObserveSessionEvent(event string) {
	if c == nil {
		return
	}
	c.sessionsTotal.WithLabelValues(event).Inc()
}

// ObserveDuePool records the due-pool size seen at composition time.
func (c *Collector) ObserveDuePool(size int) {
	if c == nil {
		return
	}
	c.duePoolSize.Observe(float64(size))
}

// ObserveSessionAccuracy records a completed session's accuracy.
func (c *Collector) ObserveSessionAccuracy(accuracy float64) {
	if c == nil {
		return
	}
	c.sessionAccuracy.Observe(accuracy)
}

// Registry returns the Prometheus registry for HTTP exposure by the
// enclosing platform.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}
