package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckIns counts check-in attempts by outcome ("ok", "duplicate", or a rejection reason).
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "checkins_total",
		Help:      "Check-in attempts by outcome.",
	}, []string{"outcome"})

	// CheckInDuration observes the time spent inside the check-in engine.
	CheckInDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kiosk",
		Name:      "checkin_duration_seconds",
		Help:      "Check-in engine latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// Snapshots counts evidence capture results ("captured", "skipped", "failed", "timeout").
	Snapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "snapshots_total",
		Help:      "Snapshot capture results.",
	}, []string{"result"})

	// RateLimited counts requests rejected by the attempt limiters.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter.",
	}, []string{"limiter"})

	// AuditFailures counts audit events that could not be stored.
	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "audit_write_failures_total",
		Help:      "Audit events dropped because the store rejected them.",
	})
)
