package governance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	proposalsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "governance_proposals_created_total",
		Help: "Number of proposals created.",
	})

	votesCastTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "governance_votes_cast_total",
		Help: "Number of votes cast or updated, by decision.",
	}, []string{"decision"})

	proposalsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "governance_proposals_closed_total",
		Help: "Number of proposals closed, by terminal voting status.",
	}, []string{"status"})

	executionsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "governance_executions_recorded_total",
		Help: "Number of execution outcomes recorded, by resulting status.",
	}, []string{"status"})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "governance_sweep_duration_seconds",
		Help:    "Wall-clock duration of deadline sweep cycles.",
		Buckets: prometheus.DefBuckets,
	})

	sweepClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "governance_sweep_closed_total",
		Help: "Number of proposals closed by the deadline sweeper.",
	})

	sweepFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "governance_sweep_failures_total",
		Help: "Number of per-proposal closure failures during sweeps.",
	})
)
