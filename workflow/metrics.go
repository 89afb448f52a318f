package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytrio_rounds_total",
			Help: "Completed query rounds by outcome",
		},
		[]string{"outcome"},
	)

	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytrio_generations_total",
			Help: "Candidate generation attempts by origin and result",
		},
		[]string{"origin", "result"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querytrio_generation_duration_seconds",
			Help:    "Duration of candidate generation by origin",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"origin"},
	)

	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytrio_executions_total",
			Help: "Query executions by error kind (empty kind means success)",
		},
		[]string{"kind"},
	)

	repairAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytrio_repair_attempts_total",
			Help: "Repair attempts by origin",
		},
		[]string{"origin"},
	)

	decisionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytrio_decisions_rejected_total",
			Help: "Rejected inputs by reason (busy, invalid_phase, unknown_origin)",
		},
		[]string{"reason"},
	)
)
