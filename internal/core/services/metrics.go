package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics
var (
	ledgerMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_mutations_total",
			Help: "Total number of ledger mutations by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	ledgerMutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_mutation_duration_seconds",
			Help:    "Duration of ledger mutations including the incremental recompute",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	recomputeConflictRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recompute_conflict_retries_total",
			Help: "Total number of mutations retried after a serialization failure or deadlock",
		},
		[]string{"operation"},
	)

	recomputeRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recompute_balance_rows_total",
			Help: "Total number of balance records written by incremental recomputes",
		},
	)

	resetStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balance_reset_stage_duration_seconds",
			Help:    "Duration of full recompute stages",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300},
		},
		[]string{"stage"},
	)

	resetRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_reset_runs_total",
			Help: "Total number of full recomputes by outcome",
		},
		[]string{"status"},
	)

	balanceDriftsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_drifts_total",
			Help: "Total number of drifted balances found by verification",
		},
		[]string{"reason"},
	)

	aggregateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregate_query_duration_seconds",
			Help:    "Duration of aggregate balance queries",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2},
		},
		[]string{"granularity"},
	)
)
