package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsJudged counts submissions reaching a terminal state by language, status and verdict.
	SubmissionsJudged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "algocrack_submissions_judged_total",
			Help: "Total number of submissions that reached a terminal state",
		},
		[]string{"language", "status", "verdict"},
	)

	// JudgeDuration tracks wall time from claim to terminal state.
	JudgeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "algocrack_judge_duration_seconds",
			Help:    "Duration of judging a submission in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"language"},
	)

	// WorkersActive tracks the number of currently busy workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "algocrack_workers_active",
			Help: "Number of worker goroutines currently judging",
		},
	)

	// EngineFailures counts execution engine infrastructure failures (not user code errors).
	EngineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "algocrack_engine_failures_total",
			Help: "Total number of execution engine infrastructure failures",
		},
		[]string{"op"},
	)

	// OracleInvocations counts reference solution runs by result.
	OracleInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "algocrack_oracle_invocations_total",
			Help: "Total number of reference solution executions",
		},
		[]string{"result"},
	)

	// StatsConflicts counts optimistic-version conflicts on question statistics.
	StatsConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "algocrack_statistics_conflicts_total",
			Help: "Total number of statistics compare-and-swap retries",
		},
	)

	// SubmissionsAccepted counts submissions accepted for judging by the API.
	SubmissionsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "algocrack_submissions_enqueued_total",
			Help: "Total number of submissions queued for judging",
		},
		[]string{"language", "mode"},
	)
)
