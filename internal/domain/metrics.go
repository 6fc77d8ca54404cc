package domain

import (
	"time"

	"github.com/google/uuid"
)

// TestCaseTiming is the per-case timing breakdown.
type TestCaseTiming struct {
	Index     int `json:"index"`
	CompileMs int `json:"compileMs"`
	ExecuteMs int `json:"executeMs"`
}

// ExecutionMetrics is the fine-grained companion record of a judged submission.
// It is written once, after judging finishes.
type ExecutionMetrics struct {
	SubmissionID    uuid.UUID        `json:"submission_id"`
	QueueWaitMs     int              `json:"queue_wait_ms"`
	CompilationMs   int              `json:"compilation_ms"`
	ExecutionMs     int              `json:"execution_ms"`
	TotalMs         int              `json:"total_ms"`
	PeakMemoryKb    int              `json:"peak_memory_kb"`
	CPUTimeMs       int              `json:"cpu_time_ms"`
	WorkerID        string           `json:"worker_id"`
	ExecutionNode   string           `json:"execution_node,omitempty"`
	ContainerID     string           `json:"container_id,omitempty"`
	UsedCache       bool             `json:"used_cache"`
	TestCaseTimings []TestCaseTiming `json:"test_case_timings,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}
