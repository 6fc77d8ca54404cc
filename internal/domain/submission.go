package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus represents the lifecycle state of a submission.
type SubmissionStatus string

const (
	StatusQueued    SubmissionStatus = "QUEUED"
	StatusCompiling SubmissionStatus = "COMPILING"
	StatusRunning   SubmissionStatus = "RUNNING"
	StatusCompleted SubmissionStatus = "COMPLETED"
	StatusFailed    SubmissionStatus = "FAILED"
)

// IsTerminal returns true if the status represents a final state.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Verdict is the final classification of a judged submission.
type Verdict string

const (
	VerdictAccepted            Verdict = "ACCEPTED"
	VerdictWrongAnswer         Verdict = "WRONG_ANSWER"
	VerdictTimeLimitExceeded   Verdict = "TIME_LIMIT_EXCEEDED"
	VerdictMemoryLimitExceeded Verdict = "MEMORY_LIMIT_EXCEEDED"
	VerdictRuntimeError        Verdict = "RUNTIME_ERROR"
	VerdictCompileError        Verdict = "COMPILE_ERROR"
	VerdictInternalError       Verdict = "INTERNAL_ERROR"
)

// Priority orders failing verdicts when several test cases fail differently.
// Higher wins: COMPILE_ERROR > RUNTIME_ERROR > TIME_LIMIT_EXCEEDED > MEMORY_LIMIT_EXCEEDED > WRONG_ANSWER.
func (v Verdict) Priority() int {
	switch v {
	case VerdictInternalError:
		return 6
	case VerdictCompileError:
		return 5
	case VerdictRuntimeError:
		return 4
	case VerdictTimeLimitExceeded:
		return 3
	case VerdictMemoryLimitExceeded:
		return 2
	case VerdictWrongAnswer:
		return 1
	}
	return 0
}

// Mode selects which test cases are judged.
type Mode string

const (
	// ModeRun evaluates DEFAULT cases only and surfaces every result.
	ModeRun Mode = "run"
	// ModeSubmit evaluates DEFAULT and HIDDEN cases and counts toward statistics.
	ModeSubmit Mode = "submit"
)

// IsValid checks the mode is known.
func (m Mode) IsValid() bool {
	return m == ModeRun || m == ModeSubmit
}

// TestCaseResult is one entry of the ordered per-case breakdown.
type TestCaseResult struct {
	Index           int     `json:"index"`
	Passed          bool    `json:"passed"`
	ActualOutput    string  `json:"actualOutput,omitempty"`
	ExecutionTimeMs int     `json:"executionTimeMs"`
	MemoryKb        int     `json:"memoryKb,omitempty"`
	Verdict         Verdict `json:"verdict,omitempty"`
	Hidden          bool    `json:"hidden,omitempty"`
}

// Judgement carries everything written onto a submission when it reaches a terminal state.
type Judgement struct {
	Verdict           Verdict
	Results           []TestCaseResult
	PassedTestCases   int
	TotalTestCases    int
	RuntimeMs         *int
	MemoryKb          *int
	ErrorMessage      string
	CompilationOutput string
}

// Submission is a user's code for a question, tracked from queueing to verdict.
type Submission struct {
	ID                int64            `json:"-"`
	SubmissionID      uuid.UUID        `json:"submission_id"`
	UserID            string           `json:"user_id"`
	QuestionID        int64            `json:"question_id"`
	Language          Language         `json:"language"`
	Code              string           `json:"code,omitempty"`
	Mode              Mode             `json:"mode"`
	Status            SubmissionStatus `json:"status"`
	Verdict           *Verdict         `json:"verdict,omitempty"`
	RuntimeMs         *int             `json:"runtime_ms,omitempty"`
	MemoryKb          *int             `json:"memory_kb,omitempty"`
	TestResults       []TestCaseResult `json:"test_results,omitempty"`
	PassedTestCases   int              `json:"passed_test_cases"`
	TotalTestCases    int              `json:"total_test_cases"`
	ErrorMessage      string           `json:"error_message,omitempty"`
	CompilationOutput string           `json:"compilation_output,omitempty"`
	QueuedAt          time.Time        `json:"queued_at"`
	StartedAt         *time.Time       `json:"started_at,omitempty"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	IPAddress         string           `json:"-"`
	UserAgent         string           `json:"-"`
	WorkerID          string           `json:"worker_id,omitempty"`
	StatsRecorded     bool             `json:"-"`
}

// NewSubmission creates a submission in the QUEUED state with a fresh time-ordered external id.
func NewSubmission(userID string, questionID int64, lang Language, code string, mode Mode, now time.Time) (*Submission, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}
	return &Submission{
		SubmissionID: id,
		UserID:       userID,
		QuestionID:   questionID,
		Language:     lang,
		Code:         code,
		Mode:         mode,
		Status:       StatusQueued,
		QueuedAt:     now.UTC(),
	}, nil
}

// BeginCompilation claims the submission for a worker: QUEUED → COMPILING.
func (s *Submission) BeginCompilation(workerID string, now time.Time) error {
	if s.Status != StatusQueued {
		return s.invalid(StatusCompiling)
	}
	started := notBefore(now.UTC(), s.QueuedAt)
	s.Status = StatusCompiling
	s.StartedAt = &started
	s.WorkerID = workerID
	return nil
}

// BeginExecution moves COMPILING → RUNNING.
func (s *Submission) BeginExecution(now time.Time) error {
	if s.Status != StatusCompiling {
		return s.invalid(StatusRunning)
	}
	s.Status = StatusRunning
	if s.StartedAt == nil {
		started := notBefore(now.UTC(), s.QueuedAt)
		s.StartedAt = &started
	}
	return nil
}

// Complete records a normal verdict: RUNNING → COMPLETED.
// Terminal states are write-once, so a second call fails and leaves the first result intact.
func (s *Submission) Complete(j Judgement, now time.Time) error {
	if s.Status != StatusRunning {
		return s.invalid(StatusCompleted)
	}
	if j.Verdict == "" || j.Verdict == VerdictInternalError {
		return fmt.Errorf("%w: complete requires a judged verdict, got %q", ErrInvalidTransition, j.Verdict)
	}
	s.finish(StatusCompleted, j, now)
	return nil
}

// Fail moves any non-terminal state to FAILED.
// An empty verdict is recorded as INTERNAL_ERROR.
func (s *Submission) Fail(j Judgement, now time.Time) error {
	if s.Status.IsTerminal() {
		return s.invalid(StatusFailed)
	}
	if j.Verdict == "" {
		j.Verdict = VerdictInternalError
	}
	s.finish(StatusFailed, j, now)
	return nil
}

func (s *Submission) finish(status SubmissionStatus, j Judgement, now time.Time) {
	floor := s.QueuedAt
	if s.StartedAt != nil {
		floor = *s.StartedAt
	}
	completed := notBefore(now.UTC(), floor)
	verdict := j.Verdict

	passed := j.PassedTestCases
	if passed > j.TotalTestCases {
		passed = j.TotalTestCases
	}

	s.Status = status
	s.Verdict = &verdict
	s.CompletedAt = &completed
	s.TestResults = j.Results
	s.PassedTestCases = passed
	s.TotalTestCases = j.TotalTestCases
	s.RuntimeMs = j.RuntimeMs
	s.MemoryKb = j.MemoryKb
	s.ErrorMessage = j.ErrorMessage
	s.CompilationOutput = j.CompilationOutput
}

func (s *Submission) invalid(to SubmissionStatus) error {
	return &InvalidTransitionError{SubmissionID: s.SubmissionID.String(), From: s.Status, To: to}
}

// IsAccepted reports whether the submission was judged ACCEPTED.
func (s *Submission) IsAccepted() bool {
	return s.Verdict != nil && *s.Verdict == VerdictAccepted
}

// ProcessingTimeMs is the time from queueing to completion, if completed.
func (s *Submission) ProcessingTimeMs() *int64 {
	if s.CompletedAt == nil {
		return nil
	}
	ms := s.CompletedAt.Sub(s.QueuedAt).Milliseconds()
	return &ms
}

// QueueWaitTimeMs is the time spent waiting for a worker, if started.
func (s *Submission) QueueWaitTimeMs() *int64 {
	if s.StartedAt == nil {
		return nil
	}
	ms := s.StartedAt.Sub(s.QueuedAt).Milliseconds()
	return &ms
}

// Consistent checks the record-level invariants of a submission.
func (s *Submission) Consistent() error {
	if (s.Verdict != nil) != s.Status.IsTerminal() {
		return fmt.Errorf("verdict presence does not match status %s", s.Status)
	}
	if s.StartedAt != nil && s.StartedAt.Before(s.QueuedAt) {
		return fmt.Errorf("started_at precedes queued_at")
	}
	if s.StartedAt != nil && s.CompletedAt != nil && s.CompletedAt.Before(*s.StartedAt) {
		return fmt.Errorf("completed_at precedes started_at")
	}
	if s.PassedTestCases > s.TotalTestCases {
		return fmt.Errorf("passed test cases exceed total")
	}
	return nil
}

// Clone returns a deep copy.
func (s *Submission) Clone() *Submission {
	c := *s
	if s.Verdict != nil {
		v := *s.Verdict
		c.Verdict = &v
	}
	if s.RuntimeMs != nil {
		v := *s.RuntimeMs
		c.RuntimeMs = &v
	}
	if s.MemoryKb != nil {
		v := *s.MemoryKb
		c.MemoryKb = &v
	}
	if s.StartedAt != nil {
		v := *s.StartedAt
		c.StartedAt = &v
	}
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		c.CompletedAt = &v
	}
	if s.TestResults != nil {
		c.TestResults = append([]TestCaseResult(nil), s.TestResults...)
	}
	return &c
}

func notBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
