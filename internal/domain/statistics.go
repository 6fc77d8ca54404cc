package domain

import (
	"time"

	"github.com/google/uuid"
)

// QuestionStatistics is the running aggregate of judged submissions for one question.
// Version is the optimistic-concurrency counter; every successful write increments it.
type QuestionStatistics struct {
	QuestionID          int64      `json:"question_id"`
	TotalSubmissions    int        `json:"total_submissions"`
	AcceptedSubmissions int        `json:"accepted_submissions"`
	AvgRuntimeMs        *int       `json:"avg_runtime_ms,omitempty"`
	AvgMemoryKb         *int       `json:"avg_memory_kb,omitempty"`
	BestRuntimeMs       *int       `json:"best_runtime_ms,omitempty"`
	BestMemoryKb        *int       `json:"best_memory_kb,omitempty"`
	UniqueAttempts      int        `json:"unique_attempts"`
	UniqueSolves        int        `json:"unique_solves"`
	AvgAttemptsToSolve  *float64   `json:"avg_attempts_to_solve,omitempty"`
	LastSubmissionAt    *time.Time `json:"last_submission_at,omitempty"`
	Version             int64      `json:"version"`

	// Sums over accepted submissions; averages are derived from them so they never drift.
	RuntimeSumMs       int64 `json:"-"`
	MemorySumKb        int64 `json:"-"`
	AttemptsToSolveSum int64 `json:"-"`
}

// AcceptanceRate is derived on read: accepted / total * 100, or 0 with no submissions.
func (s *QuestionStatistics) AcceptanceRate() float64 {
	if s.TotalSubmissions == 0 {
		return 0
	}
	return float64(s.AcceptedSubmissions) * 100 / float64(s.TotalSubmissions)
}

// Outcome is the terminal-state event a judged submission emits for aggregation.
type Outcome struct {
	QuestionID   int64
	SubmissionID uuid.UUID
	UserID       string
	Accepted     bool
	RuntimeMs    int
	MemoryKb     int
	At           time.Time
}

// Outcome returns the statistics event of a terminal submission. Only "submit"
// submissions with a judged verdict count; INTERNAL_ERROR says nothing about the code.
func (s *Submission) Outcome() (Outcome, bool) {
	if !s.Status.IsTerminal() || s.Mode != ModeSubmit || s.Verdict == nil || *s.Verdict == VerdictInternalError {
		return Outcome{}, false
	}
	o := Outcome{
		QuestionID:   s.QuestionID,
		SubmissionID: s.SubmissionID,
		UserID:       s.UserID,
		Accepted:     s.IsAccepted(),
	}
	if s.RuntimeMs != nil {
		o.RuntimeMs = *s.RuntimeMs
	}
	if s.MemoryKb != nil {
		o.MemoryKb = *s.MemoryKb
	}
	if s.CompletedAt != nil {
		o.At = *s.CompletedAt
	}
	return o, true
}

// UserProgress tracks one user's attempts on one question.
type UserProgress struct {
	QuestionID      int64
	UserID          string
	Attempts        int
	Solved          bool
	AttemptsToSolve int
}

// Apply folds one outcome into the aggregate and returns the user's updated progress.
// It does not touch Version; the repository bumps it on a successful compare-and-swap.
func (s *QuestionStatistics) Apply(o Outcome, progress UserProgress) UserProgress {
	s.TotalSubmissions++

	if progress.Attempts == 0 {
		s.UniqueAttempts++
	}
	progress.QuestionID = o.QuestionID
	progress.UserID = o.UserID
	progress.Attempts++

	if o.Accepted {
		s.AcceptedSubmissions++
		s.RuntimeSumMs += int64(o.RuntimeMs)
		s.MemorySumKb += int64(o.MemoryKb)

		if s.BestRuntimeMs == nil || o.RuntimeMs < *s.BestRuntimeMs {
			v := o.RuntimeMs
			s.BestRuntimeMs = &v
		}
		if s.BestMemoryKb == nil || o.MemoryKb < *s.BestMemoryKb {
			v := o.MemoryKb
			s.BestMemoryKb = &v
		}

		avgRuntime := int(s.RuntimeSumMs / int64(s.AcceptedSubmissions))
		avgMemory := int(s.MemorySumKb / int64(s.AcceptedSubmissions))
		s.AvgRuntimeMs = &avgRuntime
		s.AvgMemoryKb = &avgMemory

		if !progress.Solved {
			progress.Solved = true
			progress.AttemptsToSolve = progress.Attempts
			s.UniqueSolves++
			s.AttemptsToSolveSum += int64(progress.AttemptsToSolve)
			avg := float64(s.AttemptsToSolveSum) / float64(s.UniqueSolves)
			s.AvgAttemptsToSolve = &avg
		}
	}

	at := o.At.UTC()
	s.LastSubmissionAt = &at
	return progress
}

// Clone returns a deep copy.
func (s *QuestionStatistics) Clone() *QuestionStatistics {
	c := *s
	c.AvgRuntimeMs = cloneInt(s.AvgRuntimeMs)
	c.AvgMemoryKb = cloneInt(s.AvgMemoryKb)
	c.BestRuntimeMs = cloneInt(s.BestRuntimeMs)
	c.BestMemoryKb = cloneInt(s.BestMemoryKb)
	if s.AvgAttemptsToSolve != nil {
		v := *s.AvgAttemptsToSolve
		c.AvgAttemptsToSolve = &v
	}
	if s.LastSubmissionAt != nil {
		v := *s.LastSubmissionAt
		c.LastSubmissionAt = &v
	}
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
