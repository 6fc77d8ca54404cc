package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hrishabh6/algocrack/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newQueued(t *testing.T) *domain.Submission {
	t.Helper()
	sub, err := domain.NewSubmission("user-1", 7, domain.LangPython, "def f(): pass", domain.ModeSubmit, t0)
	if err != nil {
		t.Fatalf("NewSubmission: %v", err)
	}
	return sub
}

func intp(v int) *int { return &v }

func accepted(passed, total int) domain.Judgement {
	return domain.Judgement{
		Verdict:         domain.VerdictAccepted,
		PassedTestCases: passed,
		TotalTestCases:  total,
		RuntimeMs:       intp(12),
		MemoryKb:        intp(2048),
	}
}

func TestNewSubmission_Queued(t *testing.T) {
	sub := newQueued(t)

	if sub.Status != domain.StatusQueued {
		t.Errorf("expected QUEUED, got %s", sub.Status)
	}
	if sub.Verdict != nil {
		t.Error("queued submission must not carry a verdict")
	}
	if sub.SubmissionID.Version() != 7 {
		t.Errorf("expected UUIDv7 external id, got version %d", sub.SubmissionID.Version())
	}
	if !sub.QueuedAt.Equal(t0) {
		t.Errorf("queuedAt = %v, want %v", sub.QueuedAt, t0)
	}
	if err := sub.Consistent(); err != nil {
		t.Errorf("inconsistent: %v", err)
	}
}

func TestLifecycle_HappyPath(t *testing.T) {
	sub := newQueued(t)

	if err := sub.BeginCompilation("worker-1", t0.Add(time.Second)); err != nil {
		t.Fatalf("BeginCompilation: %v", err)
	}
	if sub.WorkerID != "worker-1" || sub.StartedAt == nil {
		t.Fatalf("claim did not record worker and start time: %+v", sub)
	}
	if err := sub.BeginExecution(t0.Add(2 * time.Second)); err != nil {
		t.Fatalf("BeginExecution: %v", err)
	}
	if !sub.StartedAt.Equal(t0.Add(time.Second)) {
		t.Errorf("BeginExecution must not move an existing startedAt")
	}
	if err := sub.Complete(accepted(3, 3), t0.Add(3*time.Second)); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if sub.Status != domain.StatusCompleted || !sub.IsAccepted() {
		t.Errorf("expected COMPLETED/ACCEPTED, got %s/%v", sub.Status, sub.Verdict)
	}
	if got := *sub.ProcessingTimeMs(); got != 3000 {
		t.Errorf("processing time = %d, want 3000", got)
	}
	if got := *sub.QueueWaitTimeMs(); got != 1000 {
		t.Errorf("queue wait = %d, want 1000", got)
	}
	if err := sub.Consistent(); err != nil {
		t.Errorf("inconsistent: %v", err)
	}
}

func TestLifecycle_ForwardOnly(t *testing.T) {
	tests := []struct {
		name string
		prep func(s *domain.Submission)
		op   func(s *domain.Submission) error
	}{
		{
			name: "execution before compilation",
			prep: func(s *domain.Submission) {},
			op:   func(s *domain.Submission) error { return s.BeginExecution(t0) },
		},
		{
			name: "complete from queued",
			prep: func(s *domain.Submission) {},
			op:   func(s *domain.Submission) error { return s.Complete(accepted(1, 1), t0) },
		},
		{
			name: "complete from compiling",
			prep: func(s *domain.Submission) { _ = s.BeginCompilation("w", t0) },
			op:   func(s *domain.Submission) error { return s.Complete(accepted(1, 1), t0) },
		},
		{
			name: "claim twice",
			prep: func(s *domain.Submission) { _ = s.BeginCompilation("w", t0) },
			op:   func(s *domain.Submission) error { return s.BeginCompilation("w2", t0) },
		},
		{
			name: "back to compiling from running",
			prep: func(s *domain.Submission) {
				_ = s.BeginCompilation("w", t0)
				_ = s.BeginExecution(t0)
			},
			op: func(s *domain.Submission) error { return s.BeginCompilation("w", t0) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newQueued(t)
			tt.prep(sub)
			before := sub.Status

			err := tt.op(sub)
			if !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			var ite *domain.InvalidTransitionError
			if !errors.As(err, &ite) || ite.From != before {
				t.Errorf("expected InvalidTransitionError from %s, got %v", before, err)
			}
			if sub.Status != before {
				t.Errorf("status changed to %s on a rejected transition", sub.Status)
			}
		})
	}
}

func TestComplete_TwiceKeepsFirstResult(t *testing.T) {
	sub := newQueued(t)
	_ = sub.BeginCompilation("w", t0)
	_ = sub.BeginExecution(t0)
	if err := sub.Complete(accepted(2, 2), t0.Add(time.Second)); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	first := sub.Clone()

	wrong := domain.Judgement{Verdict: domain.VerdictWrongAnswer, PassedTestCases: 0, TotalTestCases: 2}
	err := sub.Complete(wrong, t0.Add(time.Hour))
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second Complete, got %v", err)
	}
	if *sub.Verdict != *first.Verdict || !sub.CompletedAt.Equal(*first.CompletedAt) {
		t.Errorf("second Complete altered the terminal record")
	}
	if err := sub.Fail(wrong, t0.Add(time.Hour)); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected Fail after Complete to be rejected, got %v", err)
	}
}

func TestComplete_RejectsInternalError(t *testing.T) {
	sub := newQueued(t)
	_ = sub.BeginCompilation("w", t0)
	_ = sub.BeginExecution(t0)

	err := sub.Complete(domain.Judgement{Verdict: domain.VerdictInternalError}, t0)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if sub.Status != domain.StatusRunning {
		t.Errorf("status changed to %s", sub.Status)
	}
}

func TestFail_FromEveryNonTerminalState(t *testing.T) {
	preps := map[domain.SubmissionStatus]func(s *domain.Submission){
		domain.StatusQueued:    func(s *domain.Submission) {},
		domain.StatusCompiling: func(s *domain.Submission) { _ = s.BeginCompilation("w", t0) },
		domain.StatusRunning: func(s *domain.Submission) {
			_ = s.BeginCompilation("w", t0)
			_ = s.BeginExecution(t0)
		},
	}
	for from, prep := range preps {
		t.Run(string(from), func(t *testing.T) {
			sub := newQueued(t)
			prep(sub)
			if err := sub.Fail(domain.Judgement{ErrorMessage: domain.GenericFailureMessage}, t0.Add(time.Second)); err != nil {
				t.Fatalf("Fail: %v", err)
			}
			if sub.Status != domain.StatusFailed {
				t.Errorf("expected FAILED, got %s", sub.Status)
			}
			if sub.Verdict == nil || *sub.Verdict != domain.VerdictInternalError {
				t.Errorf("expected INTERNAL_ERROR default verdict, got %v", sub.Verdict)
			}
			if err := sub.Consistent(); err != nil {
				t.Errorf("inconsistent: %v", err)
			}
		})
	}
}

func TestTimestamps_NeverGoBackwards(t *testing.T) {
	sub := newQueued(t)

	// A worker clock behind the API clock must not produce startedAt < queuedAt.
	if err := sub.BeginCompilation("w", t0.Add(-5*time.Second)); err != nil {
		t.Fatalf("BeginCompilation: %v", err)
	}
	_ = sub.BeginExecution(t0)
	if err := sub.Complete(accepted(1, 1), t0.Add(-10*time.Second)); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if sub.StartedAt.Before(sub.QueuedAt) {
		t.Errorf("startedAt %v before queuedAt %v", sub.StartedAt, sub.QueuedAt)
	}
	if sub.CompletedAt.Before(*sub.StartedAt) {
		t.Errorf("completedAt %v before startedAt %v", sub.CompletedAt, sub.StartedAt)
	}
}

func TestFinish_CapsPassedAtTotal(t *testing.T) {
	sub := newQueued(t)
	_ = sub.BeginCompilation("w", t0)
	_ = sub.BeginExecution(t0)
	_ = sub.Complete(accepted(5, 3), t0)

	if sub.PassedTestCases != 3 {
		t.Errorf("passed = %d, want capped at 3", sub.PassedTestCases)
	}
}

func TestVerdictPriority(t *testing.T) {
	order := []domain.Verdict{
		domain.VerdictCompileError,
		domain.VerdictRuntimeError,
		domain.VerdictTimeLimitExceeded,
		domain.VerdictMemoryLimitExceeded,
		domain.VerdictWrongAnswer,
		domain.VerdictAccepted,
	}
	for i := 1; i < len(order); i++ {
		if order[i-1].Priority() <= order[i].Priority() {
			t.Errorf("%s should outrank %s", order[i-1], order[i])
		}
	}
}

func TestCasesFor_RunSelectsDefaultOnly(t *testing.T) {
	q := &domain.Question{TestCases: []domain.TestCase{
		{ID: 1, Input: "a", Type: domain.TestCaseDefault},
		{ID: 2, Input: "b", Type: domain.TestCaseHidden},
		{ID: 3, Input: "c", Type: domain.TestCaseDefault},
	}}

	run := q.CasesFor(domain.ModeRun)
	if len(run) != 2 || run[0].ID != 1 || run[1].ID != 3 {
		t.Errorf("run cases = %+v", run)
	}
	submit := q.CasesFor(domain.ModeSubmit)
	if len(submit) != 3 || submit[1].ID != 2 {
		t.Errorf("submit cases = %+v", submit)
	}
}

func TestQuestion_Hints(t *testing.T) {
	q := &domain.Question{ValidationHints: " sorted , ,unique"}
	hints := q.Hints()
	if len(hints) != 2 || hints[0] != "sorted" || hints[1] != "unique" {
		t.Errorf("hints = %q", hints)
	}
}
