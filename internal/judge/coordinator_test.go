package judge_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/judge"
	"github.com/hrishabh6/algocrack/internal/repository/mock"
)

const oracleSource = "class Solution:\n    def twoSum(self, nums, target): ..."

// outputs maps source code to the output it produces for any input.
// Unknown sources echo a fixed wrong answer.
type fakeEngine struct {
	outputs map[string]*domain.ExecutionResult
	oracle  func(input string) *domain.ExecutionResult
}

func (f *fakeEngine) exec(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	if req.SourceCode == oracleSource {
		if f.oracle != nil {
			return f.oracle(req.Input), nil
		}
		return &domain.ExecutionResult{Status: domain.ExecOK, Output: "[0,1]", TimeUsedMs: 5}, nil
	}
	if res, ok := f.outputs[req.SourceCode]; ok {
		c := *res
		return &c, nil
	}
	return &domain.ExecutionResult{Status: domain.ExecOK, Output: "[9,9]", TimeUsedMs: 1}, nil
}

type recorder struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
}

func (r *recorder) RecordOutcome(ctx context.Context, o domain.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

type fixture struct {
	subs     *mock.SubmissionRepository
	metrics  *mock.MetricsRepository
	events   *mock.StatusEvents
	exec     *mock.Executor
	recorder *recorder
	coord    *judge.Coordinator
}

func newFixture(t *testing.T, engine func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error), tweak func(*judge.Config)) *fixture {
	t.Helper()
	f := &fixture{
		subs:     mock.NewSubmissionRepository(),
		metrics:  mock.NewMetricsRepository(),
		events:   &mock.StatusEvents{},
		exec:     &mock.Executor{ExecuteFn: engine},
		recorder: &recorder{},
	}
	cfg := judge.Config{
		WorkerID:           "worker-test",
		MaxInfraRetries:    2,
		RetryBaseDelay:     time.Millisecond,
		RetryMaxDelay:      5 * time.Millisecond,
		RunParallelism:     1,
		DefaultTimeLimitMs: 2000,
		MemoryLimitKB:      262144,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	f.coord = judge.NewCoordinator(f.subs, f.metrics, f.events, f.exec, f.recorder, cfg, zap.NewNop())
	return f
}

func twoSum(orderMatters bool, cases ...domain.TestCaseType) *domain.Question {
	if len(cases) == 0 {
		cases = []domain.TestCaseType{domain.TestCaseDefault, domain.TestCaseHidden}
	}
	q := &domain.Question{
		ID:                   1,
		Title:                "Two Sum",
		TimeoutLimitMs:       1000,
		IsOutputOrderMatters: orderMatters,
		Metadata: []domain.QuestionMetadata{{
			Language:          domain.LangPython,
			FunctionName:      "twoSum",
			ReturnType:        "List[int]",
			Params:            []domain.Param{{Name: "nums", Type: "List[int]"}, {Name: "target", Type: "int"}},
			ExecutionStrategy: domain.StrategyFunction,
		}},
		ReferenceSolution: &domain.ReferenceSolution{QuestionID: 1, Language: domain.LangPython, SourceCode: oracleSource},
	}
	for i, typ := range cases {
		q.TestCases = append(q.TestCases, domain.TestCase{
			ID:    int64(i + 1),
			Input: `{"nums":[2,7,11,15],"target":9}`,
			Type:  typ,
		})
	}
	return q
}

func (f *fixture) queue(t *testing.T, code string, mode domain.Mode) *domain.Submission {
	t.Helper()
	sub, err := domain.NewSubmission("user-1", 1, domain.LangPython, code, mode, time.Now().Add(-time.Second))
	if err != nil {
		t.Fatalf("NewSubmission: %v", err)
	}
	if err := f.subs.Create(context.Background(), sub); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sub
}

func ok(output string) *domain.ExecutionResult {
	return &domain.ExecutionResult{Status: domain.ExecOK, Output: output, TimeUsedMs: 10, MemoryUsedKB: 4096, CompileTimeMs: 3}
}

func TestJudge_TwoSumAccepted(t *testing.T) {
	engine := &fakeEngine{outputs: map[string]*domain.ExecutionResult{"good": ok("[0,1]")}}
	f := newFixture(t, engine.exec, nil)
	sub := f.queue(t, "good", domain.ModeSubmit)

	if err := f.coord.Judge(context.Background(), sub, twoSum(true)); err != nil {
		t.Fatalf("Judge: %v", err)
	}

	stored := f.subs.Get(sub.SubmissionID)
	if stored.Status != domain.StatusCompleted || !stored.IsAccepted() {
		t.Fatalf("expected COMPLETED/ACCEPTED, got %s/%v", stored.Status, stored.Verdict)
	}
	if stored.PassedTestCases != stored.TotalTestCases || stored.TotalTestCases != 2 {
		t.Errorf("passed/total = %d/%d", stored.PassedTestCases, stored.TotalTestCases)
	}
	if *stored.RuntimeMs != 20 || *stored.MemoryKb != 4096 {
		t.Errorf("runtime/memory = %d/%d, want sum 20 and peak 4096", *stored.RuntimeMs, *stored.MemoryKb)
	}
	if stored.WorkerID != "worker-test" {
		t.Errorf("workerId = %q", stored.WorkerID)
	}
	if err := stored.Consistent(); err != nil {
		t.Errorf("inconsistent: %v", err)
	}

	got := f.events.Statuses(sub.SubmissionID)
	want := []domain.SubmissionStatus{domain.StatusCompiling, domain.StatusRunning, domain.StatusCompleted}
	if strings.Join(statusStrings(got), ",") != strings.Join(statusStrings(want), ",") {
		t.Errorf("published statuses = %v, want %v", got, want)
	}

	em, err := f.metrics.GetBySubmissionID(context.Background(), sub.SubmissionID)
	if err != nil {
		t.Fatalf("metrics not stored: %v", err)
	}
	if len(em.TestCaseTimings) != 2 || em.ExecutionMs != 20 || em.CompilationMs != 3 {
		t.Errorf("metrics = %+v", em)
	}

	if len(f.recorder.outcomes) != 1 || !f.recorder.outcomes[0].Accepted {
		t.Errorf("expected one accepted outcome, got %+v", f.recorder.outcomes)
	}
}

func TestJudge_TwoSumSwappedIsWrongAnswer(t *testing.T) {
	engine := &fakeEngine{outputs: map[string]*domain.ExecutionResult{"swapped": ok("[1,0]")}}
	f := newFixture(t, engine.exec, nil)
	sub := f.queue(t, "swapped", domain.ModeSubmit)

	if err := f.coord.Judge(context.Background(), sub, twoSum(true)); err != nil {
		t.Fatalf("Judge: %v", err)
	}

	stored := f.subs.Get(sub.SubmissionID)
	if stored.Status != domain.StatusCompleted || *stored.Verdict != domain.VerdictWrongAnswer {
		t.Fatalf("expected COMPLETED/WRONG_ANSWER, got %s/%v", stored.Status, *stored.Verdict)
	}
	if stored.PassedTestCases != 0 {
		t.Errorf("passed = %d, want 0", stored.PassedTestCases)
	}
	if len(f.recorder.outcomes) != 1 || f.recorder.outcomes[0].Accepted {
		t.Errorf("expected one rejected outcome, got %+v", f.recorder.outcomes)
	}
}

func TestJudge_OrderInsensitiveQuestion(t *testing.T) {
	engine := &fakeEngine{outputs: map[string]*domain.ExecutionResult{"swapped": ok("[1,0]")}}
	f := newFixture(t, engine.exec, nil)
	sub := f.queue(t, "swapped", domain.ModeSubmit)

	if err := f.coord.Judge(context.Background(), sub, twoSum(false)); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if stored := f.subs.Get(sub.SubmissionID); !stored.IsAccepted() {
		t.Errorf("expected ACCEPTED for permuted output, got %v", *stored.Verdict)
	}
}

func TestJudge_CompileErrorFails(t *testing.T) {
	engine := &fakeEngine{outputs: map[string]*domain.ExecutionResult{
		"broken": {Status: domain.ExecCompilationError, CompileOutput: "main.cpp:1: error: expected ';'", CompileTimeMs: 120},
	}}
	f := newFixture(t, engine.exec, nil)
	sub := f.queue(t, "broken", domain.ModeSubmit)

	if err := f.coord.Judge(context.Background(), sub, twoSum(true, domain.TestCaseDefault, domain.TestCaseHidden, domain.TestCaseHidden)); err != nil {
		t.Fatalf("Judge: %v", err)
	}

	stored := f.subs.Get(sub.SubmissionID)
	if stored.Status != domain.StatusFailed || *stored.Verdict != domain.VerdictCompileError {
		t.Fatalf("expected FAILED/COMPILE_ERROR, got %s/%v", stored.Status, *stored.Verdict)
	}
	if stored.PassedTestCases != 0 || stored.TotalTestCases != 3 {
		t.Errorf("passed/total = %d/%d", stored.PassedTestCases, stored.TotalTestCases)
	}
	if !strings.Contains(stored.CompilationOutput, "expected ';'") {
		t.Errorf("compilation output = %q", stored.CompilationOutput)
	}

	userRuns := 0
	for _, req := range f.exec.Calls() {
		if req.SourceCode == "broken" {
			userRuns++
		}
	}
	if userRuns != 1 {
		t.Errorf("compile error must short-circuit remaining cases, user code ran %d times", userRuns)
	}

	em, err := f.metrics.GetBySubmissionID(context.Background(), sub.SubmissionID)
	if err != nil {
		t.Fatalf("metrics not stored: %v", err)
	}
	if em.CompilationMs != 120 || em.ExecutionMs != 0 || len(em.TestCaseTimings) != 0 {
		t.Errorf("expected compilation-only metrics, got %+v", em)
	}

	// A compile error is a judged verdict and counts as a rejected attempt.
	if len(f.recorder.outcomes) != 1 || f.recorder.outcomes[0].Accepted {
		t.Errorf("outcomes = %+v", f.recorder.outcomes)
	}
}

func TestJudge_TimeLimitStopsSubmitButNotRun(t *testing.T) {
	engine := &fakeEngine{outputs: map[string]*domain.ExecutionResult{
		"slow": {Status: domain.ExecTimeout, TimeUsedMs: 1000},
	}}

	t.Run("submit", func(t *testing.T) {
		f := newFixture(t, engine.exec, nil)
		sub := f.queue(t, "slow", domain.ModeSubmit)
		q := twoSum(true, domain.TestCaseDefault, domain.TestCaseHidden, domain.TestCaseHidden)

		if err := f.coord.Judge(context.Background(), sub, q); err != nil {
			t.Fatalf("Judge: %v", err)
		}
		stored := f.subs.Get(sub.SubmissionID)
		if *stored.Verdict != domain.VerdictTimeLimitExceeded {
			t.Fatalf("verdict = %v", *stored.Verdict)
		}
		if len(stored.TestResults) != 1 || stored.TotalTestCases != 3 {
			t.Errorf("expected evaluation to stop after the first case, results=%d total=%d", len(stored.TestResults), stored.TotalTestCases)
		}
	})

	t.Run("run", func(t *testing.T) {
		f := newFixture(t, engine.exec, nil)
		sub := f.queue(t, "slow", domain.ModeRun)
		q := twoSum(true, domain.TestCaseDefault, domain.TestCaseDefault, domain.TestCaseHidden)

		if err := f.coord.Judge(context.Background(), sub, q); err != nil {
			t.Fatalf("Judge: %v", err)
		}
		stored := f.subs.Get(sub.SubmissionID)
		if len(stored.TestResults) != 2 || stored.TotalTestCases != 2 {
			t.Errorf("run must evaluate every DEFAULT case, results=%d total=%d", len(stored.TestResults), stored.TotalTestCases)
		}
		if len(f.recorder.outcomes) != 0 {
			t.Error("run mode must not touch statistics")
		}
	})
}

func TestJudge_VerdictPriority(t *testing.T) {
	// Case 0 is wrong, case 1 crashes: RUNTIME_ERROR outranks WRONG_ANSWER.
	var n atomic.Int32
	engine := func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
		if req.SourceCode == oracleSource {
			return ok("[0,1]"), nil
		}
		if n.Add(1) == 1 {
			return ok("[5,5]"), nil
		}
		return &domain.ExecutionResult{Status: domain.ExecRuntimeError, Stderr: "IndexError: list index out of range", TimeUsedMs: 2}, nil
	}
	f := newFixture(t, engine, nil)
	sub := f.queue(t, "flaky", domain.ModeSubmit)

	if err := f.coord.Judge(context.Background(), sub, twoSum(true)); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	stored := f.subs.Get(sub.SubmissionID)
	if *stored.Verdict != domain.VerdictRuntimeError {
		t.Errorf("verdict = %v, want RUNTIME_ERROR", *stored.Verdict)
	}
	if !strings.Contains(stored.ErrorMessage, "IndexError") {
		t.Errorf("error message = %q", stored.ErrorMessage)
	}
	if stored.TestResults[0].Verdict != domain.VerdictWrongAnswer || !stored.TestResults[1].Hidden {
		t.Errorf("results = %+v", stored.TestResults)
	}
}

func TestJudge_InfrastructureRetry(t *testing.T) {
	flaky := func(failures int32) func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
		var calls atomic.Int32
		return func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
			if req.SourceCode == oracleSource {
				return ok("[0,1]"), nil
			}
			if calls.Add(1) <= failures {
				return nil, errors.New("nsjail: clone failed: resource temporarily unavailable")
			}
			return ok("[0,1]"), nil
		}
	}

	t.Run("recovers within budget", func(t *testing.T) {
		f := newFixture(t, flaky(2), nil)
		sub := f.queue(t, "good", domain.ModeSubmit)
		if err := f.coord.Judge(context.Background(), sub, twoSum(true, domain.TestCaseDefault)); err != nil {
			t.Fatalf("Judge: %v", err)
		}
		if stored := f.subs.Get(sub.SubmissionID); !stored.IsAccepted() {
			t.Errorf("expected ACCEPTED after retries, got %s/%v", stored.Status, *stored.Verdict)
		}
	})

	t.Run("exhausted budget fails generically", func(t *testing.T) {
		f := newFixture(t, flaky(10), func(c *judge.Config) { c.MaxInfraRetries = 1 })
		sub := f.queue(t, "good", domain.ModeSubmit)
		if err := f.coord.Judge(context.Background(), sub, twoSum(true, domain.TestCaseDefault)); err != nil {
			t.Fatalf("Judge: %v", err)
		}
		stored := f.subs.Get(sub.SubmissionID)
		if stored.Status != domain.StatusFailed || *stored.Verdict != domain.VerdictInternalError {
			t.Fatalf("expected FAILED/INTERNAL_ERROR, got %s/%v", stored.Status, *stored.Verdict)
		}
		if stored.ErrorMessage != domain.GenericFailureMessage {
			t.Errorf("internal detail leaked: %q", stored.ErrorMessage)
		}
		if len(f.recorder.outcomes) != 0 {
			t.Error("INTERNAL_ERROR must not be counted in statistics")
		}
	})
}

func TestJudge_OracleFailureIsInternal(t *testing.T) {
	engine := &fakeEngine{
		outputs: map[string]*domain.ExecutionResult{"good": ok("[0,1]")},
		oracle: func(string) *domain.ExecutionResult {
			return &domain.ExecutionResult{Status: domain.ExecRuntimeError, Stderr: "secret stack trace"}
		},
	}
	f := newFixture(t, engine.exec, func(c *judge.Config) { c.MaxInfraRetries = 0 })
	sub := f.queue(t, "good", domain.ModeSubmit)

	if err := f.coord.Judge(context.Background(), sub, twoSum(true)); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	stored := f.subs.Get(sub.SubmissionID)
	if stored.Status != domain.StatusFailed || *stored.Verdict != domain.VerdictInternalError {
		t.Fatalf("expected FAILED/INTERNAL_ERROR, got %s/%v", stored.Status, *stored.Verdict)
	}
	if strings.Contains(stored.ErrorMessage, "secret") {
		t.Errorf("oracle stderr leaked into error message: %q", stored.ErrorMessage)
	}
}

func TestJudge_UnsupportedLanguage(t *testing.T) {
	engine := &fakeEngine{}
	f := newFixture(t, engine.exec, nil)
	sub, _ := domain.NewSubmission("user-1", 1, domain.LangJava, "class Main {}", domain.ModeSubmit, time.Now())
	_ = f.subs.Create(context.Background(), sub)

	if err := f.coord.Judge(context.Background(), sub, twoSum(true)); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	stored := f.subs.Get(sub.SubmissionID)
	if stored.Status != domain.StatusFailed || *stored.Verdict != domain.VerdictInternalError {
		t.Fatalf("expected FAILED/INTERNAL_ERROR, got %s/%v", stored.Status, *stored.Verdict)
	}
	if !strings.Contains(stored.ErrorMessage, "java") {
		t.Errorf("expected explanatory message, got %q", stored.ErrorMessage)
	}
	if len(f.exec.Calls()) != 0 {
		t.Error("engine must not run for an unsupported language")
	}
}

func TestJudge_AlreadyClaimed(t *testing.T) {
	engine := &fakeEngine{}
	f := newFixture(t, engine.exec, nil)
	sub := f.queue(t, "good", domain.ModeSubmit)

	// Another worker claims it first.
	other := f.subs.Get(sub.SubmissionID)
	_ = other.BeginCompilation("worker-other", time.Now())
	if err := f.subs.Transition(context.Background(), other, domain.StatusQueued); err != nil {
		t.Fatalf("claim by other: %v", err)
	}

	err := f.coord.Judge(context.Background(), sub, twoSum(true))
	if !errors.Is(err, judge.ErrClaimed) {
		t.Fatalf("expected ErrClaimed, got %v", err)
	}
	if got := f.subs.Get(sub.SubmissionID); got.WorkerID != "worker-other" {
		t.Errorf("losing worker overwrote the claim: %q", got.WorkerID)
	}
	if len(f.exec.Calls()) != 0 {
		t.Error("losing worker must not execute code")
	}
}

func TestJudge_OracleRecomputedEveryTime(t *testing.T) {
	var oracleRuns atomic.Int32
	engine := &fakeEngine{
		outputs: map[string]*domain.ExecutionResult{"good": ok("[0,1]")},
		oracle: func(string) *domain.ExecutionResult {
			oracleRuns.Add(1)
			return ok("[0,1]")
		},
	}
	f := newFixture(t, engine.exec, nil)
	q := twoSum(true)

	for i := 0; i < 2; i++ {
		sub := f.queue(t, "good", domain.ModeSubmit)
		if err := f.coord.Judge(context.Background(), sub, q); err != nil {
			t.Fatalf("Judge: %v", err)
		}
	}
	if got := oracleRuns.Load(); got != 4 {
		t.Errorf("oracle ran %d times, want once per case per submission (4)", got)
	}
}

func TestOracle_Deterministic(t *testing.T) {
	exec := &mock.Executor{ExecuteFn: func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
		return ok("[" + strings.TrimSpace(req.Input) + "]"), nil
	}}
	oracle := judge.NewOracle(exec, zap.NewNop())
	q := twoSum(true)

	first, err := oracle.Expected(context.Background(), q, "42", 1000, 1024)
	if err != nil {
		t.Fatalf("Expected: %v", err)
	}
	second, err := oracle.Expected(context.Background(), q, "42", 1000, 1024)
	if err != nil {
		t.Fatalf("Expected: %v", err)
	}
	if first != second {
		t.Errorf("oracle not deterministic: %q vs %q", first, second)
	}
	if len(exec.Calls()) != 2 {
		t.Errorf("oracle result was cached: %d engine calls", len(exec.Calls()))
	}
	if exec.Calls()[0].SourceCode != oracleSource || exec.Calls()[0].EntryPoint.FunctionName != "twoSum" {
		t.Errorf("oracle request = %+v", exec.Calls()[0])
	}
}

func TestOracle_MissingReferenceSolution(t *testing.T) {
	oracle := judge.NewOracle(&mock.Executor{}, zap.NewNop())
	q := twoSum(true)
	q.ReferenceSolution = nil

	if _, err := oracle.Expected(context.Background(), q, "1", 1000, 1024); !errors.Is(err, domain.ErrNoReferenceSolution) {
		t.Errorf("expected ErrNoReferenceSolution, got %v", err)
	}
}

func TestJudge_DesignQuestionPerCall(t *testing.T) {
	engine := &fakeEngine{
		outputs: map[string]*domain.ExecutionResult{
			"lru-good": ok("[null,null,null,1,null,-1]"),
			"lru-bad":  ok("[null,null,null,1,null,2]"),
		},
		oracle: func(string) *domain.ExecutionResult { return ok("[null, null, null, 1, null, -1]") },
	}
	q := twoSum(true, domain.TestCaseDefault)
	q.Metadata[0].ExecutionStrategy = domain.StrategyClass
	q.Metadata[0].FunctionName = "LRUCache"

	for code, want := range map[string]domain.Verdict{"lru-good": domain.VerdictAccepted, "lru-bad": domain.VerdictWrongAnswer} {
		f := newFixture(t, engine.exec, nil)
		sub := f.queue(t, code, domain.ModeSubmit)
		if err := f.coord.Judge(context.Background(), sub, q); err != nil {
			t.Fatalf("Judge: %v", err)
		}
		if got := *f.subs.Get(sub.SubmissionID).Verdict; got != want {
			t.Errorf("%s: verdict = %s, want %s", code, got, want)
		}
	}
}

func TestJudge_RunParallelPreservesOrder(t *testing.T) {
	engine := func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
		if req.SourceCode == oracleSource {
			return ok(req.Input), nil
		}
		// Later cases finish first.
		switch req.Input {
		case "1":
			time.Sleep(30 * time.Millisecond)
		case "2":
			time.Sleep(15 * time.Millisecond)
		}
		res := ok(req.Input)
		res.TimeUsedMs = len(req.Input)
		return res, nil
	}
	f := newFixture(t, engine, func(c *judge.Config) { c.RunParallelism = 4 })
	q := twoSum(true, domain.TestCaseDefault, domain.TestCaseDefault, domain.TestCaseDefault, domain.TestCaseDefault)
	for i := range q.TestCases {
		q.TestCases[i].Input = string(rune('0' + i))
	}
	sub := f.queue(t, "echo", domain.ModeRun)

	if err := f.coord.Judge(context.Background(), sub, q); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	stored := f.subs.Get(sub.SubmissionID)
	if len(stored.TestResults) != 4 {
		t.Fatalf("results = %d, want 4", len(stored.TestResults))
	}
	for i, r := range stored.TestResults {
		if r.Index != i || r.ActualOutput != string(rune('0'+i)) {
			t.Errorf("result %d out of order: %+v", i, r)
		}
	}
	if !stored.IsAccepted() {
		t.Errorf("verdict = %v", *stored.Verdict)
	}
}

func statusStrings(ss []domain.SubmissionStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func TestJudge_ProgramOutputIsStorableText(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		check  func(t *testing.T, msg string)
	}{
		{
			name:   "nul byte",
			stderr: "boom\x00",
			check: func(t *testing.T, msg string) {
				if msg != "boom" {
					t.Errorf("error message = %q, want %q", msg, "boom")
				}
			},
		},
		{
			name:   "multi-byte rune at the cut",
			stderr: strings.Repeat("a", 4095) + "é" + "\x00tail",
			check: func(t *testing.T, msg string) {
				if !strings.HasPrefix(msg, strings.Repeat("a", 4095)+"\n") || !strings.HasSuffix(msg, "(truncated)") {
					t.Errorf("error message not cut before the split rune: ...%q", msg[len(msg)-32:])
				}
			},
		},
		{
			name:   "invalid utf-8",
			stderr: "bad \xff\xfe bytes",
			check: func(t *testing.T, msg string) {
				if msg != "bad � bytes" {
					t.Errorf("error message = %q", msg)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{outputs: map[string]*domain.ExecutionResult{
				"crash": {Status: domain.ExecRuntimeError, Output: "partial\x00\xff", Stderr: tt.stderr},
			}}
			f := newFixture(t, engine.exec, nil)
			sub := f.queue(t, "crash", domain.ModeSubmit)

			if err := f.coord.Judge(context.Background(), sub, twoSum(true)); err != nil {
				t.Fatalf("Judge: %v", err)
			}
			stored := f.subs.Get(sub.SubmissionID)
			if stored.Status != domain.StatusFailed || *stored.Verdict != domain.VerdictRuntimeError {
				t.Fatalf("expected FAILED/RUNTIME_ERROR, got %s/%v", stored.Status, *stored.Verdict)
			}
			msg := stored.ErrorMessage
			if !utf8.ValidString(msg) || strings.ContainsRune(msg, 0) {
				t.Fatalf("error message is not storable text: %q", msg)
			}
			tt.check(t, msg)

			out := stored.TestResults[0].ActualOutput
			if !utf8.ValidString(out) || strings.ContainsRune(out, 0) {
				t.Errorf("actual output is not storable text: %q", out)
			}
		})
	}
}

func TestJudge_CompileErrorWinsOverOracleFailure(t *testing.T) {
	engine := func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
		if req.SourceCode == oracleSource {
			return nil, errors.New("sandbox: nsjail not found")
		}
		return &domain.ExecutionResult{Status: domain.ExecCompilationError, CompileOutput: "error: expected ';'"}, nil
	}
	f := newFixture(t, engine, func(c *judge.Config) { c.MaxInfraRetries = 0 })
	sub := f.queue(t, "broken", domain.ModeSubmit)

	if err := f.coord.Judge(context.Background(), sub, twoSum(true)); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	stored := f.subs.Get(sub.SubmissionID)
	if stored.Status != domain.StatusFailed || *stored.Verdict != domain.VerdictCompileError {
		t.Fatalf("expected FAILED/COMPILE_ERROR, got %s/%v", stored.Status, *stored.Verdict)
	}
	if !strings.Contains(stored.CompilationOutput, "expected ';'") {
		t.Errorf("compilation output = %q", stored.CompilationOutput)
	}
}
