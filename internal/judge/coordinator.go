package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hrishabh6/algocrack/internal/backoff"
	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/metrics"
	"github.com/hrishabh6/algocrack/internal/repository"
)

// ErrClaimed is returned when another worker claimed or finished the submission first.
var ErrClaimed = errors.New("judge: submission owned by another worker")

// maxErrorOutput bounds user-facing error text copied from program output.
const maxErrorOutput = 4096

// OutcomeRecorder receives the statistics event of a terminal submission.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, o domain.Outcome) error
}

// Config tunes the coordinator.
type Config struct {
	WorkerID           string
	MaxInfraRetries    int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	RunParallelism     int
	DefaultTimeLimitMs int
	MemoryLimitKB      int
	Now                func() time.Time
}

// Coordinator drives one submission from QUEUED to a terminal state: it runs the
// user's code and the oracle on every selected test case, compares outputs,
// persists each transition and emits metrics and the statistics event.
type Coordinator struct {
	subs     repository.SubmissionRepository
	metrics  repository.MetricsRepository
	events   repository.StatusEvents
	engine   repository.Executor
	oracle   *Oracle
	recorder OutcomeRecorder
	cfg      Config
	logger   *zap.Logger
}

// NewCoordinator creates a Coordinator. events and recorder may be nil.
func NewCoordinator(
	subs repository.SubmissionRepository,
	metricsRepo repository.MetricsRepository,
	events repository.StatusEvents,
	engine repository.Executor,
	recorder OutcomeRecorder,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RunParallelism < 1 {
		cfg.RunParallelism = 1
	}
	return &Coordinator{
		subs:     subs,
		metrics:  metricsRepo,
		events:   events,
		engine:   engine,
		oracle:   NewOracle(engine, logger),
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

type caseRun struct {
	result domain.TestCaseResult
	exec   *domain.ExecutionResult
}

// Judge claims a QUEUED submission and judges it against q.
// It returns ErrClaimed if the submission is no longer QUEUED.
func (c *Coordinator) Judge(ctx context.Context, sub *domain.Submission, q *domain.Question) error {
	if err := sub.BeginCompilation(c.cfg.WorkerID, c.cfg.Now()); err != nil {
		return ErrClaimed
	}
	if err := c.persist(ctx, sub, domain.StatusQueued); err != nil {
		return err
	}

	meta, ok := q.MetadataFor(sub.Language)
	if !ok {
		c.logger.Warn("Language not supported for question",
			zap.String("submission_id", sub.SubmissionID.String()),
			zap.Int64("question_id", q.ID),
			zap.String("language", string(sub.Language)),
		)
		msg := fmt.Sprintf("Language %s is not supported for this question.", sub.Language)
		return c.failInternal(ctx, sub, domain.ErrUnsupportedLanguage, msg)
	}
	if q.ReferenceSolution == nil {
		return c.failInternal(ctx, sub, domain.ErrNoReferenceSolution, domain.GenericFailureMessage)
	}
	cases := q.CasesFor(sub.Mode)
	if len(cases) == 0 {
		return c.failInternal(ctx, sub, fmt.Errorf("question %d has no %s test cases", q.ID, sub.Mode), domain.GenericFailureMessage)
	}

	limit := c.timeLimit(q)
	first, err := c.runCase(ctx, sub, q, meta, cases[0], 0, limit)
	if err != nil {
		return c.failInternal(ctx, sub, err, domain.GenericFailureMessage)
	}

	if first.exec.Status == domain.ExecCompilationError {
		j := domain.Judgement{
			Verdict:           domain.VerdictCompileError,
			TotalTestCases:    len(cases),
			CompilationOutput: truncate(compileOutput(first.exec)),
		}
		if err := c.finishFailed(ctx, sub, j); err != nil {
			return err
		}
		c.saveMetrics(ctx, sub, []*caseRun{first}, true)
		return c.recordOutcome(ctx, sub)
	}

	if err := sub.BeginExecution(c.cfg.Now()); err != nil {
		return c.forceFail(ctx, sub, err)
	}
	if err := c.persist(ctx, sub, domain.StatusCompiling); err != nil {
		return err
	}

	runs, err := c.runRemaining(ctx, sub, q, meta, cases, first, limit)
	if err != nil {
		return c.failInternal(ctx, sub, err, domain.GenericFailureMessage)
	}

	j := aggregate(runs, len(cases))
	if j.Verdict == domain.VerdictCompileError {
		if err := c.finishFailed(ctx, sub, j); err != nil {
			return err
		}
	} else {
		if err := sub.Complete(j, c.cfg.Now()); err != nil {
			return c.forceFail(ctx, sub, err)
		}
		if err := c.persist(ctx, sub, domain.StatusRunning); err != nil {
			return err
		}
	}

	c.saveMetrics(ctx, sub, runs, false)
	return c.recordOutcome(ctx, sub)
}

// Abandon settles a submission that cannot be judged here: it is QUEUED but its
// question is gone, or it is mid-judging and the worker that claimed it is presumed
// dead. It returns ErrClaimed if the submission moved on concurrently.
func (c *Coordinator) Abandon(ctx context.Context, sub *domain.Submission, cause error) error {
	if sub.Status.IsTerminal() {
		return ErrClaimed
	}
	return c.failInternal(ctx, sub, cause, domain.GenericFailureMessage)
}

// runRemaining evaluates cases[1:]. "submit" runs sequentially and stops after a
// time limit; "run" may evaluate in parallel. Result order always follows cases.
func (c *Coordinator) runRemaining(
	ctx context.Context,
	sub *domain.Submission,
	q *domain.Question,
	meta *domain.QuestionMetadata,
	cases []domain.TestCase,
	first *caseRun,
	limit int,
) ([]*caseRun, error) {
	runs := make([]*caseRun, 1, len(cases))
	runs[0] = first

	if sub.Mode == domain.ModeSubmit || c.cfg.RunParallelism == 1 {
		for i := 1; i < len(cases); i++ {
			prev := runs[len(runs)-1]
			if sub.Mode == domain.ModeSubmit && prev.result.Verdict == domain.VerdictTimeLimitExceeded {
				break
			}
			r, err := c.runCase(ctx, sub, q, meta, cases[i], i, limit)
			if err != nil {
				return nil, err
			}
			runs = append(runs, r)
		}
		return runs, nil
	}

	runs = runs[:len(cases)]
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.RunParallelism)
	for i := 1; i < len(cases); i++ {
		i := i
		g.Go(func() error {
			r, err := c.runCase(gctx, sub, q, meta, cases[i], i, limit)
			if err != nil {
				return err
			}
			runs[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

// runCase executes user code and the oracle on one input concurrently and grades the result.
func (c *Coordinator) runCase(
	ctx context.Context,
	sub *domain.Submission,
	q *domain.Question,
	meta *domain.QuestionMetadata,
	tc domain.TestCase,
	idx int,
	limit int,
) (*caseRun, error) {
	var (
		actual    *domain.ExecutionResult
		expected  string
		oracleErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.withRetry(gctx, sub, "execute", func() error {
			res, err := c.engine.Execute(gctx, &domain.ExecutionRequest{
				SubmissionID:  sub.SubmissionID.String(),
				Language:      sub.Language,
				SourceCode:    sub.Code,
				EntryPoint:    meta.EntryPoint(),
				Input:         tc.Input,
				TimeLimitMs:   limit,
				MemoryLimitKB: c.cfg.MemoryLimitKB,
			})
			if err != nil {
				return &domain.InfrastructureError{Op: "execute", Err: err}
			}
			if res.Status == domain.ExecInternalError {
				return &domain.InfrastructureError{Op: "execute", Err: fmt.Errorf("engine internal error: %s", res.Stderr)}
			}
			actual = res
			return nil
		})
	})
	// An oracle failure must not cancel the user's run: a compile error is
	// reported as such even when the oracle could not produce output.
	g.Go(func() error {
		oracleErr = c.withRetry(gctx, sub, "oracle", func() error {
			out, err := c.oracle.Expected(gctx, q, tc.Input, limit, c.cfg.MemoryLimitKB)
			if err != nil {
				return err
			}
			expected = out
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if actual.Status != domain.ExecCompilationError && oracleErr != nil {
		return nil, oracleErr
	}

	return grade(q, tc, idx, actual, expected), nil
}

func grade(q *domain.Question, tc domain.TestCase, idx int, res *domain.ExecutionResult, expected string) *caseRun {
	r := &caseRun{
		exec: res,
		result: domain.TestCaseResult{
			Index:           idx,
			ActualOutput:    sanitize(res.Output),
			ExecutionTimeMs: res.TimeUsedMs,
			MemoryKb:        res.MemoryUsedKB,
			Hidden:          tc.Type == domain.TestCaseHidden,
		},
	}

	var passed bool
	switch {
	case res.Status != domain.ExecOK:
		r.result.Verdict = res.Status.Verdict()
		return r
	case q.IsDesign():
		passed = EqualCalls(res.Output, expected, q.IsOutputOrderMatters) < 0
	default:
		passed = Equal(res.Output, expected, q.IsOutputOrderMatters)
	}

	if passed {
		r.result.Passed = true
		r.result.Verdict = domain.VerdictAccepted
	} else {
		r.result.Verdict = domain.VerdictWrongAnswer
	}
	return r
}

// aggregate folds per-case runs into a judgement. The overall verdict is ACCEPTED
// only if every evaluated case passed, else the highest-priority failing verdict.
func aggregate(runs []*caseRun, total int) domain.Judgement {
	j := domain.Judgement{
		Verdict:        domain.VerdictAccepted,
		TotalTestCases: total,
		Results:        make([]domain.TestCaseResult, 0, len(runs)),
	}
	var runtime, peak int
	for _, r := range runs {
		j.Results = append(j.Results, r.result)
		runtime += r.result.ExecutionTimeMs
		if r.result.MemoryKb > peak {
			peak = r.result.MemoryKb
		}
		if r.result.Passed {
			j.PassedTestCases++
			continue
		}
		if r.result.Verdict.Priority() > j.Verdict.Priority() {
			j.Verdict = r.result.Verdict
		}
		switch r.result.Verdict {
		case domain.VerdictRuntimeError:
			if j.ErrorMessage == "" {
				j.ErrorMessage = truncate(r.exec.Stderr)
			}
		case domain.VerdictCompileError:
			if j.CompilationOutput == "" {
				j.CompilationOutput = truncate(compileOutput(r.exec))
			}
		}
	}
	j.RuntimeMs = &runtime
	j.MemoryKb = &peak
	return j
}

// withRetry retries fn while it fails with an InfrastructureError, at most MaxInfraRetries times.
func (c *Coordinator) withRetry(ctx context.Context, sub *domain.Submission, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, domain.ErrInfrastructure) {
			return err
		}
		metrics.EngineFailures.WithLabelValues(op).Inc()
		if attempt >= c.cfg.MaxInfraRetries || ctx.Err() != nil {
			return err
		}

		delay := backoff.Compute(attempt, c.cfg.RetryBaseDelay, c.cfg.RetryMaxDelay)
		c.logger.Warn("Infrastructure failure, retrying",
			zap.String("submission_id", sub.SubmissionID.String()),
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if sleepErr := backoff.Sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
}

// persist writes the submission if its stored status still equals from.
func (c *Coordinator) persist(ctx context.Context, sub *domain.Submission, from domain.SubmissionStatus) error {
	if err := c.subs.Transition(ctx, sub, from); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			c.logger.Warn("Submission changed under us, abandoning",
				zap.String("submission_id", sub.SubmissionID.String()),
				zap.String("from", string(from)),
				zap.String("to", string(sub.Status)),
			)
			return ErrClaimed
		}
		return fmt.Errorf("persist %s -> %s: %w", from, sub.Status, err)
	}

	if sub.Status.IsTerminal() {
		metrics.SubmissionsJudged.WithLabelValues(string(sub.Language), string(sub.Status), string(*sub.Verdict)).Inc()
		if sub.StartedAt != nil && sub.CompletedAt != nil {
			metrics.JudgeDuration.WithLabelValues(string(sub.Language)).Observe(sub.CompletedAt.Sub(*sub.StartedAt).Seconds())
		}
		c.logger.Info("Submission judged",
			zap.String("submission_id", sub.SubmissionID.String()),
			zap.String("status", string(sub.Status)),
			zap.String("verdict", string(*sub.Verdict)),
			zap.Int("passed", sub.PassedTestCases),
			zap.Int("total", sub.TotalTestCases),
		)
	}

	if c.events != nil {
		if err := c.events.Publish(ctx, domain.EventFor(sub)); err != nil {
			c.logger.Warn("Failed to publish status event",
				zap.String("submission_id", sub.SubmissionID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (c *Coordinator) finishFailed(ctx context.Context, sub *domain.Submission, j domain.Judgement) error {
	from := sub.Status
	if err := sub.Fail(j, c.cfg.Now()); err != nil {
		return err
	}
	return c.persist(ctx, sub, from)
}

// failInternal moves the submission to FAILED with INTERNAL_ERROR. userMessage is
// all the user sees; cause is only logged. Nothing is written once ctx is done:
// the broker redelivers the message and the next worker settles the submission.
func (c *Coordinator) failInternal(ctx context.Context, sub *domain.Submission, cause error, userMessage string) error {
	if ctx.Err() != nil {
		return cause
	}
	c.logger.Error("Judging failed",
		zap.String("submission_id", sub.SubmissionID.String()),
		zap.String("status", string(sub.Status)),
		zap.Error(cause),
	)
	if err := c.finishFailed(ctx, sub, domain.Judgement{
		Verdict:      domain.VerdictInternalError,
		ErrorMessage: userMessage,
	}); err != nil {
		return err
	}
	c.saveMetrics(ctx, sub, nil, false)
	return nil
}

// forceFail handles state machine misuse: the in-memory copy is not trusted, so the
// stored submission is reloaded and, unless already terminal, forced to FAILED.
func (c *Coordinator) forceFail(ctx context.Context, sub *domain.Submission, cause error) error {
	c.logger.Error("Invalid submission transition, forcing FAILED",
		zap.String("submission_id", sub.SubmissionID.String()),
		zap.Error(cause),
	)
	fresh, err := c.subs.GetBySubmissionID(ctx, sub.SubmissionID)
	if err != nil {
		return fmt.Errorf("reload after invalid transition: %w", err)
	}
	if fresh.Status.IsTerminal() {
		*sub = *fresh
		return nil
	}
	*sub = *fresh
	return c.finishFailed(ctx, sub, domain.Judgement{
		Verdict:      domain.VerdictInternalError,
		ErrorMessage: domain.GenericFailureMessage,
	})
}

// saveMetrics writes the execution metrics record. Failures are logged only:
// metrics never change a verdict.
func (c *Coordinator) saveMetrics(ctx context.Context, sub *domain.Submission, runs []*caseRun, compileOnly bool) {
	if c.metrics == nil {
		return
	}
	em := &domain.ExecutionMetrics{
		SubmissionID: sub.SubmissionID,
		WorkerID:     c.cfg.WorkerID,
		CreatedAt:    c.cfg.Now().UTC(),
	}
	if wait := sub.QueueWaitTimeMs(); wait != nil {
		em.QueueWaitMs = int(*wait)
	}
	if sub.StartedAt != nil && sub.CompletedAt != nil {
		em.TotalMs = int(sub.CompletedAt.Sub(*sub.StartedAt).Milliseconds())
	}

	for i, r := range runs {
		if i == 0 {
			em.CompilationMs = r.exec.CompileTimeMs
			em.ExecutionNode = r.exec.Node
			em.ContainerID = r.exec.ContainerID
		}
		if compileOnly {
			break
		}
		em.ExecutionMs += r.exec.TimeUsedMs
		em.CPUTimeMs += r.exec.CPUTimeMs
		if r.exec.MemoryUsedKB > em.PeakMemoryKb {
			em.PeakMemoryKb = r.exec.MemoryUsedKB
		}
		em.UsedCache = em.UsedCache || r.exec.CacheHit
		em.TestCaseTimings = append(em.TestCaseTimings, domain.TestCaseTiming{
			Index:     r.result.Index,
			CompileMs: r.exec.CompileTimeMs,
			ExecuteMs: r.exec.TimeUsedMs,
		})
	}

	if err := c.metrics.Create(ctx, em); err != nil {
		c.logger.Warn("Failed to store execution metrics",
			zap.String("submission_id", sub.SubmissionID.String()),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) recordOutcome(ctx context.Context, sub *domain.Submission) error {
	if c.recorder == nil {
		return nil
	}
	o, ok := sub.Outcome()
	if !ok {
		return nil
	}
	if err := c.recorder.RecordOutcome(ctx, o); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

func (c *Coordinator) timeLimit(q *domain.Question) int {
	if q.TimeoutLimitMs > 0 {
		return q.TimeoutLimitMs
	}
	return c.cfg.DefaultTimeLimitMs
}

func compileOutput(res *domain.ExecutionResult) string {
	if res.CompileOutput != "" {
		return res.CompileOutput
	}
	return res.Stderr
}

// sanitize makes program output storable as Postgres text: NUL bytes are
// dropped and invalid UTF-8 sequences become U+FFFD.
func sanitize(s string) string {
	return strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "\uFFFD")
}

// truncate sanitizes s and cuts it to maxErrorOutput bytes on a rune boundary.
func truncate(s string) string {
	s = sanitize(s)
	if len(s) <= maxErrorOutput {
		return s
	}
	cut := maxErrorOutput
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
