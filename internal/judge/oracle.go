package judge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/metrics"
	"github.com/hrishabh6/algocrack/internal/repository"
)

// Oracle computes expected outputs by running a question's reference solution
// through the same execution engine as user code. Results are never cached.
type Oracle struct {
	engine repository.Executor
	logger *zap.Logger
}

// NewOracle creates an Oracle backed by engine.
func NewOracle(engine repository.Executor, logger *zap.Logger) *Oracle {
	return &Oracle{engine: engine, logger: logger}
}

// Expected runs the reference solution of q on input and returns its output.
// Any failure is an InfrastructureError: a reference solution that does not
// produce output makes the question unjudgeable, never the user's fault.
func (o *Oracle) Expected(ctx context.Context, q *domain.Question, input string, timeLimitMs, memoryLimitKB int) (string, error) {
	rs := q.ReferenceSolution
	if rs == nil {
		return "", domain.ErrNoReferenceSolution
	}
	meta, ok := q.MetadataFor(rs.Language)
	if !ok {
		return "", &domain.InfrastructureError{
			Op:  "oracle",
			Err: fmt.Errorf("%w: no %s metadata for reference solution", domain.ErrOracleFailed, rs.Language),
		}
	}

	res, err := o.engine.Execute(ctx, &domain.ExecutionRequest{
		SubmissionID:  fmt.Sprintf("oracle-%d", q.ID),
		Language:      rs.Language,
		SourceCode:    rs.SourceCode,
		EntryPoint:    meta.EntryPoint(),
		Input:         input,
		TimeLimitMs:   timeLimitMs,
		MemoryLimitKB: memoryLimitKB,
	})
	if err != nil {
		metrics.OracleInvocations.WithLabelValues("engine_error").Inc()
		return "", &domain.InfrastructureError{Op: "oracle", Err: err}
	}
	if res.Status != domain.ExecOK {
		metrics.OracleInvocations.WithLabelValues("failed").Inc()
		o.logger.Error("Reference solution did not produce output",
			zap.Int64("question_id", q.ID),
			zap.String("status", string(res.Status)),
			zap.String("stderr", res.Stderr),
		)
		return "", &domain.InfrastructureError{
			Op:  "oracle",
			Err: fmt.Errorf("%w: status %s", domain.ErrOracleFailed, res.Status),
		}
	}

	metrics.OracleInvocations.WithLabelValues("ok").Inc()
	return res.Output, nil
}
