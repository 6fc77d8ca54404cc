package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/repository"
)

var _ repository.SubmissionRepository = (*pgSubmissionRepo)(nil)

type pgSubmissionRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresSubmissionRepository creates a new PostgreSQL-backed submission repository.
func NewPostgresSubmissionRepository(pool *pgxpool.Pool) repository.SubmissionRepository {
	return &pgSubmissionRepo{pool: pool}
}

func (r *pgSubmissionRepo) Create(ctx context.Context, sub *domain.Submission) error {
	query := `
		INSERT INTO submissions (submission_id, user_id, question_id, language, code, mode, status,
		                         queued_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		sub.SubmissionID, sub.UserID, sub.QuestionID, sub.Language, sub.Code, sub.Mode,
		sub.Status, sub.QueuedAt, sub.IPAddress, sub.UserAgent,
	).Scan(&sub.ID)
	if err != nil {
		return fmt.Errorf("postgres: create submission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepo) GetBySubmissionID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `
		SELECT id, submission_id, user_id, question_id, language, code, mode, status, verdict,
		       runtime_ms, memory_kb, test_results, passed_test_cases, total_test_cases,
		       error_message, compilation_output, queued_at, started_at, completed_at,
		       ip_address, user_agent, worker_id, stats_recorded
		FROM submissions
		WHERE submission_id = $1`

	sub := &domain.Submission{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sub.ID, &sub.SubmissionID, &sub.UserID, &sub.QuestionID, &sub.Language, &sub.Code,
		&sub.Mode, &sub.Status, &sub.Verdict,
		&sub.RuntimeMs, &sub.MemoryKb, &sub.TestResults, &sub.PassedTestCases, &sub.TotalTestCases,
		&sub.ErrorMessage, &sub.CompilationOutput, &sub.QueuedAt, &sub.StartedAt, &sub.CompletedAt,
		&sub.IPAddress, &sub.UserAgent, &sub.WorkerID, &sub.StatsRecorded,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get submission: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepo) Transition(ctx context.Context, sub *domain.Submission, from domain.SubmissionStatus) error {
	query := `
		UPDATE submissions
		SET status = $1, verdict = $2, runtime_ms = $3, memory_kb = $4, test_results = $5,
		    passed_test_cases = $6, total_test_cases = $7, error_message = $8,
		    compilation_output = $9, started_at = $10, completed_at = $11, worker_id = $12
		WHERE submission_id = $13 AND status = $14`

	tag, err := r.pool.Exec(ctx, query,
		sub.Status, sub.Verdict, sub.RuntimeMs, sub.MemoryKb, sub.TestResults,
		sub.PassedTestCases, sub.TotalTestCases, sub.ErrorMessage,
		sub.CompilationOutput, sub.StartedAt, sub.CompletedAt, sub.WorkerID,
		sub.SubmissionID, from,
	)
	if err != nil {
		return fmt.Errorf("postgres: transition submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM submissions WHERE submission_id = $1)`, sub.SubmissionID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: transition submission: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}
