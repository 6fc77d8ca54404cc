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

var _ repository.StatisticsRepository = (*pgStatisticsRepo)(nil)

type pgStatisticsRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresStatisticsRepository creates a new PostgreSQL-backed statistics repository.
func NewPostgresStatisticsRepository(pool *pgxpool.Pool) repository.StatisticsRepository {
	return &pgStatisticsRepo{pool: pool}
}

func (r *pgStatisticsRepo) Get(ctx context.Context, questionID int64) (*domain.QuestionStatistics, error) {
	s := &domain.QuestionStatistics{QuestionID: questionID}
	err := r.pool.QueryRow(ctx, `
		SELECT total_submissions, accepted_submissions, avg_runtime_ms, avg_memory_kb,
		       best_runtime_ms, best_memory_kb, unique_attempts, unique_solves,
		       avg_attempts_to_solve, last_submission_at, runtime_sum_ms, memory_sum_kb,
		       attempts_to_solve_sum, version
		FROM question_statistics
		WHERE question_id = $1`, questionID,
	).Scan(
		&s.TotalSubmissions, &s.AcceptedSubmissions, &s.AvgRuntimeMs, &s.AvgMemoryKb,
		&s.BestRuntimeMs, &s.BestMemoryKb, &s.UniqueAttempts, &s.UniqueSolves,
		&s.AvgAttemptsToSolve, &s.LastSubmissionAt, &s.RuntimeSumMs, &s.MemorySumKb,
		&s.AttemptsToSolveSum, &s.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.QuestionStatistics{QuestionID: questionID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get statistics: %w", err)
	}
	return s, nil
}

func (r *pgStatisticsRepo) GetProgress(ctx context.Context, questionID int64, userID string) (domain.UserProgress, error) {
	p := domain.UserProgress{QuestionID: questionID, UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT attempts, solved, attempts_to_solve
		FROM user_question_progress
		WHERE question_id = $1 AND user_id = $2`, questionID, userID,
	).Scan(&p.Attempts, &p.Solved, &p.AttemptsToSolve)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return p, fmt.Errorf("postgres: get progress: %w", err)
	}
	return p, nil
}

// Save performs the version compare-and-set. Every progress write for a question goes
// through here and bumps the question's version, so a stale progress read also
// surfaces as ErrConflict.
func (r *pgStatisticsRepo) Save(ctx context.Context, s *domain.QuestionStatistics, expectedVersion int64, p domain.UserProgress, submissionID uuid.UUID) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE submissions SET stats_recorded = TRUE WHERE submission_id = $1 AND stats_recorded = FALSE`,
			submissionID)
		if err != nil {
			return fmt.Errorf("mark submission: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrAlreadyApplied
		}

		if expectedVersion == 0 {
			tag, err = tx.Exec(ctx, `
				INSERT INTO question_statistics (question_id, total_submissions, accepted_submissions,
				       avg_runtime_ms, avg_memory_kb, best_runtime_ms, best_memory_kb, unique_attempts,
				       unique_solves, avg_attempts_to_solve, last_submission_at, runtime_sum_ms,
				       memory_sum_kb, attempts_to_solve_sum, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)
				ON CONFLICT (question_id) DO NOTHING`,
				s.QuestionID, s.TotalSubmissions, s.AcceptedSubmissions,
				s.AvgRuntimeMs, s.AvgMemoryKb, s.BestRuntimeMs, s.BestMemoryKb, s.UniqueAttempts,
				s.UniqueSolves, s.AvgAttemptsToSolve, s.LastSubmissionAt, s.RuntimeSumMs,
				s.MemorySumKb, s.AttemptsToSolveSum)
		} else {
			tag, err = tx.Exec(ctx, `
				UPDATE question_statistics
				SET total_submissions = $2, accepted_submissions = $3, avg_runtime_ms = $4,
				    avg_memory_kb = $5, best_runtime_ms = $6, best_memory_kb = $7,
				    unique_attempts = $8, unique_solves = $9, avg_attempts_to_solve = $10,
				    last_submission_at = $11, runtime_sum_ms = $12, memory_sum_kb = $13,
				    attempts_to_solve_sum = $14, version = version + 1
				WHERE question_id = $1 AND version = $15`,
				s.QuestionID, s.TotalSubmissions, s.AcceptedSubmissions, s.AvgRuntimeMs,
				s.AvgMemoryKb, s.BestRuntimeMs, s.BestMemoryKb,
				s.UniqueAttempts, s.UniqueSolves, s.AvgAttemptsToSolve,
				s.LastSubmissionAt, s.RuntimeSumMs, s.MemorySumKb,
				s.AttemptsToSolveSum, expectedVersion)
		}
		if err != nil {
			return fmt.Errorf("write statistics: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrConflict
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO user_question_progress (question_id, user_id, attempts, solved, attempts_to_solve)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (question_id, user_id) DO UPDATE
			SET attempts = EXCLUDED.attempts, solved = EXCLUDED.solved,
			    attempts_to_solve = EXCLUDED.attempts_to_solve`,
			p.QuestionID, p.UserID, p.Attempts, p.Solved, p.AttemptsToSolve)
		if err != nil {
			return fmt.Errorf("write progress: %w", err)
		}
		return nil
	})
	if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrAlreadyApplied) {
		return err
	}
	if err != nil {
		return fmt.Errorf("postgres: save statistics: %w", err)
	}
	s.Version = expectedVersion + 1
	return nil
}
