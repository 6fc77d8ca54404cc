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

var _ repository.MetricsRepository = (*pgMetricsRepo)(nil)

type pgMetricsRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresMetricsRepository creates a new PostgreSQL-backed execution metrics repository.
func NewPostgresMetricsRepository(pool *pgxpool.Pool) repository.MetricsRepository {
	return &pgMetricsRepo{pool: pool}
}

// Create is a no-op when metrics already exist for the submission; the first record wins.
func (r *pgMetricsRepo) Create(ctx context.Context, m *domain.ExecutionMetrics) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO execution_metrics (submission_id, queue_wait_ms, compilation_ms, execution_ms,
		       total_ms, peak_memory_kb, cpu_time_ms, worker_id, execution_node, container_id,
		       used_cache, test_case_timings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (submission_id) DO NOTHING`,
		m.SubmissionID, m.QueueWaitMs, m.CompilationMs, m.ExecutionMs,
		m.TotalMs, m.PeakMemoryKb, m.CPUTimeMs, m.WorkerID, m.ExecutionNode, m.ContainerID,
		m.UsedCache, m.TestCaseTimings, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create metrics: %w", err)
	}
	return nil
}

func (r *pgMetricsRepo) GetBySubmissionID(ctx context.Context, id uuid.UUID) (*domain.ExecutionMetrics, error) {
	m := &domain.ExecutionMetrics{}
	err := r.pool.QueryRow(ctx, `
		SELECT submission_id, queue_wait_ms, compilation_ms, execution_ms, total_ms, peak_memory_kb,
		       cpu_time_ms, worker_id, execution_node, container_id, used_cache, test_case_timings,
		       created_at
		FROM execution_metrics
		WHERE submission_id = $1`, id,
	).Scan(
		&m.SubmissionID, &m.QueueWaitMs, &m.CompilationMs, &m.ExecutionMs, &m.TotalMs, &m.PeakMemoryKb,
		&m.CPUTimeMs, &m.WorkerID, &m.ExecutionNode, &m.ContainerID, &m.UsedCache, &m.TestCaseTimings,
		&m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get metrics: %w", err)
	}
	return m, nil
}
