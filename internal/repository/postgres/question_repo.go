package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/repository"
)

var _ repository.QuestionRepository = (*pgQuestionRepo)(nil)

type pgQuestionRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresQuestionRepository creates a new PostgreSQL-backed question catalog.
func NewPostgresQuestionRepository(pool *pgxpool.Pool) repository.QuestionRepository {
	return &pgQuestionRepo{pool: pool}
}

func (r *pgQuestionRepo) GetByID(ctx context.Context, id int64) (*domain.Question, error) {
	q := &domain.Question{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, slug, title, description, difficulty, company, constraints, timeout_limit_ms,
		       is_output_order_matters, node_type, validation_hints, created_at, updated_at
		FROM questions
		WHERE id = $1`, id,
	).Scan(
		&q.ID, &q.Slug, &q.Title, &q.Description, &q.Difficulty, &q.Company, &q.Constraints,
		&q.TimeoutLimitMs, &q.IsOutputOrderMatters, &q.NodeType, &q.ValidationHints,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get question: %w", err)
	}

	if q.TestCases, err = r.testCases(ctx, id); err != nil {
		return nil, err
	}
	if q.Metadata, err = r.metadata(ctx, id); err != nil {
		return nil, err
	}
	if q.Tags, err = r.tags(ctx, id); err != nil {
		return nil, err
	}
	if q.Solutions, err = r.solutions(ctx, id); err != nil {
		return nil, err
	}

	rs := &domain.ReferenceSolution{}
	err = r.pool.QueryRow(ctx, `
		SELECT id, question_id, language, source_code, updated_at
		FROM reference_solutions
		WHERE question_id = $1`, id,
	).Scan(&rs.ID, &rs.QuestionID, &rs.Language, &rs.SourceCode, &rs.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("postgres: get reference solution: %w", err)
	default:
		q.ReferenceSolution = rs
	}
	return q, nil
}

func (r *pgQuestionRepo) testCases(ctx context.Context, questionID int64) ([]domain.TestCase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, input, type FROM test_cases WHERE question_id = $1 ORDER BY id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list test cases: %w", err)
	}
	cases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TestCase, error) {
		var tc domain.TestCase
		err := row.Scan(&tc.ID, &tc.QuestionID, &tc.Input, &tc.Type)
		return tc, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan test cases: %w", err)
	}
	return cases, nil
}

func (r *pgQuestionRepo) metadata(ctx context.Context, questionID int64) ([]domain.QuestionMetadata, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, question_id, language, function_name, return_type, params, code_template,
		       test_case_format, execution_strategy, custom_input_enabled
		FROM question_metadata
		WHERE question_id = $1
		ORDER BY id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list metadata: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.QuestionMetadata, error) {
		var m domain.QuestionMetadata
		err := row.Scan(&m.ID, &m.QuestionID, &m.Language, &m.FunctionName, &m.ReturnType, &m.Params,
			&m.CodeTemplate, &m.TestCaseFormat, &m.ExecutionStrategy, &m.CustomInputEnabled)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan metadata: %w", err)
	}
	return list, nil
}

func (r *pgQuestionRepo) tags(ctx context.Context, questionID int64) ([]domain.Tag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.name, t.description
		FROM tags t
		JOIN question_tags qt ON qt.tag_id = t.id
		WHERE qt.question_id = $1
		ORDER BY t.name`, questionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tags: %w", err)
	}
	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Tag, error) {
		var t domain.Tag
		err := row.Scan(&t.ID, &t.Name, &t.Description)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan tags: %w", err)
	}
	return tags, nil
}

func (r *pgQuestionRepo) solutions(ctx context.Context, questionID int64) ([]domain.Solution, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, language, code FROM solutions WHERE question_id = $1 ORDER BY id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list solutions: %w", err)
	}
	sols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Solution, error) {
		var s domain.Solution
		err := row.Scan(&s.ID, &s.QuestionID, &s.Language, &s.Code)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan solutions: %w", err)
	}
	return sols, nil
}

func (r *pgQuestionRepo) Create(ctx context.Context, q *domain.Question) error {
	now := time.Now().UTC()
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO questions (slug, title, description, difficulty, company, constraints,
			                       timeout_limit_ms, is_output_order_matters, node_type, validation_hints,
			                       created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
			RETURNING id`,
			q.Slug, q.Title, q.Description, q.Difficulty, q.Company, q.Constraints,
			q.TimeoutLimitMs, q.IsOutputOrderMatters, q.NodeType, q.ValidationHints, now,
		).Scan(&q.ID)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}

		for i := range q.TestCases {
			tc := &q.TestCases[i]
			tc.QuestionID = q.ID
			if err := tx.QueryRow(ctx,
				`INSERT INTO test_cases (question_id, input, type) VALUES ($1, $2, $3) RETURNING id`,
				q.ID, tc.Input, tc.Type,
			).Scan(&tc.ID); err != nil {
				return fmt.Errorf("insert test case %d: %w", i, err)
			}
		}

		for i := range q.Metadata {
			m := &q.Metadata[i]
			m.QuestionID = q.ID
			if err := tx.QueryRow(ctx, `
				INSERT INTO question_metadata (question_id, language, function_name, return_type, params,
				                               code_template, test_case_format, execution_strategy,
				                               custom_input_enabled)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING id`,
				q.ID, m.Language, m.FunctionName, m.ReturnType, m.Params,
				m.CodeTemplate, m.TestCaseFormat, m.ExecutionStrategy, m.CustomInputEnabled,
			).Scan(&m.ID); err != nil {
				return fmt.Errorf("insert metadata %s: %w", m.Language, err)
			}
		}

		for i := range q.Tags {
			t := &q.Tags[i]
			if err := tx.QueryRow(ctx, `
				INSERT INTO tags (name, description) VALUES ($1, $2)
				ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
				RETURNING id`, t.Name, t.Description,
			).Scan(&t.ID); err != nil {
				return fmt.Errorf("upsert tag %s: %w", t.Name, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO question_tags (question_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				q.ID, t.ID); err != nil {
				return fmt.Errorf("link tag %s: %w", t.Name, err)
			}
		}

		for i := range q.Solutions {
			s := &q.Solutions[i]
			s.QuestionID = q.ID
			if err := tx.QueryRow(ctx,
				`INSERT INTO solutions (question_id, language, code) VALUES ($1, $2, $3) RETURNING id`,
				q.ID, s.Language, s.Code,
			).Scan(&s.ID); err != nil {
				return fmt.Errorf("insert solution %d: %w", i, err)
			}
		}

		if rs := q.ReferenceSolution; rs != nil {
			rs.QuestionID = q.ID
			rs.UpdatedAt = now
			if err := tx.QueryRow(ctx, `
				INSERT INTO reference_solutions (question_id, language, source_code, updated_at)
				VALUES ($1, $2, $3, $4)
				RETURNING id`, q.ID, rs.Language, rs.SourceCode, now,
			).Scan(&rs.ID); err != nil {
				return fmt.Errorf("insert reference solution: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: create question: %w", err)
	}
	q.CreatedAt = now
	q.UpdatedAt = now
	return nil
}

func (r *pgQuestionRepo) UpsertReferenceSolution(ctx context.Context, rs *domain.ReferenceSolution) error {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reference_solutions (question_id, language, source_code, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (question_id) DO UPDATE
		SET language = EXCLUDED.language, source_code = EXCLUDED.source_code, updated_at = EXCLUDED.updated_at
		RETURNING id`, rs.QuestionID, rs.Language, rs.SourceCode, now,
	).Scan(&rs.ID)
	if err != nil {
		return fmt.Errorf("postgres: upsert reference solution: %w", err)
	}
	rs.UpdatedAt = now
	return nil
}

// Delete relies on ON DELETE CASCADE for owned rows. Submissions are left untouched.
func (r *pgQuestionRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
