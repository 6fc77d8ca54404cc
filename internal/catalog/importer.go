package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/repository"
)

// ErrInvalidFile is returned when any question in a file fails validation.
// Nothing is written in that case.
var ErrInvalidFile = errors.New("question file is invalid")

// QuestionError reports why one question of a file was rejected.
type QuestionError struct {
	Index int
	Title string
	Err   error
}

func (e *QuestionError) Error() string {
	return fmt.Sprintf("question %d (%q): %v", e.Index, e.Title, e.Err)
}

func (e *QuestionError) Unwrap() error { return e.Err }

// Importer writes validated questions to the catalog.
type Importer struct {
	questions repository.QuestionRepository
	logger    *zap.Logger
}

// NewImporter creates a new Importer.
func NewImporter(questions repository.QuestionRepository, logger *zap.Logger) *Importer {
	return &Importer{questions: questions, logger: logger}
}

// Import validates every question of f and, only if all are valid, creates them
// one by one. It returns the created questions in file order. A storage failure
// stops the import; questions created before it are kept.
func (im *Importer) Import(ctx context.Context, f *File) ([]*domain.Question, error) {
	qs := make([]*domain.Question, 0, len(f.Questions))
	var invalid []error
	slugs := make(map[string]int, len(f.Questions))

	for i := range f.Questions {
		q := f.Questions[i].ToDomain()
		if err := Validate(q); err != nil {
			invalid = append(invalid, &QuestionError{Index: i, Title: q.Title, Err: err})
			continue
		}
		if prev, dup := slugs[q.Slug]; dup {
			invalid = append(invalid, &QuestionError{Index: i, Title: q.Title, Err: fmt.Errorf("slug %q already used by question %d", q.Slug, prev)})
			continue
		}
		slugs[q.Slug] = i
		qs = append(qs, q)
	}
	if len(invalid) > 0 {
		for _, err := range invalid {
			im.logger.Warn("Question rejected", zap.Error(err))
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, errors.Join(invalid...))
	}

	created := make([]*domain.Question, 0, len(qs))
	for _, q := range qs {
		if err := im.questions.Create(ctx, q); err != nil {
			return created, fmt.Errorf("create question %q: %w", q.Slug, err)
		}
		im.logger.Info("Question imported",
			zap.Int64("question_id", q.ID),
			zap.String("slug", q.Slug),
			zap.Int("test_cases", len(q.TestCases)),
			zap.Int("languages", len(q.Metadata)),
		)
		created = append(created, q)
	}
	return created, nil
}

// Delete removes a question and everything it owns.
func (im *Importer) Delete(ctx context.Context, id int64) error {
	if err := im.questions.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrQuestionNotFound
		}
		return err
	}
	im.logger.Info("Question deleted", zap.Int64("question_id", id))
	return nil
}
