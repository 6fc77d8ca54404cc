package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/repository"
)

// GetQuestionStatisticsUsecase reads the per-question aggregate.
type GetQuestionStatisticsUsecase struct {
	questions repository.QuestionRepository
	stats     repository.StatisticsRepository
	logger    *zap.Logger
}

// NewGetQuestionStatisticsUsecase creates a new GetQuestionStatisticsUsecase.
func NewGetQuestionStatisticsUsecase(questions repository.QuestionRepository, stats repository.StatisticsRepository, logger *zap.Logger) *GetQuestionStatisticsUsecase {
	return &GetQuestionStatisticsUsecase{questions: questions, stats: stats, logger: logger}
}

// Execute returns the aggregate of a question; a question nobody has submitted to
// yet has all counters at zero.
func (uc *GetQuestionStatisticsUsecase) Execute(ctx context.Context, questionID int64) (*domain.QuestionStatistics, error) {
	if _, err := uc.questions.GetByID(ctx, questionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}
	s, err := uc.stats.Get(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}
	return s, nil
}
