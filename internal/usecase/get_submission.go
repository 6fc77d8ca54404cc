package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/repository"
)

// GetSubmissionUsecase handles fetching submission status and results.
type GetSubmissionUsecase struct {
	repo   repository.SubmissionRepository
	logger *zap.Logger
}

// NewGetSubmissionUsecase creates a new GetSubmissionUsecase.
func NewGetSubmissionUsecase(repo repository.SubmissionRepository, logger *zap.Logger) *GetSubmissionUsecase {
	return &GetSubmissionUsecase{
		repo:   repo,
		logger: logger,
	}
}

// Execute retrieves a submission by its external id. Outputs of hidden test cases
// are stripped before it is returned.
func (uc *GetSubmissionUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	sub, err := uc.repo.GetBySubmissionID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			uc.logger.Debug("Submission not found", zap.String("submission_id", id.String()))
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("load submission: %w", err)
	}
	return redact(sub), nil
}

func redact(sub *domain.Submission) *domain.Submission {
	out := sub.Clone()
	for i := range out.TestResults {
		if out.TestResults[i].Hidden {
			out.TestResults[i].ActualOutput = ""
		}
	}
	return out
}
