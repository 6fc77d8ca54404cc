package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/metrics"
	"github.com/hrishabh6/algocrack/internal/publisher"
	"github.com/hrishabh6/algocrack/internal/repository"
)

const maxSourceCodeSize = 1 << 20 // 1 MB

// SubmitRequest is the input of SubmitCode.
type SubmitRequest struct {
	UserID     string
	QuestionID int64
	Language   domain.Language
	Code       string
	Mode       domain.Mode
	IPAddress  string
	UserAgent  string
}

// SubmitCodeUsecase validates a submission, stores it QUEUED and hands it to the broker.
type SubmitCodeUsecase struct {
	subs      repository.SubmissionRepository
	questions repository.QuestionRepository
	publisher publisher.Publisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewSubmitCodeUsecase creates a new SubmitCodeUsecase.
func NewSubmitCodeUsecase(
	subs repository.SubmissionRepository,
	questions repository.QuestionRepository,
	pub publisher.Publisher,
	logger *zap.Logger,
) *SubmitCodeUsecase {
	return &SubmitCodeUsecase{
		subs:      subs,
		questions: questions,
		publisher: pub,
		now:       time.Now,
		logger:    logger,
	}
}

// Execute enqueues the submission and returns it in the QUEUED state.
// It fails with a ValidationError if the question cannot judge the language.
func (uc *SubmitCodeUsecase) Execute(ctx context.Context, req *SubmitRequest) (*domain.Submission, error) {
	if req.Mode == "" {
		req.Mode = domain.ModeSubmit
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	q, err := uc.questions.GetByID(ctx, req.QuestionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}
	if _, ok := q.MetadataFor(req.Language); !ok {
		return nil, &domain.ValidationError{Field: "language", Reason: fmt.Sprintf("%s is not supported for this question", req.Language)}
	}
	if q.ReferenceSolution == nil {
		return nil, &domain.ValidationError{Field: "question_id", Reason: "question has no reference solution"}
	}

	sub, err := domain.NewSubmission(req.UserID, req.QuestionID, req.Language, req.Code, req.Mode, uc.now())
	if err != nil {
		return nil, err
	}
	sub.IPAddress = req.IPAddress
	sub.UserAgent = req.UserAgent

	if err := uc.subs.Create(ctx, sub); err != nil {
		uc.logger.Error("Failed to create submission in database", zap.Error(err), zap.String("submission_id", sub.SubmissionID.String()))
		return nil, fmt.Errorf("create submission: %w", err)
	}

	if err := uc.publisher.Publish(ctx, sub); err != nil {
		uc.logger.Error("Failed to publish submission to queue", zap.Error(err), zap.String("submission_id", sub.SubmissionID.String()))
		// Nothing will judge it; settle it so it does not stay QUEUED forever.
		if failErr := sub.Fail(domain.Judgement{ErrorMessage: domain.GenericFailureMessage}, uc.now()); failErr == nil {
			if err := uc.subs.Transition(ctx, sub, domain.StatusQueued); err != nil {
				uc.logger.Warn("Failed to mark unpublished submission FAILED", zap.Error(err), zap.String("submission_id", sub.SubmissionID.String()))
			}
		}
		return nil, domain.ErrPublishFailed
	}

	metrics.SubmissionsAccepted.WithLabelValues(string(sub.Language), string(sub.Mode)).Inc()
	uc.logger.Info("Submission queued",
		zap.String("submission_id", sub.SubmissionID.String()),
		zap.Int64("question_id", sub.QuestionID),
		zap.String("user_id", sub.UserID),
		zap.String("language", string(sub.Language)),
		zap.String("mode", string(sub.Mode)),
	)
	return sub, nil
}

func validate(req *SubmitRequest) error {
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return &domain.ValidationError{Field: "user_id", Reason: "required"}
	case req.QuestionID <= 0:
		return &domain.ValidationError{Field: "question_id", Reason: "must be positive"}
	case !req.Language.IsValid():
		return &domain.ValidationError{Field: "language", Reason: fmt.Sprintf("unknown language %q", req.Language)}
	case !req.Mode.IsValid():
		return &domain.ValidationError{Field: "mode", Reason: "must be run or submit"}
	case strings.TrimSpace(req.Code) == "":
		return domain.ErrEmptySourceCode
	case len(req.Code) > maxSourceCodeSize:
		return domain.ErrPayloadTooLarge
	}
	return nil
}
