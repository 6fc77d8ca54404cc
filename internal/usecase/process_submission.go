package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/judge"
	"github.com/hrishabh6/algocrack/internal/repository"
)

// DefaultLockHeartbeat is how often a judging worker extends its submission lock.
// It must stay well below the lock TTL.
const DefaultLockHeartbeat = 10 * time.Second

// errWorkerLost is the logged cause when a redelivered submission is found mid-judging.
var errWorkerLost = errors.New("submission redelivered mid-judging; previous worker presumed dead")

// ProcessSubmissionUsecase is the worker side of the pipeline: it takes the
// per-submission lock, works out what a (re)delivery means for the stored state
// and hands QUEUED submissions to the judging coordinator.
type ProcessSubmissionUsecase struct {
	subs      repository.SubmissionRepository
	questions repository.QuestionRepository
	locks     repository.IdempotencyStore
	coord     *judge.Coordinator
	recorder  judge.OutcomeRecorder
	workerID  string
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewProcessSubmissionUsecase creates a new ProcessSubmissionUsecase.
func NewProcessSubmissionUsecase(
	subs repository.SubmissionRepository,
	questions repository.QuestionRepository,
	locks repository.IdempotencyStore,
	coord *judge.Coordinator,
	recorder judge.OutcomeRecorder,
	workerID string,
	logger *zap.Logger,
) *ProcessSubmissionUsecase {
	return &ProcessSubmissionUsecase{
		subs:      subs,
		questions: questions,
		locks:     locks,
		coord:     coord,
		recorder:  recorder,
		workerID:  workerID,
		heartbeat: DefaultLockHeartbeat,
		logger:    logger,
	}
}

// WithLockHeartbeat sets how often the held lock is extended while judging.
// Zero or less disables extension.
func (uc *ProcessSubmissionUsecase) WithLockHeartbeat(d time.Duration) *ProcessSubmissionUsecase {
	uc.heartbeat = d
	return uc
}

// Execute processes one delivery. Returns (isDuplicate, error): a duplicate needs
// no further work and the message can be acknowledged. ErrSubmissionBusy means
// another worker is judging the submission right now and the delivery should be
// retried once its lock is released or expires.
func (uc *ProcessSubmissionUsecase) Execute(ctx context.Context, id uuid.UUID) (bool, error) {
	acquired, err := uc.locks.AcquireLock(ctx, id, uc.workerID)
	if err != nil {
		uc.logger.Error("Failed to acquire idempotency lock", zap.Error(err), zap.String("submission_id", id.String()))
		return false, err
	}
	if !acquired {
		return uc.lockedElsewhere(ctx, id)
	}
	defer func() {
		if err := uc.locks.ReleaseLock(context.WithoutCancel(ctx), id, uc.workerID); err != nil {
			uc.logger.Warn("Failed to release idempotency lock", zap.Error(err), zap.String("submission_id", id.String()))
		}
	}()
	stop := uc.keepLock(ctx, id)
	defer stop()

	sub, err := uc.subs.GetBySubmissionID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, fmt.Errorf("submission %s: %w", id, domain.ErrSubmissionNotFound)
		}
		return false, fmt.Errorf("load submission: %w", err)
	}

	switch sub.Status {
	case domain.StatusCompleted, domain.StatusFailed:
		if err := uc.reemitOutcome(ctx, sub); err != nil {
			return false, err
		}
		return true, nil

	case domain.StatusCompiling, domain.StatusRunning:
		uc.logger.Warn("Redelivered submission found mid-judging, forcing FAILED",
			zap.String("submission_id", id.String()),
			zap.String("status", string(sub.Status)),
			zap.String("previous_worker_id", sub.WorkerID),
		)
		if err := uc.coord.Abandon(ctx, sub, errWorkerLost); err != nil && !errors.Is(err, judge.ErrClaimed) {
			return false, err
		}
		return true, nil
	}

	q, err := uc.questions.GetByID(ctx, sub.QuestionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			cause := fmt.Errorf("question %d: %w", sub.QuestionID, domain.ErrQuestionNotFound)
			if err := uc.coord.Abandon(ctx, sub, cause); err != nil && !errors.Is(err, judge.ErrClaimed) {
				return false, err
			}
			return false, nil
		}
		return false, fmt.Errorf("load question: %w", err)
	}

	if err := uc.coord.Judge(ctx, sub, q); err != nil {
		if errors.Is(err, judge.ErrClaimed) {
			return true, nil
		}
		uc.logger.Error("Judging did not complete", zap.Error(err), zap.String("submission_id", id.String()))
		return false, err
	}
	return false, nil
}

// lockedElsewhere decides what a delivery means when another owner holds the lock.
// A judged submission is a duplicate; anything else is still being worked on,
// or its worker died and the lock has not expired yet.
func (uc *ProcessSubmissionUsecase) lockedElsewhere(ctx context.Context, id uuid.UUID) (bool, error) {
	sub, err := uc.subs.GetBySubmissionID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, fmt.Errorf("submission %s: %w", id, domain.ErrSubmissionNotFound)
		}
		return false, fmt.Errorf("load submission: %w", err)
	}
	if sub.Status.IsTerminal() {
		uc.logger.Info("Submission already judged by another worker, skipping", zap.String("submission_id", id.String()))
		return true, nil
	}
	uc.logger.Info("Submission locked by another worker, retrying later",
		zap.String("submission_id", id.String()),
		zap.String("status", string(sub.Status)),
	)
	return false, fmt.Errorf("submission %s: %w", id, domain.ErrSubmissionBusy)
}

// keepLock extends the submission lock every heartbeat until the returned stop
// function is called.
func (uc *ProcessSubmissionUsecase) keepLock(ctx context.Context, id uuid.UUID) (stop func()) {
	if uc.heartbeat <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(uc.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				held, err := uc.locks.ExtendLock(ctx, id, uc.workerID)
				if err != nil {
					uc.logger.Warn("Failed to extend idempotency lock", zap.Error(err), zap.String("submission_id", id.String()))
					continue
				}
				if !held {
					uc.logger.Warn("Idempotency lock lost while judging", zap.String("submission_id", id.String()))
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// reemitOutcome repeats the statistics event of a terminal submission whose
// previous delivery crashed before the event was recorded.
func (uc *ProcessSubmissionUsecase) reemitOutcome(ctx context.Context, sub *domain.Submission) error {
	if sub.StatsRecorded || uc.recorder == nil {
		uc.logger.Info("Submission already judged, skipping", zap.String("submission_id", sub.SubmissionID.String()))
		return nil
	}
	o, ok := sub.Outcome()
	if !ok {
		return nil
	}
	uc.logger.Info("Re-emitting statistics event for judged submission", zap.String("submission_id", sub.SubmissionID.String()))
	if err := uc.recorder.RecordOutcome(ctx, o); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}
