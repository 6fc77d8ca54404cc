// Package stats maintains per-question aggregates under concurrent updates.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/backoff"
	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/metrics"
	"github.com/hrishabh6/algocrack/internal/repository"
)

// Aggregator folds submission outcomes into QuestionStatistics with an optimistic
// compare-and-swap loop: read, apply, write-if-version-unchanged, retry on conflict.
type Aggregator struct {
	repo      repository.StatisticsRepository
	baseDelay time.Duration
	maxDelay  time.Duration
	logger    *zap.Logger
}

// NewAggregator creates an Aggregator. baseDelay and maxDelay bound the jittered
// backoff between conflicting attempts.
func NewAggregator(repo repository.StatisticsRepository, baseDelay, maxDelay time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{repo: repo, baseDelay: baseDelay, maxDelay: maxDelay, logger: logger}
}

// RecordOutcome counts one terminal submission. Conflicts are retried until the
// write lands or ctx is done; they are never surfaced. An outcome already counted
// for the same submission is a no-op.
func (a *Aggregator) RecordOutcome(ctx context.Context, o domain.Outcome) error {
	for attempt := 0; ; attempt++ {
		stats, err := a.repo.Get(ctx, o.QuestionID)
		if err != nil {
			return fmt.Errorf("stats: load: %w", err)
		}
		progress, err := a.repo.GetProgress(ctx, o.QuestionID, o.UserID)
		if err != nil {
			return fmt.Errorf("stats: load progress: %w", err)
		}

		expected := stats.Version
		progress = stats.Apply(o, progress)

		err = a.repo.Save(ctx, stats, expected, progress, o.SubmissionID)
		switch {
		case err == nil:
			a.logger.Debug("Statistics updated",
				zap.Int64("question_id", o.QuestionID),
				zap.String("submission_id", o.SubmissionID.String()),
				zap.Int64("version", stats.Version),
				zap.Int("attempt", attempt+1),
			)
			return nil
		case errors.Is(err, repository.ErrAlreadyApplied):
			a.logger.Info("Outcome already counted, skipping",
				zap.String("submission_id", o.SubmissionID.String()),
			)
			return nil
		case errors.Is(err, repository.ErrConflict):
			metrics.StatsConflicts.Inc()
			delay := backoff.Jitter(backoff.Compute(attempt, a.baseDelay, a.maxDelay))
			if err := backoff.Sleep(ctx, delay); err != nil {
				return fmt.Errorf("stats: gave up after %d conflicts: %w", attempt+1, err)
			}
		default:
			return fmt.Errorf("stats: save: %w", err)
		}
	}
}

// Get returns the current aggregate for a question.
func (a *Aggregator) Get(ctx context.Context, questionID int64) (*domain.QuestionStatistics, error) {
	s, err := a.repo.Get(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("stats: load: %w", err)
	}
	return s, nil
}
