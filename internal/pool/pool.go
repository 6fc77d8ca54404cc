package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/backoff"
	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/metrics"
	"github.com/hrishabh6/algocrack/internal/usecase"
)

// DefaultRequeueDelay is how long a worker holds a busy submission's message
// before requeueing it.
const DefaultRequeueDelay = 2 * time.Second

// WorkerPool manages a fixed-size pool of goroutines that judge submissions.
type WorkerPool struct {
	size      int
	jobs      <-chan *domain.SubmissionMessage
	processUC *usecase.ProcessSubmissionUsecase
	logger    *zap.Logger
	wg        sync.WaitGroup

	requeueDelay time.Duration
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, jobs <-chan *domain.SubmissionMessage, processUC *usecase.ProcessSubmissionUsecase, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:      size,
		jobs:      jobs,
		processUC: processUC,
		logger:    logger,

		requeueDelay: DefaultRequeueDelay,
	}
}

// WithRequeueDelay sets the pause before a busy submission is requeued.
func (p *WorkerPool) WithRequeueDelay(d time.Duration) *WorkerPool {
	p.requeueDelay = d
	return p
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
// Cancelling ctx stops intake; a submission already being judged runs to completion.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current submissions and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("Submission channel closed", zap.Int("worker_id", id))
				return
			}
			p.handle(context.WithoutCancel(ctx), id, msg)
		}
	}
}

func (p *WorkerPool) handle(ctx context.Context, id int, msg *domain.SubmissionMessage) {
	subID := msg.SubmissionID.String()

	// Track active workers gauge.
	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", id),
				zap.String("submission_id", subID),
				zap.Any("panic", r),
			)
			if nackErr := msg.Nack(false); nackErr != nil {
				p.logger.Error("Failed to NACK message", zap.String("submission_id", subID), zap.Error(nackErr))
			}
		}
	}()

	p.logger.Info("Worker processing submission",
		zap.Int("worker_id", id),
		zap.String("submission_id", subID),
	)
	startTime := time.Now()

	isDuplicate, err := p.processUC.Execute(ctx, msg.SubmissionID)
	if errors.Is(err, domain.ErrSubmissionBusy) {
		// Another worker holds the lock. Requeue after a pause so the message
		// comes back once that worker finishes or its lock expires.
		_ = backoff.Sleep(ctx, p.requeueDelay)
		if nackErr := msg.Nack(true); nackErr != nil {
			p.logger.Error("Failed to requeue message", zap.String("submission_id", subID), zap.Error(nackErr))
		}
		return
	}
	if err != nil {
		p.logger.Error("Submission processing failed",
			zap.Int("worker_id", id),
			zap.String("submission_id", subID),
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Error(err),
		)

		// Nack without requeue: failed submissions go to DLQ.
		// Requeuing a deterministic failure would cause an infinite loop.
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Error("Failed to NACK message",
				zap.String("submission_id", subID),
				zap.Error(nackErr),
			)
		}
		return
	}

	if isDuplicate {
		p.logger.Debug("Duplicate delivery skipped",
			zap.Int("worker_id", id),
			zap.String("submission_id", subID),
		)
	}

	// Processed or duplicate: ACK so the message leaves the queue.
	if ackErr := msg.Ack(); ackErr != nil {
		p.logger.Error("Failed to ACK message",
			zap.String("submission_id", subID),
			zap.Error(ackErr),
		)
	}
}
