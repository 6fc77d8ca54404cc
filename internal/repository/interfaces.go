package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hrishabh6/algocrack/internal/domain"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")

	// ErrConflict is returned when a compare-and-set on status or version loses a race.
	ErrConflict = errors.New("repository: concurrent modification")

	// ErrAlreadyApplied is returned when a submission's outcome was already counted in statistics.
	ErrAlreadyApplied = errors.New("repository: outcome already applied")
)

// SubmissionRepository persists submissions.
// Implementations must be safe for concurrent use.
type SubmissionRepository interface {
	// Create inserts a QUEUED submission and fills in its internal id.
	Create(ctx context.Context, sub *domain.Submission) error

	// GetBySubmissionID loads a submission by its external id.
	GetBySubmissionID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)

	// Transition writes the submission's current in-memory state only if the stored
	// status still equals from. Returns ErrConflict otherwise.
	Transition(ctx context.Context, sub *domain.Submission, from domain.SubmissionStatus) error
}

// QuestionRepository persists the question catalog. A question owns its test cases,
// reference solution, metadata and curated solutions; deleting it deletes them.
type QuestionRepository interface {
	// GetByID loads a question with everything it owns. Test cases keep insertion order.
	GetByID(ctx context.Context, id int64) (*domain.Question, error)

	// Create inserts a question and its children in one transaction.
	Create(ctx context.Context, q *domain.Question) error

	// UpsertReferenceSolution replaces the oracle of a question.
	UpsertReferenceSolution(ctx context.Context, rs *domain.ReferenceSolution) error

	// Delete removes a question and everything it owns.
	Delete(ctx context.Context, id int64) error
}

// StatisticsRepository persists per-question aggregates with optimistic versioning.
type StatisticsRepository interface {
	// Get returns the aggregate for a question. A question never judged yields a
	// zero aggregate with Version 0.
	Get(ctx context.Context, questionID int64) (*domain.QuestionStatistics, error)

	// GetProgress returns a user's progress on a question, zero-valued if absent.
	GetProgress(ctx context.Context, questionID int64, userID string) (domain.UserProgress, error)

	// Save writes stats only if the stored version equals expectedVersion, bumping it by one.
	// In the same transaction it stores progress and marks the submission as counted.
	// Returns ErrConflict on a version mismatch and ErrAlreadyApplied if the submission
	// was already counted.
	Save(ctx context.Context, stats *domain.QuestionStatistics, expectedVersion int64, progress domain.UserProgress, submissionID uuid.UUID) error
}

// MetricsRepository persists execution metrics. Records are written once.
type MetricsRepository interface {
	Create(ctx context.Context, m *domain.ExecutionMetrics) error
	GetBySubmissionID(ctx context.Context, id uuid.UUID) (*domain.ExecutionMetrics, error)
}

// IdempotencyStore defines the interface for distributed processing locks.
type IdempotencyStore interface {
	// AcquireLock attempts to take the processing lock for a submission on behalf of owner.
	// Returns false if another owner holds it.
	AcquireLock(ctx context.Context, id uuid.UUID, owner string) (bool, error)

	// ReleaseLock drops the lock if owner still holds it.
	ReleaseLock(ctx context.Context, id uuid.UUID, owner string) error

	// ExtendLock resets the lock's TTL if owner still holds it.
	// Returns false if the lock expired or passed to another owner.
	ExtendLock(ctx context.Context, id uuid.UUID, owner string) (bool, error)
}

// Executor is the sandboxed execution engine. User code and reference solutions
// go through the same implementation.
type Executor interface {
	// Execute runs one request. A returned error means the engine itself failed;
	// compile errors, crashes and limits are reported through ExecutionResult.Status.
	Execute(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error)
}

// StatusEvents fans out submission status changes to live subscribers.
type StatusEvents interface {
	Publish(ctx context.Context, ev domain.StatusEvent) error

	// Subscribe returns a channel of events for one submission. The channel is closed
	// once ctx is done or the returned cancel func is called.
	Subscribe(ctx context.Context, id uuid.UUID) (<-chan domain.StatusEvent, func(), error)
}
