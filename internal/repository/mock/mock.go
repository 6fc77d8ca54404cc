package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/repository"
)

// ---- SubmissionRepository mock ----

var _ repository.SubmissionRepository = (*SubmissionRepository)(nil)

// SubmissionRepository is an in-memory repository.SubmissionRepository with the same
// status compare-and-set semantics as the Postgres one.
type SubmissionRepository struct {
	mu     sync.Mutex
	nextID int64
	subs   map[uuid.UUID]*domain.Submission

	CreateFn     func(ctx context.Context, sub *domain.Submission) error
	GetFn        func(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	TransitionFn func(ctx context.Context, sub *domain.Submission, from domain.SubmissionStatus) error

	// Recorded successful transitions, in order.
	Transitions []Transition
}

type Transition struct {
	ID   uuid.UUID
	From domain.SubmissionStatus
	To   domain.SubmissionStatus
}

// NewSubmissionRepository creates an empty in-memory submission store.
func NewSubmissionRepository() *SubmissionRepository {
	return &SubmissionRepository{subs: make(map[uuid.UUID]*domain.Submission)}
}

func (m *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, sub)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sub.ID = m.nextID
	m.subs[sub.SubmissionID] = sub.Clone()
	return nil
}

func (m *SubmissionRepository) GetBySubmissionID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return sub.Clone(), nil
}

func (m *SubmissionRepository) Transition(ctx context.Context, sub *domain.Submission, from domain.SubmissionStatus) error {
	if m.TransitionFn != nil {
		return m.TransitionFn(ctx, sub, from)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.subs[sub.SubmissionID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != from {
		return repository.ErrConflict
	}
	next := sub.Clone()
	next.ID = stored.ID
	next.StatsRecorded = stored.StatsRecorded
	m.subs[sub.SubmissionID] = next
	m.Transitions = append(m.Transitions, Transition{ID: sub.SubmissionID, From: from, To: sub.Status})
	return nil
}

// Put stores a submission as-is, bypassing the state machine (for test setup).
func (m *SubmissionRepository) Put(sub *domain.Submission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.SubmissionID] = sub.Clone()
}

// Get returns the stored submission or nil (for test assertions).
func (m *SubmissionRepository) Get(id uuid.UUID) *domain.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[id]; ok {
		return sub.Clone()
	}
	return nil
}

// GetAll returns all stored submissions (for test assertions).
func (m *SubmissionRepository) GetAll() []*domain.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Submission, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s.Clone())
	}
	return out
}

func (m *SubmissionRepository) markStatsRecorded(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[id]; ok {
		sub.StatsRecorded = true
	}
}

// ---- QuestionRepository mock ----

var _ repository.QuestionRepository = (*QuestionRepository)(nil)

// QuestionRepository is an in-memory repository.QuestionRepository.
type QuestionRepository struct {
	mu        sync.Mutex
	nextID    int64
	questions map[int64]*domain.Question

	GetByIDFn func(ctx context.Context, id int64) (*domain.Question, error)
	CreateFn  func(ctx context.Context, q *domain.Question) error

	// Recorded calls for assertions.
	GetCalls int
}

// NewQuestionRepository creates an empty in-memory catalog.
func NewQuestionRepository() *QuestionRepository {
	return &QuestionRepository{questions: make(map[int64]*domain.Question)}
}

func (m *QuestionRepository) GetByID(ctx context.Context, id int64) (*domain.Question, error) {
	m.mu.Lock()
	m.GetCalls++
	m.mu.Unlock()
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *q
	if q.ReferenceSolution != nil {
		rs := *q.ReferenceSolution
		c.ReferenceSolution = &rs
	}
	return &c, nil
}

func (m *QuestionRepository) Create(ctx context.Context, q *domain.Question) error {
	if m.CreateFn != nil {
		if err := m.CreateFn(ctx, q); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == 0 {
		m.nextID++
		q.ID = m.nextID
	}
	for i := range q.TestCases {
		q.TestCases[i].QuestionID = q.ID
		q.TestCases[i].ID = int64(i + 1)
	}
	for i := range q.Metadata {
		q.Metadata[i].QuestionID = q.ID
	}
	if q.ReferenceSolution != nil {
		q.ReferenceSolution.QuestionID = q.ID
	}
	m.questions[q.ID] = q
	return nil
}

func (m *QuestionRepository) UpsertReferenceSolution(ctx context.Context, rs *domain.ReferenceSolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[rs.QuestionID]
	if !ok {
		return repository.ErrNotFound
	}
	c := *rs
	q.ReferenceSolution = &c
	return nil
}

func (m *QuestionRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.questions, id)
	return nil
}

// ---- StatisticsRepository mock ----

var _ repository.StatisticsRepository = (*StatisticsRepository)(nil)

// StatisticsRepository is an in-memory repository.StatisticsRepository enforcing the
// same version compare-and-set and once-per-submission rule as Postgres.
type StatisticsRepository struct {
	mu       sync.Mutex
	stats    map[int64]*domain.QuestionStatistics
	progress map[progressKey]domain.UserProgress
	recorded map[uuid.UUID]bool

	// Submissions, if set, has StatsRecorded flipped alongside each successful Save.
	Submissions *SubmissionRepository

	// SaveFn runs before the built-in compare-and-set; a non-nil error is returned as-is.
	SaveFn func(ctx context.Context, stats *domain.QuestionStatistics, expectedVersion int64) error

	SaveCalls int
	Conflicts int
}

type progressKey struct {
	questionID int64
	userID     string
}

// NewStatisticsRepository creates an empty in-memory statistics store.
func NewStatisticsRepository() *StatisticsRepository {
	return &StatisticsRepository{
		stats:    make(map[int64]*domain.QuestionStatistics),
		progress: make(map[progressKey]domain.UserProgress),
		recorded: make(map[uuid.UUID]bool),
	}
}

func (m *StatisticsRepository) Get(ctx context.Context, questionID int64) (*domain.QuestionStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stats[questionID]; ok {
		return s.Clone(), nil
	}
	return &domain.QuestionStatistics{QuestionID: questionID}, nil
}

func (m *StatisticsRepository) GetProgress(ctx context.Context, questionID int64, userID string) (domain.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.progress[progressKey{questionID, userID}]; ok {
		return p, nil
	}
	return domain.UserProgress{QuestionID: questionID, UserID: userID}, nil
}

func (m *StatisticsRepository) Save(ctx context.Context, stats *domain.QuestionStatistics, expectedVersion int64, p domain.UserProgress, submissionID uuid.UUID) error {
	m.mu.Lock()
	m.SaveCalls++
	m.mu.Unlock()
	if m.SaveFn != nil {
		if err := m.SaveFn(ctx, stats, expectedVersion); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recorded[submissionID] {
		return repository.ErrAlreadyApplied
	}
	var current int64
	if s, ok := m.stats[stats.QuestionID]; ok {
		current = s.Version
	}
	if current != expectedVersion {
		m.Conflicts++
		return repository.ErrConflict
	}

	stored := stats.Clone()
	stored.Version = expectedVersion + 1
	m.stats[stats.QuestionID] = stored
	m.progress[progressKey{p.QuestionID, p.UserID}] = p
	m.recorded[submissionID] = true
	stats.Version = stored.Version

	if m.Submissions != nil {
		m.Submissions.markStatsRecorded(submissionID)
	}
	return nil
}

// Recorded reports whether the submission's outcome was counted.
func (m *StatisticsRepository) Recorded(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recorded[id]
}

// ---- MetricsRepository mock ----

var _ repository.MetricsRepository = (*MetricsRepository)(nil)

// MetricsRepository is an in-memory repository.MetricsRepository; the first record wins.
type MetricsRepository struct {
	mu      sync.Mutex
	metrics map[uuid.UUID]*domain.ExecutionMetrics

	CreateFn func(ctx context.Context, m *domain.ExecutionMetrics) error
}

// NewMetricsRepository creates an empty in-memory metrics store.
func NewMetricsRepository() *MetricsRepository {
	return &MetricsRepository{metrics: make(map[uuid.UUID]*domain.ExecutionMetrics)}
}

func (m *MetricsRepository) Create(ctx context.Context, em *domain.ExecutionMetrics) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, em)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.metrics[em.SubmissionID]; ok {
		return nil
	}
	c := *em
	m.metrics[em.SubmissionID] = &c
	return nil
}

func (m *MetricsRepository) GetBySubmissionID(ctx context.Context, id uuid.UUID) (*domain.ExecutionMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	em, ok := m.metrics[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *em
	return &c, nil
}

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is a test double for repository.IdempotencyStore.
// Without hooks it behaves like an owner-checked lock table.
type IdempotencyStore struct {
	mu    sync.Mutex
	locks map[uuid.UUID]string

	AcquireLockFn func(ctx context.Context, id uuid.UUID, owner string) (bool, error)
	ReleaseLockFn func(ctx context.Context, id uuid.UUID, owner string) error
	ExtendLockFn  func(ctx context.Context, id uuid.UUID, owner string) (bool, error)

	AcquireCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
	ExtendCalls  []uuid.UUID
}

func (m *IdempotencyStore) AcquireLock(ctx context.Context, id uuid.UUID, owner string) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, id)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, id, owner)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = make(map[uuid.UUID]string)
	}
	if _, held := m.locks[id]; held {
		return false, nil
	}
	m.locks[id] = owner
	return true, nil
}

func (m *IdempotencyStore) ReleaseLock(ctx context.Context, id uuid.UUID, owner string) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, id)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, id, owner)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[id] == owner {
		delete(m.locks, id)
	}
	return nil
}

func (m *IdempotencyStore) ExtendLock(ctx context.Context, id uuid.UUID, owner string) (bool, error) {
	m.mu.Lock()
	m.ExtendCalls = append(m.ExtendCalls, id)
	m.mu.Unlock()
	if m.ExtendLockFn != nil {
		return m.ExtendLockFn(ctx, id, owner)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[id] == owner, nil
}

// Extends returns how many times ExtendLock was called.
func (m *IdempotencyStore) Extends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ExtendCalls)
}

// ---- Executor mock ----

var _ repository.Executor = (*Executor)(nil)

// Executor is a test double for repository.Executor.
type Executor struct {
	mu sync.Mutex

	ExecuteFn func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error)

	ExecuteCalls []*domain.ExecutionRequest
}

func (m *Executor) Execute(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	m.mu.Lock()
	m.ExecuteCalls = append(m.ExecuteCalls, req)
	m.mu.Unlock()
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, req)
	}
	return &domain.ExecutionResult{
		Status:       domain.ExecOK,
		Output:       "null",
		TimeUsedMs:   42,
		MemoryUsedKB: 1024,
	}, nil
}

// Calls returns a snapshot of recorded requests.
func (m *Executor) Calls() []*domain.ExecutionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ExecutionRequest(nil), m.ExecuteCalls...)
}

// ---- StatusEvents mock ----

var _ repository.StatusEvents = (*StatusEvents)(nil)

// StatusEvents records published events and forwards them to in-process subscribers.
type StatusEvents struct {
	mu   sync.Mutex
	subs map[uuid.UUID][]chan domain.StatusEvent

	PublishFn func(ctx context.Context, ev domain.StatusEvent) error

	Published []domain.StatusEvent
}

func (m *StatusEvents) Publish(ctx context.Context, ev domain.StatusEvent) error {
	if m.PublishFn != nil {
		if err := m.PublishFn(ctx, ev); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, ev)
	for _, ch := range m.subs[ev.SubmissionID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (m *StatusEvents) Subscribe(ctx context.Context, id uuid.UUID) (<-chan domain.StatusEvent, func(), error) {
	ch := make(chan domain.StatusEvent, 16)
	m.mu.Lock()
	if m.subs == nil {
		m.subs = make(map[uuid.UUID][]chan domain.StatusEvent)
	}
	m.subs[id] = append(m.subs[id], ch)
	m.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			list := m.subs[id]
			for i, c := range list {
				if c == ch {
					m.subs[id] = append(list[:i], list[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ch, stop, nil
}

// Statuses returns the published statuses for one submission, in order.
func (m *StatusEvents) Statuses(id uuid.UUID) []domain.SubmissionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SubmissionStatus
	for _, ev := range m.Published {
		if ev.SubmissionID == id {
			out = append(out, ev.Status)
		}
	}
	return out
}
