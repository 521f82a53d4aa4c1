package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/common"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

// Service implements interfaces.QueueService on a Badger database. Each named
// queue carries its own defaults for attempts, backoff, and retention.
type Service struct {
	store        *store
	logger       arbor.ILogger
	defaults     map[string]interfaces.QueueOptions
	workers      []*worker
	workersByQ   map[string]*worker
	pollInterval time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.Mutex
	started      bool
}

// Compile-time assertion
var _ interfaces.QueueService = (*Service)(nil)

// NewService creates a queue service. Defaults apply per queue name; queues
// without an entry get a single attempt and no retention bounds.
func NewService(db *badgerdb.DB, defaults map[string]interfaces.QueueOptions, pollInterval time.Duration, logger arbor.ILogger) *Service {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:        &store{db: db},
		logger:       logger,
		defaults:     defaults,
		workersByQ:   make(map[string]*worker),
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (s *Service) options(name string) interfaces.QueueOptions {
	opts, ok := s.defaults[name]
	if !ok {
		opts = interfaces.QueueOptions{}
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Attempts > 5 {
		opts.Attempts = 5
	}
	if opts.Backoff.Base <= 0 {
		opts.Backoff.Base = time.Second
	}
	return opts
}

// Add enqueues a job. When opts.JobID names an existing job that is not in a
// terminal state the call is a no-op returning the existing id; a terminal
// record under the same id is replaced (rerun semantics).
func (s *Service) Add(ctx context.Context, name string, data []byte, opts *interfaces.AddOptions) (string, error) {
	qOpts := s.options(name)

	id := ""
	delay := time.Duration(0)
	priority := 0
	if opts != nil {
		id = opts.JobID
		delay = opts.Delay
		priority = opts.Priority
	}
	if id == "" {
		id = common.NewID()
	} else {
		existing, err := s.GetJob(ctx, id)
		if err != nil && err != ErrJobNotFound {
			return "", err
		}
		if existing != nil {
			if !existing.State.Terminal() {
				s.logger.Debug().
					Str("queue", name).
					Str("job_id", id).
					Str("state", string(existing.State)).
					Msg("Job already queued, skipping add")
				return id, nil
			}
			if err := s.store.remove(existing.Queue, id); err != nil {
				return "", fmt.Errorf("failed to replace finished job: %w", err)
			}
		}
	}

	now := time.Now()
	rec := &jobRecord{
		ID:          id,
		Queue:       name,
		Data:        data,
		State:       models.JobQueued,
		Priority:    priority,
		MaxAttempts: qOpts.Attempts,
		BackoffBase: qOpts.Backoff.Base,
		Timestamp:   now,
		RunAt:       now.Add(delay),
	}

	if err := s.store.insert(rec); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Debug().
		Str("queue", name).
		Str("job_id", id).
		Dur("delay", delay).
		Msg("Job enqueued")

	return id, nil
}

// GetJob returns the status of a job by id
func (s *Service) GetJob(ctx context.Context, id string) (*models.JobStatus, error) {
	queue, err := s.store.resolveQueue(id)
	if err != nil {
		return nil, err
	}
	var rec *jobRecord
	err = s.store.db.View(func(txn *badgerdb.Txn) error {
		var err error
		rec, err = s.store.getRecord(txn, queue, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec.status(), nil
}

// GetState returns just the lifecycle state of a job
func (s *Service) GetState(ctx context.Context, id string) (models.JobState, error) {
	status, err := s.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	return status.State, nil
}

// GetCompleted returns completed jobs still under retention, oldest first
func (s *Service) GetCompleted(ctx context.Context, name string) ([]*models.JobStatus, error) {
	return s.listFinished(name, "done")
}

// GetFailed returns terminally failed jobs still under retention, oldest first
func (s *Service) GetFailed(ctx context.Context, name string) ([]*models.JobStatus, error) {
	return s.listFinished(name, "dead")
}

func (s *Service) listFinished(name, kind string) ([]*models.JobStatus, error) {
	records, err := s.store.listFinished(name, kind)
	if err != nil {
		return nil, err
	}
	statuses := make([]*models.JobStatus, 0, len(records))
	for _, rec := range records {
		statuses = append(statuses, rec.status())
	}
	return statuses, nil
}

// UpsertScheduler stores a recurrence for the queue: a copy of template is
// enqueued at every tick. Ticks align to startAt (epoch when nil).
func (s *Service) UpsertScheduler(ctx context.Context, id string, every time.Duration, startAt *time.Time, name string, template []byte) error {
	if every <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}
	start := time.Unix(0, 0)
	if startAt != nil {
		start = *startAt
	}
	rec := &schedulerRecord{
		ID:       id,
		Queue:    name,
		Every:    every,
		StartAt:  start,
		NextRun:  nextAligned(start, every, time.Now()),
		Template: template,
	}
	if err := s.store.putScheduler(rec); err != nil {
		return fmt.Errorf("failed to upsert scheduler: %w", err)
	}
	s.logger.Info().
		Str("scheduler_id", id).
		Str("queue", name).
		Dur("every", every).
		Str("next_run", rec.NextRun.Format(time.RFC3339)).
		Msg("Scheduler upserted")
	return nil
}

// nextAligned returns the first tick aligned to start+k*every that is after now
func nextAligned(start time.Time, every time.Duration, now time.Time) time.Time {
	if now.Before(start) {
		return start
	}
	elapsed := now.Sub(start)
	ticks := elapsed/every + 1
	return start.Add(ticks * every)
}

// Remove deletes a job in any state
func (s *Service) Remove(ctx context.Context, id string) error {
	queue, err := s.store.resolveQueue(id)
	if err == ErrJobNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.remove(queue, id)
}

// Subscribe registers a worker for the named queue
func (s *Service) Subscribe(name string, concurrency int, handler interfaces.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workersByQ[name]; exists {
		return fmt.Errorf("queue %s already has a subscriber", name)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	w := newWorker(s, name, concurrency, handler, s.logger)
	s.workers = append(s.workers, w)
	s.workersByQ[name] = w

	s.logger.Debug().
		Str("queue", name).
		Int("concurrency", concurrency).
		Msg("Queue subscriber registered")
	return nil
}

// Start launches all subscribed workers and the scheduler loop
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	for _, w := range s.workers {
		w.start(s.ctx, &s.wg)
	}

	s.wg.Add(1)
	go s.schedulerLoop()

	s.logger.Info().
		Int("queues", len(s.workers)).
		Msg("Queue service started")
	return nil
}

// Stop cancels the workers and waits for in-flight handlers to finish, or for
// the supplied context to expire.
func (s *Service) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Queue service stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Queue service stop timed out with handlers in flight")
		return ctx.Err()
	}
}

// schedulerLoop fires due schedulers once per second
func (s *Service) schedulerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.fireDueSchedulers()
		}
	}
}

func (s *Service) fireDueSchedulers() {
	schedulers, err := s.store.listSchedulers()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list schedulers")
		return
	}

	now := time.Now()
	for _, sched := range schedulers {
		if sched.NextRun.After(now) {
			continue
		}
		if _, err := s.Add(s.ctx, sched.Queue, sched.Template, nil); err != nil {
			s.logger.Warn().
				Err(err).
				Str("scheduler_id", sched.ID).
				Msg("Failed to enqueue scheduled job")
		}
		sched.NextRun = nextAligned(sched.StartAt, sched.Every, now)
		if err := s.store.putScheduler(sched); err != nil {
			s.logger.Warn().
				Err(err).
				Str("scheduler_id", sched.ID).
				Msg("Failed to advance scheduler")
		}
	}
}

// pruneFinished applies the queue's retention after a terminal transition
func (s *Service) pruneFinished(name string) {
	qOpts := s.options(name)
	if err := s.store.prune(name, "done", retentionBounds{
		maxCount: qOpts.RemoveOnComplete.MaxCount,
		maxAge:   qOpts.RemoveOnComplete.MaxAge,
		never:    qOpts.RemoveOnComplete.Never,
	}); err != nil {
		s.logger.Warn().Err(err).Str("queue", name).Msg("Failed to prune completed jobs")
	}
	if err := s.store.prune(name, "dead", retentionBounds{
		maxCount: qOpts.RemoveOnFail.MaxCount,
		maxAge:   qOpts.RemoveOnFail.MaxAge,
		never:    qOpts.RemoveOnFail.Never,
	}); err != nil {
		s.logger.Warn().Err(err).Str("queue", name).Msg("Failed to prune failed jobs")
	}
}
