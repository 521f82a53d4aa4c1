package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/recondo/internal/models"
)

// Backoff describes the retry delay strategy for a queue
type Backoff struct {
	// Base is the first retry delay; attempt n waits Base * 2^(n-1)
	Base time.Duration
}

// Retention bounds how long finished records are kept
type Retention struct {
	MaxCount int           // 0 = unlimited
	MaxAge   time.Duration // 0 = unlimited
	Never    bool          // keep forever, ignore bounds
}

// QueueOptions are per-queue defaults
type QueueOptions struct {
	Attempts         int // 1..5
	Backoff          Backoff
	RemoveOnComplete Retention
	RemoveOnFail     Retention
}

// AddOptions are per-job overrides supplied at enqueue time
type AddOptions struct {
	JobID    string        // dedup key; existing non-terminal id makes Add a no-op
	Delay    time.Duration // initial scheduling delay
	Priority int           // higher runs earlier among ready jobs
}

// Job is the live handle a handler receives
type Job interface {
	ID() string
	Queue() string
	Data() []byte
	AttemptsMade() int
	MaxAttempts() int
	Progress(ctx context.Context, pct int) error
}

// Handler processes one job. A nil error completes the job with the returned
// value; an error retries (with backoff) until attempts are exhausted, then
// fails terminally with the error message as failedReason.
type Handler func(ctx context.Context, job Job) ([]byte, error)

// QueueService is a set of named, durable FIFO queues of job records
type QueueService interface {
	Add(ctx context.Context, name string, data []byte, opts *AddOptions) (string, error)
	GetJob(ctx context.Context, id string) (*models.JobStatus, error)
	GetState(ctx context.Context, id string) (models.JobState, error)
	GetCompleted(ctx context.Context, name string) ([]*models.JobStatus, error)
	GetFailed(ctx context.Context, name string) ([]*models.JobStatus, error)
	UpsertScheduler(ctx context.Context, id string, every time.Duration, startAt *time.Time, name string, template []byte) error
	Remove(ctx context.Context, id string) error

	// Subscribe attaches a worker with the given concurrency. Workers run
	// from Start until Stop. Subscribing twice to the same queue is an error.
	Subscribe(name string, concurrency int, handler Handler) error

	Start() error
	Stop(ctx context.Context) error
}
