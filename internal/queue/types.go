package queue

import (
	"errors"
	"time"

	"github.com/ternarybob/recondo/internal/models"
)

// ErrNoJob is returned when no job is ready for claiming
var ErrNoJob = errors.New("no jobs ready")

// ErrJobNotFound is returned when a job id does not exist
var ErrJobNotFound = errors.New("job not found")

// jobRecord is the persisted form of one queue job
type jobRecord struct {
	ID           string          `json:"id"`
	Queue        string          `json:"queue"`
	Data         []byte          `json:"data"`
	State        models.JobState `json:"state"`
	Priority     int             `json:"priority"`
	Progress     int             `json:"progress"`
	AttemptsMade int             `json:"attempts_made"`
	MaxAttempts  int             `json:"max_attempts"`
	BackoffBase  time.Duration   `json:"backoff_base"`
	FailedReason string          `json:"failed_reason,omitempty"`
	ReturnValue  []byte          `json:"return_value,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	RunAt        time.Time       `json:"run_at"`
	FinishedOn   *time.Time      `json:"finished_on,omitempty"`
}

func (r *jobRecord) status() *models.JobStatus {
	return &models.JobStatus{
		ID:           r.ID,
		Queue:        r.Queue,
		State:        r.State,
		Progress:     r.Progress,
		AttemptsMade: r.AttemptsMade,
		MaxAttempts:  r.MaxAttempts,
		FailedReason: r.FailedReason,
		ReturnValue:  r.ReturnValue,
		Timestamp:    r.Timestamp,
		FinishedOn:   r.FinishedOn,
	}
}

// schedulerRecord is the persisted form of a recurring job template
type schedulerRecord struct {
	ID       string        `json:"id"`
	Queue    string        `json:"queue"`
	Every    time.Duration `json:"every"`
	StartAt  time.Time     `json:"start_at"`
	NextRun  time.Time     `json:"next_run"`
	Template []byte        `json:"template"`
}

// backoffDelay computes the exponential retry delay for the given attempt
// number (1-based): base, 2*base, 4*base, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
