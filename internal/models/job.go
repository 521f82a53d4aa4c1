package models

import "time"

// JobState is the lifecycle state of a queue record
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobComplete   JobState = "complete"
	JobFailed     JobState = "failed"
)

// Terminal reports whether the state admits no further transitions
func (s JobState) Terminal() bool {
	return s == JobComplete || s == JobFailed
}

// JobStatus is the queryable view of a queue record
type JobStatus struct {
	ID           string     `json:"id"`
	Queue        string     `json:"queue"`
	State        JobState   `json:"state"`
	Progress     int        `json:"progress,omitempty"`
	AttemptsMade int        `json:"attempts_made"`
	MaxAttempts  int        `json:"max_attempts"`
	FailedReason string     `json:"failed_reason,omitempty"`
	ReturnValue  []byte     `json:"return_value,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	FinishedOn   *time.Time `json:"finished_on,omitempty"`
}
