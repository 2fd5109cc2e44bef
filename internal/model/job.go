package model

import "time"

// JobStatus represents the current state of a verification job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// VerificationJob tracks one requested verification of a topic's stored
// explanation. Completed and failed are terminal; a failed job is never
// re-queued automatically.
type VerificationJob struct {
	ID          string     `json:"id"`
	Topic       string     `json:"topic"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	WorkerLog   string     `json:"worker_log,omitempty"`
}
