// Package queue carries verification work from the API to the worker.
// The NATS JetStream implementation owns durability and redelivery; the
// inline implementation serves single-process deployments and tests.
package queue

import "context"

// Priorities for verification tasks. High priority is used when a caller
// explicitly requests verification; normal for background promotion.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// VerificationTask is the unit of work handed to the verifier.
type VerificationTask struct {
	JobID    string `json:"job_id"`
	Topic    string `json:"topic"`
	Priority string `json:"priority"`
}

// Handler processes one task. A returned error signals the transport to
// redeliver, up to its delivery cap.
type Handler func(ctx context.Context, task VerificationTask) error

// Queue is the transport between enqueuers and the verification worker.
type Queue interface {
	EnqueueVerification(ctx context.Context, task VerificationTask) error
	ConsumeVerifications(ctx context.Context, handler Handler) error
	Health() error
	Close() error
}
