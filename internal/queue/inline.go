package queue

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// InlineQueue is an in-process Queue for single-binary deployments and
// tests. It mirrors the JetStream delivery contract, including the
// per-task delivery cap, but holds tasks only in memory.
type InlineQueue struct {
	tasks chan delivery
}

type delivery struct {
	task     VerificationTask
	attempts int
}

// NewInline creates an inline queue with the given buffer size.
func NewInline(buffer int) *InlineQueue {
	if buffer <= 0 {
		buffer = 256
	}
	return &InlineQueue{tasks: make(chan delivery, buffer)}
}

func (q *InlineQueue) EnqueueVerification(ctx context.Context, task VerificationTask) error {
	select {
	case q.tasks <- delivery{task: task}:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "queue: enqueue cancelled")
	default:
		return eris.Errorf("queue: inline buffer full, dropping job %s", task.JobID)
	}
}

// ConsumeVerifications processes tasks until the context is cancelled.
// Failed tasks are redelivered up to the same cap the NATS transport uses.
func (q *InlineQueue) ConsumeVerifications(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-q.tasks:
			d.attempts++
			if err := handler(ctx, d.task); err != nil {
				if d.attempts >= maxDeliver {
					zap.L().Error("verification task exhausted deliveries",
						zap.String("job_id", d.task.JobID),
						zap.Int("attempts", d.attempts),
						zap.Error(err),
					)
					continue
				}
				select {
				case q.tasks <- d:
				default:
					zap.L().Error("inline buffer full, dropping failed task",
						zap.String("job_id", d.task.JobID),
					)
				}
			}
		}
	}
}

func (q *InlineQueue) Health() error { return nil }

func (q *InlineQueue) Close() error { return nil }
