// Package store persists explanations and verification jobs. Two
// implementations exist: Postgres for deployments and SQLite for local
// development and the CLI.
package store

import (
	"context"

	"github.com/quicklearn/quicklearn/internal/model"
)

// Store defines the persistence interface for explanations and
// verification jobs. Lookups that find nothing return (nil, nil);
// errors mean the store itself misbehaved.
type Store interface {
	// Explanations
	GetExplanationByTopic(ctx context.Context, topic string) (*model.Explanation, error)
	UpsertExplanation(ctx context.Context, exp *model.Explanation) (*model.Explanation, error)
	IncrementUsage(ctx context.Context, topic string) error
	SetVerified(ctx context.Context, topic string, content model.ExplanationContent, sourceModel string) error
	TopExplanations(ctx context.Context, limit int) ([]model.Explanation, error)

	// Verification jobs
	CreateVerificationJob(ctx context.Context, topic string) (*model.VerificationJob, error)
	GetVerificationJob(ctx context.Context, jobID string) (*model.VerificationJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, workerLog string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
