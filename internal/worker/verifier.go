// Package worker runs the background verification pass: it consumes
// queued verification tasks, re-generates content through the strong end
// of the model chain, and promotes stored explanations to verified.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quicklearn/quicklearn/internal/model"
	"github.com/quicklearn/quicklearn/internal/queue"
	"github.com/quicklearn/quicklearn/internal/router"
	"github.com/quicklearn/quicklearn/internal/store"
)

const (
	// DefaultConcurrency bounds in-flight verifications.
	DefaultConcurrency = 5

	// Verification calls hit the expensive models, so throttle to ten
	// per minute regardless of queue depth.
	defaultRatePerMinute = 10
)

// ModelVerifier is the slice of the router the worker needs.
type ModelVerifier interface {
	Verify(ctx context.Context, topic string, existing *model.ExplanationContent) router.Result
}

// HotCache lets the worker refresh the cached copy after promotion.
type HotCache interface {
	SetExplanation(ctx context.Context, exp *model.Explanation)
}

// Config tunes the verifier.
type Config struct {
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerMinute int `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
}

// Verifier processes verification tasks.
type Verifier struct {
	store    store.Store
	verifier ModelVerifier
	cache    HotCache

	concurrency int
	limiter     *rate.Limiter
}

// New creates a Verifier. cache may be nil.
func New(st store.Store, mv ModelVerifier, cache HotCache, cfg Config) *Verifier {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}

	return &Verifier{
		store:       st,
		verifier:    mv,
		cache:       cache,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Run consumes tasks until the context is cancelled. The semaphore bounds
// in-flight work for transports that deliver concurrently; the limiter
// throttles model calls independently of delivery rate.
func (v *Verifier) Run(ctx context.Context, q queue.Queue) error {
	sem := make(chan struct{}, v.concurrency)

	zap.L().Info("verification worker started",
		zap.Int("concurrency", v.concurrency),
	)

	return q.ConsumeVerifications(ctx, func(ctx context.Context, task queue.VerificationTask) error {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		defer func() { <-sem }()

		if err := v.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "worker: rate limit wait")
		}
		return v.Process(ctx, task)
	})
}

// Process runs one verification task end to end. A returned error asks
// the transport to redeliver, up to its delivery cap; an already-verified
// record completes without error.
func (v *Verifier) Process(ctx context.Context, task queue.VerificationTask) error {
	log := zap.L().With(
		zap.String("job_id", task.JobID),
		zap.String("topic", task.Topic),
	)

	if err := v.store.UpdateJobStatus(ctx, task.JobID, model.JobStatusProcessing, ""); err != nil {
		return eris.Wrapf(err, "worker: mark processing %s", task.JobID)
	}

	exp, err := v.store.GetExplanationByTopic(ctx, task.Topic)
	if err != nil {
		v.markFailed(ctx, task.JobID, "store lookup failed: "+err.Error())
		return eris.Wrapf(err, "worker: lookup %s", task.Topic)
	}
	if exp == nil {
		v.markFailed(ctx, task.JobID, "no stored explanation for topic")
		log.Warn("verification requested for unknown topic")
		return eris.Errorf("worker: no stored explanation for %s", task.Topic)
	}
	if exp.Verified {
		v.complete(ctx, task.JobID, "already verified by "+exp.SourceModel)
		log.Info("explanation already verified")
		return nil
	}

	result := v.verifier.Verify(ctx, task.Topic, &exp.Content)
	if !result.Success {
		v.markFailed(ctx, task.JobID, "verification failed: "+result.Err.Error())
		return eris.Wrapf(result.Err, "worker: verify %s", task.Topic)
	}

	if err := v.store.SetVerified(ctx, task.Topic, *result.Content, result.Model); err != nil {
		v.markFailed(ctx, task.JobID, "persist failed: "+err.Error())
		return eris.Wrapf(err, "worker: persist verified %s", task.Topic)
	}

	if v.cache != nil {
		refreshed, err := v.store.GetExplanationByTopic(ctx, task.Topic)
		if err == nil && refreshed != nil {
			v.cache.SetExplanation(ctx, refreshed)
		}
	}

	v.complete(ctx, task.JobID, fmt.Sprintf("verified by %s (%d tokens)", result.Model, result.TokensUsed))
	log.Info("explanation verified", zap.String("model", result.Model))
	return nil
}

func (v *Verifier) complete(ctx context.Context, jobID, workerLog string) {
	if err := v.store.UpdateJobStatus(ctx, jobID, model.JobStatusCompleted, workerLog); err != nil {
		zap.L().Error("failed to mark job completed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (v *Verifier) markFailed(ctx context.Context, jobID, workerLog string) {
	if err := v.store.UpdateJobStatus(ctx, jobID, model.JobStatusFailed, workerLog); err != nil {
		zap.L().Error("failed to mark job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
