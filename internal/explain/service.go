// Package explain implements the read path: cache, then durable store,
// then the model fallback chain, with usage accounting on every hit.
package explain

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quicklearn/quicklearn/internal/content"
	"github.com/quicklearn/quicklearn/internal/model"
	"github.com/quicklearn/quicklearn/internal/queue"
	"github.com/quicklearn/quicklearn/internal/router"
	"github.com/quicklearn/quicklearn/internal/store"
)

// Sources reported on a response, in lookup order.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

var (
	// ErrInvalidTopic is returned when the topic is empty after
	// sanitization and normalization.
	ErrInvalidTopic = eris.New("explain: topic is empty or invalid")

	// ErrGenerationUnavailable is returned when no cached, stored, or
	// freshly generated explanation could be produced.
	ErrGenerationUnavailable = eris.New("explain: unable to generate explanation")

	// ErrTopicNotFound is returned when verification is requested for a
	// topic with no stored explanation.
	ErrTopicNotFound = eris.New("explain: no explanation stored for topic")

	// ErrJobNotFound is returned when a verification job ID is unknown.
	ErrJobNotFound = eris.New("explain: verification job not found")
)

// Generator is the slice of the router the service needs.
type Generator interface {
	GenerateExplanation(ctx context.Context, topic string, opts router.Options) router.Result
}

// HotCache is the slice of the Redis cache the service needs. All methods
// are best-effort.
type HotCache interface {
	GetExplanation(ctx context.Context, topic string) (*model.Explanation, bool)
	SetExplanation(ctx context.Context, exp *model.Explanation)
}

// Options tune one Explain call.
type Options struct {
	PreferredModel string

	// ForceVerify skips the cache and store tiers and regenerates the
	// topic from the model chain. The fresh result still persists and
	// backfills the cache.
	ForceVerify bool
}

// Response is the result of one Explain call.
type Response struct {
	Topic          string                   `json:"topic"`
	Source         string                   `json:"source"`
	Content        model.ExplanationContent `json:"content"`
	Verified       bool                     `json:"verified"`
	Cached         bool                     `json:"cached"`
	ResponseTimeMs int64                    `json:"response_time_ms"`
}

// Service wires the lookup tiers together.
type Service struct {
	store     store.Store
	cache     HotCache
	generator Generator
	jobs      queue.Queue

	// bumpTimeout bounds the detached usage-bump writes.
	bumpTimeout time.Duration
}

// New creates the explain service. cache and jobs may be nil; the service
// then skips the hot tier and rejects verification requests respectively.
func New(st store.Store, cache HotCache, gen Generator, jobs queue.Queue) *Service {
	return &Service{
		store:       st,
		cache:       cache,
		generator:   gen,
		jobs:        jobs,
		bumpTimeout: 5 * time.Second,
	}
}

// Explain resolves a topic through cache, store, and the model chain, in
// that order. Usage bumps on hits are fire-and-forget: the caller's
// latency never includes them, and their failures are only logged.
func (s *Service) Explain(ctx context.Context, rawTopic string, opts Options) (*Response, error) {
	start := time.Now()

	topic := model.NormalizeTopic(model.SanitizeTopicInput(rawTopic))
	if topic == "" {
		return nil, ErrInvalidTopic
	}

	if !opts.ForceVerify {
		if s.cache != nil {
			if exp, ok := s.cache.GetExplanation(ctx, topic); ok {
				s.bumpUsage(topic)
				zap.L().Info("explanation served from cache", zap.String("topic", topic))
				return s.respond(topic, exp, SourceCache, true, start), nil
			}
		}

		stored, err := s.store.GetExplanationByTopic(ctx, topic)
		if err != nil {
			return nil, eris.Wrapf(err, "explain: lookup %s", topic)
		}
		if stored != nil {
			s.bumpUsage(topic)
			if s.cache != nil {
				s.cache.SetExplanation(ctx, stored)
			}
			zap.L().Info("explanation served from store", zap.String("topic", topic))
			return s.respond(topic, stored, SourceDatabase, false, start), nil
		}
	}

	result := s.generator.GenerateExplanation(ctx, topic, router.Options{PreferredModel: opts.PreferredModel})
	if !result.Success {
		return nil, eris.Wrap(result.Err, ErrGenerationUnavailable.Error())
	}

	// The router already validated, but the content crosses a package
	// boundary here and gets persisted, so check once more before writing.
	if v := content.Validate(*result.Content); !v.Valid {
		zap.L().Error("generated content failed validation at persistence",
			zap.String("topic", topic),
			zap.Strings("errors", v.Errors),
		)
		return nil, ErrGenerationUnavailable
	}

	exp := &model.Explanation{
		Topic:       topic,
		Content:     *result.Content,
		SourceModel: result.Model,
		Verified:    result.Verified,
	}
	exp.Content.Verified = result.Verified

	saved, err := s.store.UpsertExplanation(ctx, exp)
	if err != nil {
		return nil, eris.Wrapf(err, "explain: persist %s", topic)
	}
	if s.cache != nil {
		s.cache.SetExplanation(ctx, saved)
	}

	return s.respond(topic, saved, result.Model, false, start), nil
}

// RequestVerification creates a verification job for a stored topic and
// hands it to the queue.
func (s *Service) RequestVerification(ctx context.Context, rawTopic, priority string) (*model.VerificationJob, error) {
	if s.jobs == nil {
		return nil, eris.New("explain: verification queue not configured")
	}

	topic := model.NormalizeTopic(model.SanitizeTopicInput(rawTopic))
	if topic == "" {
		return nil, ErrInvalidTopic
	}

	stored, err := s.store.GetExplanationByTopic(ctx, topic)
	if err != nil {
		return nil, eris.Wrapf(err, "explain: lookup %s", topic)
	}
	if stored == nil {
		return nil, ErrTopicNotFound
	}

	job, err := s.store.CreateVerificationJob(ctx, topic)
	if err != nil {
		return nil, eris.Wrapf(err, "explain: create job for %s", topic)
	}

	task := queue.VerificationTask{JobID: job.ID, Topic: topic, Priority: priority}
	if err := s.jobs.EnqueueVerification(ctx, task); err != nil {
		if uerr := s.store.UpdateJobStatus(ctx, job.ID, model.JobStatusFailed, "enqueue failed: "+err.Error()); uerr != nil {
			zap.L().Error("failed to mark unenqueued job", zap.String("job_id", job.ID), zap.Error(uerr))
		}
		return nil, eris.Wrapf(err, "explain: enqueue job %s", job.ID)
	}

	return job, nil
}

// GetVerificationStatus returns the current state of a job.
func (s *Service) GetVerificationStatus(ctx context.Context, jobID string) (*model.VerificationJob, error) {
	job, err := s.store.GetVerificationJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrapf(err, "explain: get job %s", jobID)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// TopExplanations lists the most requested topics.
func (s *Service) TopExplanations(ctx context.Context, limit int) ([]model.Explanation, error) {
	return s.store.TopExplanations(ctx, limit)
}

func (s *Service) respond(topic string, exp *model.Explanation, source string, cached bool, start time.Time) *Response {
	return &Response{
		Topic:          topic,
		Source:         source,
		Content:        exp.Content,
		Verified:       exp.Verified,
		Cached:         cached,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
}

// bumpUsage increments the durable usage counter off the request path.
func (s *Service) bumpUsage(topic string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.bumpTimeout)
		defer cancel()
		if err := s.store.IncrementUsage(ctx, topic); err != nil {
			zap.L().Warn("usage bump failed", zap.String("topic", topic), zap.Error(err))
		}
	}()
}
