package explain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quicklearn/quicklearn/internal/model"
	"github.com/quicklearn/quicklearn/internal/queue"
	"github.com/quicklearn/quicklearn/internal/router"
)

func validContent() model.ExplanationContent {
	return model.ExplanationContent{
		OneLine:      "Gravity pulls things together.",
		Explanation:  "Objects with mass attract each other.",
		Analogy:      "Like a bowling ball on a trampoline.",
		Example:      "An apple falls from a tree.",
		RevisionNote: "Mass attracts mass.",
	}
}

// fakeStore implements store.Store in memory with call recording.
type fakeStore struct {
	mu           sync.Mutex
	explanations map[string]*model.Explanation
	jobs         map[string]*model.VerificationJob
	usageBumps   map[string]int
	failLookups  bool
	failUpserts  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		explanations: make(map[string]*model.Explanation),
		jobs:         make(map[string]*model.VerificationJob),
		usageBumps:   make(map[string]int),
	}
}

func (f *fakeStore) GetExplanationByTopic(_ context.Context, topic string) (*model.Explanation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLookups {
		return nil, eris.New("store down")
	}
	return f.explanations[topic], nil
}

func (f *fakeStore) UpsertExplanation(_ context.Context, exp *model.Explanation) (*model.Explanation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpserts {
		return nil, eris.New("store down")
	}
	out := *exp
	if existing, ok := f.explanations[exp.Topic]; ok {
		out.ID = existing.ID
		out.Uses = existing.Uses + 1
	} else {
		out.ID = "exp-" + exp.Topic
		out.Uses = 1
	}
	f.explanations[exp.Topic] = &out
	return &out, nil
}

func (f *fakeStore) IncrementUsage(_ context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usageBumps[topic]++
	return nil
}

func (f *fakeStore) SetVerified(_ context.Context, topic string, c model.ExplanationContent, sourceModel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	exp, ok := f.explanations[topic]
	if !ok {
		return eris.Errorf("explanation not found: %s", topic)
	}
	c.Verified = true
	exp.Content = c
	exp.Verified = true
	exp.SourceModel = sourceModel
	return nil
}

func (f *fakeStore) TopExplanations(_ context.Context, limit int) ([]model.Explanation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Explanation, 0, limit)
	for _, e := range f.explanations {
		out = append(out, *e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) CreateVerificationJob(_ context.Context, topic string) (*model.VerificationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := &model.VerificationJob{
		ID:        "job-" + topic,
		Topic:     topic,
		Status:    model.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeStore) GetVerificationJob(_ context.Context, jobID string) (*model.VerificationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[jobID], nil
}

func (f *fakeStore) UpdateJobStatus(_ context.Context, jobID string, status model.JobStatus, workerLog string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return eris.Errorf("job not found: %s", jobID)
	}
	job.Status = status
	job.WorkerLog = workerLog
	return nil
}

func (f *fakeStore) Migrate(_ context.Context) error { return nil }
func (f *fakeStore) Ping(_ context.Context) error    { return nil }
func (f *fakeStore) Close() error                    { return nil }

func (f *fakeStore) bumps(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usageBumps[topic]
}

// fakeCache records sets and serves scripted hits.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*model.Explanation
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*model.Explanation)}
}

func (f *fakeCache) GetExplanation(_ context.Context, topic string) (*model.Explanation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[topic]
	return e, ok
}

func (f *fakeCache) SetExplanation(_ context.Context, exp *model.Explanation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[exp.Topic] = exp
	f.sets++
}

// fakeGenerator returns a scripted router result.
type fakeGenerator struct {
	result router.Result
	calls  int
	topics []string
}

func (f *fakeGenerator) GenerateExplanation(_ context.Context, topic string, _ router.Options) router.Result {
	f.calls++
	f.topics = append(f.topics, topic)
	return f.result
}

// fakeQueue records enqueued tasks.
type fakeQueue struct {
	tasks   []queue.VerificationTask
	failing bool
}

func (f *fakeQueue) EnqueueVerification(_ context.Context, task queue.VerificationTask) error {
	if f.failing {
		return eris.New("nats down")
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeQueue) ConsumeVerifications(_ context.Context, _ queue.Handler) error { return nil }
func (f *fakeQueue) Health() error                                                { return nil }
func (f *fakeQueue) Close() error                                                 { return nil }

func TestExplainCacheHit(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	c := newFakeCache()
	gen := &fakeGenerator{}
	c.entries["gravity"] = &model.Explanation{Topic: "gravity", Content: validContent()}

	svc := New(st, c, gen, &fakeQueue{})
	resp, err := svc.Explain(context.Background(), "Gravity", Options{})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, resp.Source)
	assert.True(t, resp.Cached)
	assert.Zero(t, gen.calls, "cache hits never reach the model chain")

	require.Eventually(t, func() bool {
		return st.bumps("gravity") == 1
	}, time.Second, 10*time.Millisecond, "cache hit still bumps durable usage")
}

func TestExplainStoreHitBackfillsCache(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	c := newFakeCache()
	gen := &fakeGenerator{}
	st.explanations["gravity"] = &model.Explanation{ID: "exp-1", Topic: "gravity", Content: validContent(), Verified: true}

	svc := New(st, c, gen, &fakeQueue{})
	resp, err := svc.Explain(context.Background(), "gravity", Options{})
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, resp.Source)
	assert.False(t, resp.Cached)
	assert.True(t, resp.Verified)
	assert.Zero(t, gen.calls)

	_, ok := c.GetExplanation(context.Background(), "gravity")
	assert.True(t, ok, "store hits are written back to the cache")
}

func TestExplainGeneratesAndPersists(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	c := newFakeCache()
	vc := validContent()
	gen := &fakeGenerator{result: router.Result{
		Success:  true,
		Content:  &vc,
		Model:    "groq/compound-mini",
		Verified: false,
	}}

	svc := New(st, c, gen, &fakeQueue{})
	resp, err := svc.Explain(context.Background(), "DNA Replication!", Options{})
	require.NoError(t, err)
	assert.Equal(t, "dna-replication", resp.Topic)
	assert.Equal(t, "groq/compound-mini", resp.Source)
	assert.False(t, resp.Cached)

	assert.Equal(t, []string{"dna-replication"}, gen.topics, "generation sees the normalized topic")

	stored, err := st.GetExplanationByTopic(context.Background(), "dna-replication")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "groq/compound-mini", stored.SourceModel)

	_, ok := c.GetExplanation(context.Background(), "dna-replication")
	assert.True(t, ok)
}

func TestExplainForceVerifyBypassesCacheAndStore(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	c := newFakeCache()
	stale := validContent()
	stale.OneLine = "Old cached answer."
	c.entries["gravity"] = &model.Explanation{Topic: "gravity", Content: stale}
	st.explanations["gravity"] = &model.Explanation{ID: "exp-1", Topic: "gravity", Content: stale}

	fresh := validContent()
	gen := &fakeGenerator{result: router.Result{
		Success:  true,
		Content:  &fresh,
		Model:    "llama-3.3-70b-versatile",
		Verified: true,
	}}

	svc := New(st, c, gen, &fakeQueue{})
	resp, err := svc.Explain(context.Background(), "gravity", Options{ForceVerify: true})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls, "forced refresh always reaches the model chain")
	assert.Equal(t, "llama-3.3-70b-versatile", resp.Source)
	assert.False(t, resp.Cached)
	assert.True(t, resp.Verified)
	assert.Equal(t, fresh.OneLine, resp.Content.OneLine)

	stored, serr := st.GetExplanationByTopic(context.Background(), "gravity")
	require.NoError(t, serr)
	assert.Equal(t, fresh.OneLine, stored.Content.OneLine, "forced result replaces the stored copy")

	refreshed, ok := c.GetExplanation(context.Background(), "gravity")
	require.True(t, ok)
	assert.Equal(t, fresh.OneLine, refreshed.Content.OneLine, "forced result replaces the cached copy")
}

func TestExplainStoreLookupFailureSurfaces(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.failLookups = true
	gen := &fakeGenerator{}

	svc := New(st, newFakeCache(), gen, &fakeQueue{})
	_, err := svc.Explain(context.Background(), "gravity", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup")
	assert.Zero(t, gen.calls, "a broken store never falls through to generation")
}

func TestExplainPersistFailureSurfaces(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.failUpserts = true
	vc := validContent()
	gen := &fakeGenerator{result: router.Result{Success: true, Content: &vc, Model: "m"}}

	svc := New(st, newFakeCache(), gen, &fakeQueue{})
	_, err := svc.Explain(context.Background(), "gravity", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist")
}

func TestExplainInvalidTopic(t *testing.T) {
	t.Parallel()

	svc := New(newFakeStore(), newFakeCache(), &fakeGenerator{}, &fakeQueue{})

	_, err := svc.Explain(context.Background(), "   !!!   ", Options{})
	assert.ErrorIs(t, err, ErrInvalidTopic)
}

func TestExplainGenerationFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{result: router.Result{Err: router.ErrChainExhausted}}
	svc := New(newFakeStore(), newFakeCache(), gen, &fakeQueue{})

	_, err := svc.Explain(context.Background(), "gravity", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to generate")
}

func TestExplainRejectsInvalidGeneratedContent(t *testing.T) {
	t.Parallel()

	bad := model.ExplanationContent{OneLine: "only one field"}
	gen := &fakeGenerator{result: router.Result{Success: true, Content: &bad, Model: "m"}}
	st := newFakeStore()
	svc := New(st, newFakeCache(), gen, &fakeQueue{})

	_, err := svc.Explain(context.Background(), "gravity", Options{})
	assert.ErrorIs(t, err, ErrGenerationUnavailable)

	stored, _ := st.GetExplanationByTopic(context.Background(), "gravity")
	assert.Nil(t, stored, "invalid content is never persisted")
}

func TestExplainServesWithoutCache(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.explanations["gravity"] = &model.Explanation{Topic: "gravity", Content: validContent()}

	svc := New(st, nil, &fakeGenerator{}, nil)
	resp, err := svc.Explain(context.Background(), "gravity", Options{})
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, resp.Source)
}

func TestRequestVerification(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.explanations["gravity"] = &model.Explanation{Topic: "gravity", Content: validContent()}
	q := &fakeQueue{}

	svc := New(st, newFakeCache(), &fakeGenerator{}, q)
	job, err := svc.RequestVerification(context.Background(), "Gravity", queue.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)

	require.Len(t, q.tasks, 1)
	assert.Equal(t, job.ID, q.tasks[0].JobID)
	assert.Equal(t, "gravity", q.tasks[0].Topic)
	assert.Equal(t, queue.PriorityHigh, q.tasks[0].Priority)
}

func TestRequestVerificationUnknownTopic(t *testing.T) {
	t.Parallel()

	svc := New(newFakeStore(), newFakeCache(), &fakeGenerator{}, &fakeQueue{})

	_, err := svc.RequestVerification(context.Background(), "never-asked", queue.PriorityNormal)
	assert.ErrorIs(t, err, ErrTopicNotFound)
}

func TestRequestVerificationEnqueueFailureMarksJob(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.explanations["gravity"] = &model.Explanation{Topic: "gravity", Content: validContent()}
	q := &fakeQueue{failing: true}

	svc := New(st, newFakeCache(), &fakeGenerator{}, q)
	_, err := svc.RequestVerification(context.Background(), "gravity", queue.PriorityNormal)
	require.Error(t, err)

	job, gerr := st.GetVerificationJob(context.Background(), "job-gravity")
	require.NoError(t, gerr)
	require.NotNil(t, job)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, job.WorkerLog, "enqueue failed")
}

func TestGetVerificationStatus(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.jobs["job-1"] = &model.VerificationJob{ID: "job-1", Topic: "gravity", Status: model.JobStatusProcessing}

	svc := New(st, newFakeCache(), &fakeGenerator{}, &fakeQueue{})

	job, err := svc.GetVerificationStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, job.Status)

	_, err = svc.GetVerificationStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
