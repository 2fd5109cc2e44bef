package router

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quicklearn/quicklearn/internal/model"
	"github.com/quicklearn/quicklearn/internal/provider"
)

func testChain() []model.ModelConfig {
	return []model.ModelConfig{
		{Name: "stub/cheap", Provider: model.ProviderGroq, Model: "cheap", Cost: 1, Tier: model.TierFast},
		{Name: "stub/mid", Provider: model.ProviderGroq, Model: "mid", Cost: 3, Tier: model.TierMedium},
		{Name: "stub/strong", Provider: model.ProviderGroq, Model: "strong", Cost: 5, Tier: model.TierPowerful},
		{Name: "stub/premium", Provider: model.ProviderGroq, Model: "premium", Cost: 8, Tier: model.TierPremium},
	}
}

func goodContent() *model.ExplanationContent {
	return &model.ExplanationContent{
		OneLine:      "A short definition.",
		Explanation:  "A longer explanation for a beginner.",
		Analogy:      "Like something familiar.",
		Example:      "A concrete example.",
		RevisionNote: "Remember this.",
	}
}

// stubAdapter scripts per-model-alias results and records attempt order.
type stubAdapter struct {
	results  map[string]provider.Result
	attempts []string
}

func (s *stubAdapter) Generate(_ context.Context, _ string, modelAlias string, _ *model.ExplanationContent) provider.Result {
	s.attempts = append(s.attempts, modelAlias)
	if res, ok := s.results[modelAlias]; ok {
		return res
	}
	return provider.Result{Success: false, Model: modelAlias, Err: eris.New("unscripted model")}
}

type recordedUsage struct {
	model  string
	tokens int64
}

type stubUsage struct {
	records []recordedUsage
}

func (s *stubUsage) RecordModelUsage(_ context.Context, modelName string, tokens int64) {
	s.records = append(s.records, recordedUsage{model: modelName, tokens: tokens})
}

func newTestRouter(adapter *stubAdapter, usage UsageRecorder) *Router {
	adapters := map[model.Provider]provider.Adapter{model.ProviderGroq: adapter}
	return New(testChain(), adapters, NewQuarantine(), usage, DefaultVerificationThreshold)
}

func TestGenerateFirstModelWins(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{
		"cheap": {Success: true, Model: "cheap", Content: goodContent(), TokensUsed: 42},
	}}
	usage := &stubUsage{}
	r := newTestRouter(adapter, usage)

	res := r.GenerateExplanation(context.Background(), "gravity", Options{})
	require.True(t, res.Success)
	assert.Equal(t, "stub/cheap", res.Model)
	assert.False(t, res.Verified, "cost 1 is below the verification threshold")
	assert.Equal(t, []string{"cheap"}, adapter.attempts)
	require.Len(t, usage.records, 1)
	assert.Equal(t, recordedUsage{model: "stub/cheap", tokens: 42}, usage.records[0])
}

func TestGenerateFallsBackOnFailure(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{
		"cheap": {Success: false, Model: "cheap", Err: eris.New("boom")},
		"mid":   {Success: true, Model: "mid", Content: goodContent()},
	}}
	r := newTestRouter(adapter, &stubUsage{})

	res := r.GenerateExplanation(context.Background(), "gravity", Options{})
	require.True(t, res.Success)
	assert.Equal(t, "stub/mid", res.Model)
	assert.Equal(t, []string{"cheap", "mid"}, adapter.attempts)
	assert.True(t, r.Quarantine().IsQuarantined("stub/cheap"))
}

func TestGenerateVerifiedAtThreshold(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{
		"cheap": {Success: false, Model: "cheap", Err: eris.New("down")},
		"mid":   {Success: false, Model: "mid", Err: eris.New("down")},
		"strong": {Success: true, Model: "strong", Content: goodContent()},
	}}
	r := newTestRouter(adapter, &stubUsage{})

	res := r.GenerateExplanation(context.Background(), "gravity", Options{})
	require.True(t, res.Success)
	assert.True(t, res.Verified, "cost 5 meets the verification threshold")
}

func TestGenerateDefaultsNominalTokens(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{
		"cheap": {Success: true, Model: "cheap", Content: goodContent(), TokensUsed: 0},
	}}
	usage := &stubUsage{}
	r := newTestRouter(adapter, usage)

	res := r.GenerateExplanation(context.Background(), "gravity", Options{})
	require.True(t, res.Success)
	assert.Equal(t, int64(defaultGenerateTokens), res.TokensUsed)
}

func TestGenerateChainDeterminism(t *testing.T) {
	t.Parallel()

	runAttempts := func() []string {
		adapter := &stubAdapter{results: map[string]provider.Result{}}
		r := newTestRouter(adapter, &stubUsage{})
		res := r.GenerateExplanation(context.Background(), "gravity", Options{PreferredModel: "stub/strong"})
		require.False(t, res.Success)
		return adapter.attempts
	}

	first := runAttempts()
	second := runAttempts()
	assert.Equal(t, first, second)
	assert.Equal(t, "strong", first[0], "preferred model is tried first")
}

func TestGeneratePreferredModelStableReorder(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{}}
	r := newTestRouter(adapter, &stubUsage{})

	res := r.GenerateExplanation(context.Background(), "gravity", Options{PreferredModel: "stub/mid"})
	require.False(t, res.Success)
	assert.Equal(t, []string{"mid", "cheap", "strong", "premium"}, adapter.attempts)
}

func TestGenerateUnknownPreferredModelIgnored(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{}}
	r := newTestRouter(adapter, &stubUsage{})

	res := r.GenerateExplanation(context.Background(), "gravity", Options{PreferredModel: "stub/nope"})
	require.False(t, res.Success)
	assert.Equal(t, []string{"cheap", "mid", "strong", "premium"}, adapter.attempts)
}

func TestGenerateSkipsQuarantinedModels(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{
		"cheap": {Success: false, Model: "cheap", Err: eris.New("down")},
		"mid":   {Success: true, Model: "mid", Content: goodContent()},
	}}
	r := newTestRouter(adapter, &stubUsage{})

	first := r.GenerateExplanation(context.Background(), "gravity", Options{})
	require.True(t, first.Success)

	// Second call within the quarantine window must not attempt the
	// failed model even though it leads the chain.
	adapter.attempts = nil
	second := r.GenerateExplanation(context.Background(), "magnetism", Options{})
	require.True(t, second.Success)
	assert.Equal(t, []string{"mid"}, adapter.attempts)
}

func TestGenerateFormatFailureDoesNotQuarantine(t *testing.T) {
	t.Parallel()

	invalid := &model.ExplanationContent{OneLine: "only one field"}
	adapter := &stubAdapter{results: map[string]provider.Result{
		"cheap": {Success: true, Model: "cheap", Content: invalid},
		"mid":   {Success: true, Model: "mid", Content: goodContent()},
	}}
	r := newTestRouter(adapter, &stubUsage{})

	res := r.GenerateExplanation(context.Background(), "gravity", Options{})
	require.True(t, res.Success)
	assert.Equal(t, "stub/mid", res.Model)
	assert.False(t, r.Quarantine().IsQuarantined("stub/cheap"),
		"a reachable model with bad output stays in rotation")
}

func TestGenerateEmergencyReset(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{
		"cheap": {Success: true, Model: "cheap", Content: goodContent()},
	}}
	r := newTestRouter(adapter, &stubUsage{})

	for _, mc := range testChain() {
		r.Quarantine().Add(mc.Name)
	}

	res := r.GenerateExplanation(context.Background(), "gravity", Options{})
	require.True(t, res.Success, "emergency reset must re-attempt the chain")
	assert.Equal(t, "cheap", adapter.attempts[0])
	assert.Equal(t, 1, r.Quarantine().Len(), "only models that failed after the reset are re-quarantined")
}

func TestGenerateEmptyChainFails(t *testing.T) {
	t.Parallel()

	r := New(nil, map[model.Provider]provider.Adapter{}, NewQuarantine(), nil, 0)
	res := r.GenerateExplanation(context.Background(), "gravity", Options{})
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrAllModelsUnavailable)
}

func TestGenerateChainExhausted(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{}}
	r := newTestRouter(adapter, &stubUsage{})

	res := r.GenerateExplanation(context.Background(), "gravity", Options{})
	require.False(t, res.Success)
	require.Error(t, res.Err)
	assert.Len(t, adapter.attempts, 4, "every chain entry attempted before aggregate failure")
}

func TestGenerateMaxAttemptsCapsChain(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{}}
	r := newTestRouter(adapter, &stubUsage{})

	res := r.GenerateExplanation(context.Background(), "gravity", Options{MaxAttempts: 2})
	require.False(t, res.Success)
	assert.Equal(t, []string{"cheap", "mid"}, adapter.attempts)
}

func TestVerifyUsesEligibleSubsetInOrder(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{
		"premium": {Success: true, Model: "premium", Content: goodContent()},
	}}
	usage := &stubUsage{}
	r := newTestRouter(adapter, usage)

	res := r.Verify(context.Background(), "gravity", goodContent())
	require.True(t, res.Success)
	assert.True(t, res.Verified)
	assert.Equal(t, "stub/premium", res.Model)
	assert.Equal(t, []string{"strong", "premium"}, adapter.attempts,
		"only threshold-eligible models, cheapest first")
	require.Len(t, usage.records, 1)
	assert.Equal(t, int64(defaultVerifyTokens), usage.records[0].tokens)
}

func TestVerifyDoesNotQuarantine(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{results: map[string]provider.Result{}}
	r := newTestRouter(adapter, &stubUsage{})

	res := r.Verify(context.Background(), "gravity", goodContent())
	require.False(t, res.Success)
	assert.Zero(t, r.Quarantine().Len())
}

func TestVerifyNoEligibleModels(t *testing.T) {
	t.Parallel()

	chain := []model.ModelConfig{
		{Name: "stub/cheap", Provider: model.ProviderGroq, Model: "cheap", Cost: 1, Tier: model.TierFast},
	}
	r := New(chain, map[model.Provider]provider.Adapter{}, NewQuarantine(), nil, DefaultVerificationThreshold)

	res := r.Verify(context.Background(), "gravity", goodContent())
	require.False(t, res.Success)
	assert.Contains(t, res.Err.Error(), "verification threshold")
}

func TestDefaultChainOrderedByCost(t *testing.T) {
	t.Parallel()

	chain := DefaultChain()
	require.NotEmpty(t, chain)
	for i := 1; i < len(chain); i++ {
		assert.GreaterOrEqual(t, chain[i].Cost, chain[i-1].Cost,
			"chain must be sorted ascending by cost")
	}

	seen := make(map[string]bool)
	for _, mc := range chain {
		assert.False(t, seen[mc.Name], "duplicate chain name %s", mc.Name)
		seen[mc.Name] = true
	}
}
