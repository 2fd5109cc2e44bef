package router

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quicklearn/quicklearn/internal/content"
	"github.com/quicklearn/quicklearn/internal/model"
	"github.com/quicklearn/quicklearn/internal/provider"
)

// Nominal token charges recorded when a provider does not report usage.
const (
	defaultGenerateTokens = 100
	defaultVerifyTokens   = 200
)

// ErrAllModelsUnavailable is returned when quarantine filtering empties
// the chain even after an emergency reset.
var ErrAllModelsUnavailable = eris.New("all models currently unavailable")

// ErrChainExhausted is returned when every eligible model was attempted
// and none produced a valid explanation.
var ErrChainExhausted = eris.New("unable to generate explanation: all models failed or unavailable")

// UsageRecorder records tokens consumed per model. Implementations are
// best-effort; the router never fails a generation over a recording error.
type UsageRecorder interface {
	RecordModelUsage(ctx context.Context, modelName string, tokens int64)
}

// Options tune one GenerateExplanation call.
type Options struct {
	// PreferredModel, when present in the chain, is moved to the front.
	// The rest of the chain keeps its order.
	PreferredModel string
	// MaxAttempts caps how many chain entries are tried. Zero means the
	// whole chain.
	MaxAttempts int
}

// Result is the discriminated outcome of a chain traversal.
type Result struct {
	Success    bool
	Content    *model.ExplanationContent
	Model      string
	TokensUsed int64
	Verified   bool
	Err        error
}

// Router traverses the fallback chain. It owns the chain ordering and the
// quarantine policy; provider adapters own individual calls.
type Router struct {
	chain           []model.ModelConfig
	adapters        map[model.Provider]provider.Adapter
	quarantine      *Quarantine
	usage           UsageRecorder
	verifyThreshold int
}

// New creates a Router over the given chain. The quarantine set is owned
// by the caller so several routers can share or isolate state as needed.
func New(chain []model.ModelConfig, adapters map[model.Provider]provider.Adapter, quarantine *Quarantine, usage UsageRecorder, verifyThreshold int) *Router {
	if verifyThreshold <= 0 {
		verifyThreshold = DefaultVerificationThreshold
	}
	return &Router{
		chain:           chain,
		adapters:        adapters,
		quarantine:      quarantine,
		usage:           usage,
		verifyThreshold: verifyThreshold,
	}
}

// Chain returns a copy of the configured chain.
func (r *Router) Chain() []model.ModelConfig {
	out := make([]model.ModelConfig, len(r.chain))
	copy(out, r.chain)
	return out
}

// Quarantine exposes the router's quarantine set for observability.
func (r *Router) Quarantine() *Quarantine {
	return r.quarantine
}

// VerificationThreshold returns the cost bar for verified output.
func (r *Router) VerificationThreshold() int {
	return r.verifyThreshold
}

// GenerateExplanation walks the chain in cost order until one model
// returns a payload that passes validation. Transport failures quarantine
// the model; format failures do not. Exhaustion is reported, never
// swallowed.
func (r *Router) GenerateExplanation(ctx context.Context, topic string, opts Options) Result {
	chain := r.eligibleChain(opts.PreferredModel)
	if len(chain) == 0 {
		// Emergency reset: a transient burst must not wedge the whole
		// system until the next scheduled clear.
		if r.quarantine.Len() > 0 {
			zap.L().Warn("all models quarantined, forcing emergency quarantine reset")
			r.quarantine.Clear()
			chain = r.eligibleChain(opts.PreferredModel)
		}
		if len(chain) == 0 {
			zap.L().Error("model chain empty after quarantine reset")
			return Result{Err: ErrAllModelsUnavailable}
		}
	}

	if opts.MaxAttempts > 0 && len(chain) > opts.MaxAttempts {
		chain = chain[:opts.MaxAttempts]
	}

	for _, mc := range chain {
		result, ok := r.attempt(ctx, mc, topic, nil)
		if !ok {
			continue
		}

		tokens := result.TokensUsed
		if tokens == 0 {
			tokens = defaultGenerateTokens
		}
		r.recordUsage(ctx, mc.Name, tokens)

		zap.L().Info("explanation generated",
			zap.String("model", mc.Name),
			zap.String("topic", topic),
			zap.Int64("tokens", tokens),
		)

		return Result{
			Success:    true,
			Content:    result.Content,
			Model:      mc.Name,
			TokensUsed: tokens,
			Verified:   mc.Cost >= r.verifyThreshold,
		}
	}

	return Result{Err: ErrChainExhausted}
}

// Verify re-generates existing content through the verification subset of
// the chain, cheapest eligible model first. Failures here do not
// quarantine: verification traffic must not degrade the read path's chain.
func (r *Router) Verify(ctx context.Context, topic string, existing *model.ExplanationContent) Result {
	subset := verificationSubset(r.chain, r.verifyThreshold)
	if len(subset) == 0 {
		return Result{Err: eris.New("router: no models meet the verification threshold")}
	}

	for _, mc := range subset {
		adapter, ok := r.adapters[mc.Provider]
		if !ok {
			zap.L().Warn("no adapter for provider", zap.String("provider", string(mc.Provider)))
			continue
		}

		res := adapter.Generate(ctx, topic, mc.Model, existing)
		if !res.Success {
			zap.L().Warn("verification model failed",
				zap.String("model", mc.Name),
				zap.Error(res.Err),
			)
			continue
		}

		if v := content.Validate(*res.Content); !v.Valid {
			zap.L().Warn("verification model returned invalid format",
				zap.String("model", mc.Name),
				zap.Strings("errors", v.Errors),
			)
			continue
		}

		tokens := res.TokensUsed
		if tokens == 0 {
			tokens = defaultVerifyTokens
		}
		r.recordUsage(ctx, mc.Name, tokens)

		return Result{
			Success:    true,
			Content:    res.Content,
			Model:      mc.Name,
			TokensUsed: tokens,
			Verified:   true,
		}
	}

	return Result{Err: eris.New("router: verification failed on all eligible models")}
}

// eligibleChain applies the preferred-model reorder and quarantine filter.
func (r *Router) eligibleChain(preferred string) []model.ModelConfig {
	chain := make([]model.ModelConfig, 0, len(r.chain))

	if preferred != "" {
		for _, mc := range r.chain {
			if mc.Name == preferred {
				chain = append(chain, mc)
				break
			}
		}
	}
	for _, mc := range r.chain {
		if mc.Name == preferred && len(chain) > 0 && chain[0].Name == preferred {
			continue
		}
		chain = append(chain, mc)
	}

	eligible := chain[:0]
	for _, mc := range chain {
		if !r.quarantine.IsQuarantined(mc.Name) {
			eligible = append(eligible, mc)
		}
	}
	return eligible
}

// attempt runs one model and reports whether its output is servable.
// Transport failures quarantine the model; a format failure means the
// model is reachable but unusable this time, so it stays in rotation.
func (r *Router) attempt(ctx context.Context, mc model.ModelConfig, topic string, existing *model.ExplanationContent) (provider.Result, bool) {
	adapter, ok := r.adapters[mc.Provider]
	if !ok {
		zap.L().Warn("no adapter for provider", zap.String("provider", string(mc.Provider)))
		return provider.Result{}, false
	}

	zap.L().Info("trying model", zap.String("model", mc.Name), zap.String("topic", topic))

	res := adapter.Generate(ctx, topic, mc.Model, existing)
	if !res.Success {
		zap.L().Warn("model failed, quarantining",
			zap.String("model", mc.Name),
			zap.Error(res.Err),
		)
		r.quarantine.Add(mc.Name)
		return provider.Result{}, false
	}

	if v := content.Validate(*res.Content); !v.Valid {
		zap.L().Warn("model returned invalid format",
			zap.String("model", mc.Name),
			zap.Strings("errors", v.Errors),
		)
		return provider.Result{}, false
	}

	return res, true
}

func (r *Router) recordUsage(ctx context.Context, modelName string, tokens int64) {
	if r.usage == nil {
		return
	}
	r.usage.RecordModelUsage(ctx, modelName, tokens)
}
