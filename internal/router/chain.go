package router

import "github.com/quicklearn/quicklearn/internal/model"

// DefaultVerificationThreshold is the cost at or above which a model's
// output counts as verified, and the bar for verification-pass
// eligibility.
const DefaultVerificationThreshold = 5

// DefaultChain is the static fallback chain, ordered ascending by cost so
// cheap fast models are tried first and stronger models only on failure.
func DefaultChain() []model.ModelConfig {
	return []model.ModelConfig{
		// Ultra-fast lightweight models.
		{Name: "groq/compound-mini", Provider: model.ProviderGroq, Model: "compound-mini", Cost: 1, Tier: model.TierFast},
		{Name: "groq/compound", Provider: model.ProviderGroq, Model: "compound", Cost: 2, Tier: model.TierFast},

		// Medium-speed, good quality.
		{Name: "llama-3.1-8b-instant", Provider: model.ProviderGroq, Model: "llama-3.1-8b-instant", Cost: 3, Tier: model.TierFast},
		{Name: "meta-llama/llama-4-scout-17b", Provider: model.ProviderGroq, Model: "llama-4-scout-17b", Cost: 3, Tier: model.TierMedium},
		{Name: "qwen/qwen3-32b-instruct", Provider: model.ProviderGroq, Model: "qwen3-32b", Cost: 3, Tier: model.TierMedium},
		{Name: "anthropic/claude-haiku", Provider: model.ProviderAnthropic, Model: "claude-haiku", Cost: 4, Tier: model.TierMedium},

		// Large versatile models; eligible verifiers start here.
		{Name: "llama-3.3-70b-versatile", Provider: model.ProviderGroq, Model: "llama-3.3-70b-versatile", Cost: 5, Tier: model.TierPowerful},
		{Name: "moonshotai/kimi-k2-instruct", Provider: model.ProviderGroq, Model: "kimi-k2-instruct", Cost: 5, Tier: model.TierPowerful},
		{Name: "openai/gpt-oss-20b", Provider: model.ProviderGroq, Model: "gpt-oss-20b", Cost: 6, Tier: model.TierPowerful},
		{Name: "openai/gpt-4o-mini", Provider: model.ProviderOpenAI, Model: "gpt-4o-mini", Cost: 7, Tier: model.TierPowerful},
		{Name: "anthropic/claude-sonnet", Provider: model.ProviderAnthropic, Model: "claude-sonnet", Cost: 7, Tier: model.TierPowerful},

		// Premium fallbacks.
		{Name: "openai/gpt-oss-120b", Provider: model.ProviderGroq, Model: "gpt-oss-120b", Cost: 8, Tier: model.TierPremium},
		{Name: "openai/gpt-4o", Provider: model.ProviderOpenAI, Model: "gpt-4o", Cost: 9, Tier: model.TierPremium},
		{Name: "anthropic/claude-opus", Provider: model.ProviderAnthropic, Model: "claude-opus", Cost: 10, Tier: model.TierPremium},
	}
}

// verificationSubset filters a chain down to the models eligible to run a
// verification pass: at or above the cost threshold and not a fast-tier
// model. Order is preserved, so the cheapest eligible verifier runs first.
func verificationSubset(chain []model.ModelConfig, threshold int) []model.ModelConfig {
	out := make([]model.ModelConfig, 0, len(chain))
	for _, mc := range chain {
		if mc.Cost >= threshold && mc.Tier != model.TierFast {
			out = append(out, mc)
		}
	}
	return out
}
