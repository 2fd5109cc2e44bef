package model

// Provider identifies which adapter family serves a model. The set is
// closed: adding a provider means adding a constant and an adapter, not
// editing a conditional chain.
type Provider string

const (
	ProviderGroq      Provider = "groq"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Tier is an informational quality/speed bucket. Cost, not tier, drives
// chain ordering and verification eligibility.
type Tier string

const (
	TierFast     Tier = "fast"
	TierMedium   Tier = "medium"
	TierPowerful Tier = "powerful"
	TierPremium  Tier = "premium"
)

// ModelConfig is the static descriptor of one callable model in the
// fallback chain.
type ModelConfig struct {
	// Name is the globally unique chain entry name, used for quarantine
	// and usage tracking.
	Name string `json:"name"`
	// Provider selects the adapter family.
	Provider Provider `json:"provider"`
	// Model is the id passed to the underlying API.
	Model string `json:"model"`
	// Cost is an ordinal rank; lower means cheaper/faster and is tried
	// earlier. Models at or above the verification threshold produce
	// verified output.
	Cost int  `json:"cost"`
	Tier Tier `json:"tier"`
}
