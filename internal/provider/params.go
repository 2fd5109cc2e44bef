package provider

// chatParams are the static per-model sampling parameters for the
// OpenAI-compatible families. Unknown aliases fail fast before any
// network call.
type chatParams struct {
	Name            string // model id sent to the API
	Temperature     float64
	MaxTokens       int
	TopP            *float64
	ReasoningEffort string
}

func floatPtr(v float64) *float64 { return &v }

// groqParams covers the Groq-hosted models.
var groqParams = map[string]chatParams{
	"compound-mini": {
		Name:        "groq/compound-mini",
		Temperature: 1.0,
		MaxTokens:   1024,
	},
	"compound": {
		Name:        "groq/compound",
		Temperature: 1.0,
		MaxTokens:   1024,
	},
	"qwen3-32b": {
		Name:        "qwen/qwen3-32b-instruct",
		Temperature: 0.6,
		MaxTokens:   4096,
		TopP:        floatPtr(0.95),
	},
	"llama-4-scout-17b": {
		Name:        "meta-llama/llama-4-scout-17b",
		Temperature: 0.6,
		MaxTokens:   4096,
	},
	"llama-4-maverick-17b-128e": {
		Name:        "meta-llama/llama-4-maverick-17b-128e",
		Temperature: 0.6,
		MaxTokens:   4096,
	},
	"llama-3.1-8b-instant": {
		Name:        "llama-3.1-8b-instant",
		Temperature: 0.6,
		MaxTokens:   4096,
	},
	"llama-3.3-70b-versatile": {
		Name:        "llama-3.3-70b-versatile",
		Temperature: 0.6,
		MaxTokens:   8192,
	},
	"kimi-k2-instruct": {
		Name:        "moonshotai/kimi-k2-instruct",
		Temperature: 0.6,
		MaxTokens:   4096,
	},
	"gpt-oss-20b": {
		Name:            "openai/gpt-oss-20b",
		Temperature:     1.0,
		MaxTokens:       8192,
		ReasoningEffort: "medium",
	},
	"gpt-oss-120b": {
		Name:            "openai/gpt-oss-120b",
		Temperature:     1.0,
		MaxTokens:       8192,
		ReasoningEffort: "high",
	},
}

// openAIParams covers the direct OpenAI models.
var openAIParams = map[string]chatParams{
	"gpt-4o": {
		Name:        "gpt-4o",
		Temperature: 0.7,
		MaxTokens:   4096,
	},
	"gpt-4o-mini": {
		Name:        "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   4096,
	},
}

// anthropicParams covers the Claude models.
type claudeParams struct {
	Name        string
	Temperature float64
	MaxTokens   int64
}

var anthropicParams = map[string]claudeParams{
	"claude-haiku": {
		Name:        "claude-haiku-4-5-20251001",
		Temperature: 0.7,
		MaxTokens:   4096,
	},
	"claude-sonnet": {
		Name:        "claude-sonnet-4-5-20250929",
		Temperature: 0.7,
		MaxTokens:   4096,
	},
	"claude-opus": {
		Name:        "claude-opus-4-6",
		Temperature: 0.7,
		MaxTokens:   8192,
	},
}
