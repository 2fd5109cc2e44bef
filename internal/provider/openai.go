package provider

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quicklearn/quicklearn/internal/model"
	"github.com/quicklearn/quicklearn/pkg/openaichat"
)

// chatAdapter serves the OpenAI-compatible families. Groq and OpenAI share
// the wire protocol but differ in endpoint and model table, so each gets
// its own adapter instance.
type chatAdapter struct {
	client openaichat.Client
	params map[string]chatParams
	family model.Provider
}

// NewGroqAdapter returns the adapter for Groq-hosted models.
func NewGroqAdapter(client openaichat.Client) Adapter {
	return &chatAdapter{client: client, params: groqParams, family: model.ProviderGroq}
}

// NewOpenAIAdapter returns the adapter for direct OpenAI models.
func NewOpenAIAdapter(client openaichat.Client) Adapter {
	return &chatAdapter{client: client, params: openAIParams, family: model.ProviderOpenAI}
}

func (a *chatAdapter) Generate(ctx context.Context, topic, modelAlias string, existing *model.ExplanationContent) Result {
	cfg, ok := a.params[modelAlias]
	if !ok {
		return failure(modelAlias, eris.Errorf("provider: unknown %s model: %s", a.family, modelAlias))
	}

	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens

	req := openaichat.ChatCompletionRequest{
		Model: cfg.Name,
		Messages: []openaichat.Message{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: buildPrompt(topic, existing)},
		},
		Temperature:     &temperature,
		MaxTokens:       &maxTokens,
		TopP:            cfg.TopP,
		ReasoningEffort: cfg.ReasoningEffort,
		ResponseFormat:  &openaichat.ResponseFormat{Type: "json_object"},
	}

	zap.L().Info("calling chat model",
		zap.String("provider", string(a.family)),
		zap.String("model", cfg.Name),
	)

	resp, err := a.client.ChatCompletion(ctx, req)
	if err != nil {
		return failure(cfg.Name, eris.Wrapf(err, "provider: %s call failed", cfg.Name))
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return failure(cfg.Name, eris.Errorf("provider: empty response from %s", cfg.Name))
	}

	content, err := parsePayload(cfg.Name, resp.Choices[0].Message.Content)
	if err != nil {
		return failure(cfg.Name, err)
	}

	return success(cfg.Name, content, int64(resp.Usage.TotalTokens))
}
