package provider

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quicklearn/quicklearn/internal/model"
	"github.com/quicklearn/quicklearn/pkg/anthropic"
)

// anthropicAdapter serves Claude models through the Anthropic SDK. Claude
// has no JSON response mode, so the system instruction plus fence-tolerant
// parsing carry the output shape.
type anthropicAdapter struct {
	client anthropic.Client
}

// NewAnthropicAdapter returns the adapter for Claude models.
func NewAnthropicAdapter(client anthropic.Client) Adapter {
	return &anthropicAdapter{client: client}
}

func (a *anthropicAdapter) Generate(ctx context.Context, topic, modelAlias string, existing *model.ExplanationContent) Result {
	cfg, ok := anthropicParams[modelAlias]
	if !ok {
		return failure(modelAlias, eris.Errorf("provider: unknown anthropic model: %s", modelAlias))
	}

	temperature := cfg.Temperature

	zap.L().Info("calling chat model",
		zap.String("provider", string(model.ProviderAnthropic)),
		zap.String("model", cfg.Name),
	)

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       cfg.Name,
		MaxTokens:   cfg.MaxTokens,
		System:      systemInstruction,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(topic, existing)},
		},
	})
	if err != nil {
		return failure(cfg.Name, eris.Wrapf(err, "provider: %s call failed", cfg.Name))
	}

	text := resp.Text()
	if text == "" {
		return failure(cfg.Name, eris.Errorf("provider: empty response from %s", cfg.Name))
	}

	content, err := parsePayload(cfg.Name, text)
	if err != nil {
		return failure(cfg.Name, err)
	}

	return success(cfg.Name, content, resp.Usage.Total())
}
