// Package provider adapts external text-generation API families to one
// uniform call contract. Each family is a closed variant behind the
// Adapter interface; adding a provider means adding a variant.
package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quicklearn/quicklearn/internal/model"
)

// Adapter generates a structured explanation for a topic using one model
// of its provider family. When existing content is passed, the adapter
// produces a critique-and-improve refinement instead of a fresh
// generation. Adapters never retry; chain advancement is the router's job.
type Adapter interface {
	Generate(ctx context.Context, topic, modelAlias string, existing *model.ExplanationContent) Result
}

// Result is the discriminated outcome of one generation attempt. Callers
// always receive either a success carrying content or a failure carrying
// the offending model name; adapters never fail silently.
type Result struct {
	Success    bool
	Content    *model.ExplanationContent
	TokensUsed int64
	Model      string
	Err        error
}

func failure(modelName string, err error) Result {
	return Result{Success: false, Model: modelName, Err: err}
}

func success(modelName string, content *model.ExplanationContent, tokens int64) Result {
	return Result{Success: true, Model: modelName, Content: content, TokensUsed: tokens}
}

// requiredKeys are the payload fields substituted with placeholders when a
// model omits them. Garbage-but-complete responses flow on to validation,
// which is the real gate.
var requiredKeys = []string{"one_line", "explanation", "analogy", "example"}

// parsePayload decodes a model's raw text into an ExplanationContent,
// filling absent required fields with explicit placeholders. Returns an
// error only when the text is not a JSON object at all.
func parsePayload(modelAlias, text string) (*model.ExplanationContent, error) {
	raw := extractJSON(text)

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, eris.Wrapf(err, "provider: parse response from %s", modelAlias)
	}

	str := func(key string) string {
		v, ok := fields[key].(string)
		if !ok {
			return ""
		}
		return v
	}

	var missing []string
	for _, key := range requiredKeys {
		if str(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		zap.L().Warn("model response missing fields",
			zap.String("model", modelAlias),
			zap.Strings("fields", missing),
		)
		for _, key := range missing {
			fields[key] = fmt.Sprintf("[%s not provided]", key)
		}
	}

	verified, _ := fields["verified"].(bool)

	return &model.ExplanationContent{
		OneLine:      str("one_line"),
		Explanation:  str("explanation"),
		Analogy:      str("analogy"),
		Example:      str("example"),
		Formula:      str("formula"),
		RevisionNote: str("revision_note"),
		Verified:     verified,
	}, nil
}

// extractJSON trims markdown fences and surrounding prose so that a
// response like "Here you go:\n```json\n{...}\n```" still parses.
func extractJSON(text string) string {
	t := strings.TrimSpace(text)
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1]
	}
	return t
}
