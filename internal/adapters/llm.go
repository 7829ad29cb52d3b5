package adapters

import (
	"context"

	"github.com/guardbot/guardbot/internal/adapters/llm"
)

// LLM is the boundary to the external language model used as the
// classification oracle. The bot never interprets model output beyond
// the constrained vocabulary the oracle client enforces.
type LLM interface {
	ChatCompletion(ctx context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error)
}

// ModelSelector is implemented by backends that allow switching the
// underlying model at runtime.
type ModelSelector interface {
	WithModel(modelName string) LLM
}
