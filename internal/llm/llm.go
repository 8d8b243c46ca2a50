package llm

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no completion endpoint is set. Unlike
// embedding failures this is fatal to the request that needed it.
var ErrNotConfigured = errors.New("no LLM configured (llm.api_url missing)")

// Client sends a prompt to a completion provider and returns plain text.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewClient selects the provider dialect by inspecting the configured URL:
// OpenAI-compatible endpoints get the chat-completion payload, everything
// else the generic single-prompt inference payload.
func NewClient(url, apiKey, model string, logger *zap.Logger) Client {
	if url == "" {
		return unconfiguredClient{}
	}
	if isOpenAICompatible(url) {
		return newOpenAIClient(url, apiKey, model, logger)
	}
	return newInferenceClient(url, apiKey, logger)
}

func isOpenAICompatible(url string) bool {
	return strings.Contains(url, "api.openai.com") || strings.Contains(url, "/v1/chat/completions")
}

type unconfiguredClient struct{}

func (unconfiguredClient) Complete(ctx context.Context, prompt string) (string, error) {
	return "", ErrNotConfigured
}
