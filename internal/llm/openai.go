package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// openAIClient speaks the chat-completions dialect through the go-openai SDK,
// which also covers self-hosted OpenAI-compatible gateways via BaseURL.
type openAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func newOpenAIClient(url, apiKey, model string, logger *zap.Logger) *openAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if base := strings.TrimSuffix(url, "/chat/completions"); base != url {
		cfg.BaseURL = base
	}
	return &openAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

func (c *openAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: chatSystemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		c.logger.Error("chat completion failed", zap.Error(err))
		return "", fmt.Errorf("LLM request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM request returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
