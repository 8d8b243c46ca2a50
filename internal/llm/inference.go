package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// inferenceClient speaks the generic single-prompt dialect: POST
// {"inputs": prompt} with bearer auth, response shape unknown in advance.
type inferenceClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func newInferenceClient(url, apiKey string, logger *zap.Logger) *inferenceClient {
	return &inferenceClient{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

func (c *inferenceClient) Complete(ctx context.Context, prompt string) (string, error) {
	inputs := fmt.Sprintf("%s\n\nUser: %s\nUnvios:", inferenceInstruction, prompt)
	body, err := json.Marshal(inferenceRequest{Inputs: inputs})
	if err != nil {
		return "", fmt.Errorf("failed to encode LLM request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build LLM request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("LLM request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read LLM response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM request failed: %d %s", resp.StatusCode, string(payload))
	}

	// Non-JSON providers return the completion as plain text.
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return string(payload), nil
	}

	return NormalizeOutput(payload), nil
}
