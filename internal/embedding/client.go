package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Embedder converts text into a fixed-length vector. A nil result means no
// embedding could be produced; callers must treat embeddings as optional and
// degrade gracefully.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Client calls an HTTP embedding endpoint speaking the inference-API contract:
// POST {"inputs": [text]} with bearer auth.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(url, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

// Embed returns the embedding for text, or nil when the service is
// unconfigured, unreachable, or returns a malformed vector. Failures are
// logged and never escalate: embeddings are enrichment, not a dependency.
func (c *Client) Embed(ctx context.Context, text string) []float32 {
	if c == nil || c.url == "" || c.apiKey == "" {
		return nil
	}

	body, err := json.Marshal(embedRequest{Inputs: []string{text}})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.logger.Debug("failed to build embedding request", zap.Error(err))
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("embedding request failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Debug("failed to read embedding response", zap.Error(err))
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("embedding request returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload))
		return nil
	}

	vec := ParseVector(payload)
	if vec == nil {
		c.logger.Warn("embedding service returned invalid vector data")
	}
	return vec
}

// ParseVector normalizes the provider response shapes to a single vector:
// a flat numeric array, {"embedding": [...]}, or an array of arrays (first
// row wins). Each extractor is tried in order; the first match is validated
// for finite elements and anything else yields nil.
func ParseVector(payload []byte) []float32 {
	extractors := []func([]byte) ([]float64, bool){
		extractFlat,
		extractEmbeddingField,
		extractNested,
	}

	for _, extract := range extractors {
		raw, ok := extract(payload)
		if !ok {
			continue
		}
		vec := make([]float32, len(raw))
		for i, f := range raw {
			// A single NaN or Inf invalidates the whole vector.
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil
			}
			vec[i] = float32(f)
		}
		if len(vec) == 0 {
			return nil
		}
		return vec
	}
	return nil
}

func extractFlat(payload []byte) ([]float64, bool) {
	var vec []float64
	if err := json.Unmarshal(payload, &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

func extractEmbeddingField(payload []byte) ([]float64, bool) {
	var wrapper struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &wrapper); err != nil || len(wrapper.Embedding) == 0 {
		return nil, false
	}
	return wrapper.Embedding, true
}

func extractNested(payload []byte) ([]float64, bool) {
	var rows [][]float64
	if err := json.Unmarshal(payload, &rows); err != nil || len(rows) == 0 || len(rows[0]) == 0 {
		return nil, false
	}
	return rows[0], true
}
