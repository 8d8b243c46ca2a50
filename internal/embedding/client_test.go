package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseVectorFlatArray(t *testing.T) {
	vec := ParseVector([]byte(`[0.1, 0.2, 0.3]`))
	require.Len(t, vec, 3)
	assert.InDelta(t, 0.2, vec[1], 1e-6)
}

func TestParseVectorEmbeddingField(t *testing.T) {
	vec := ParseVector([]byte(`{"embedding": [1, 2, 3, 4]}`))
	assert.Len(t, vec, 4)
}

func TestParseVectorNestedArray(t *testing.T) {
	vec := ParseVector([]byte(`[[0.5, 0.6], [0.7, 0.8]]`))
	require.Len(t, vec, 2)
	assert.InDelta(t, 0.5, vec[0], 1e-6)
}

func TestParseVectorRejectsGarbage(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"strings in array", `["a", "b"]`},
		{"object without embedding", `{"error": "rate limited"}`},
		{"empty array", `[]`},
		{"empty nested", `[[]]`},
		{"not json", `oops`},
		{"null", `null`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Nil(t, ParseVector([]byte(tc.payload)))
		})
	}
}

func TestEmbedUnconfiguredReturnsNil(t *testing.T) {
	c := NewClient("", "", zap.NewNop())
	assert.Nil(t, c.Embed(context.Background(), "hello"))
}

func TestEmbedSendsInferenceContract(t *testing.T) {
	var gotAuth string
	var gotBody embedRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.1, 0.2}})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "secret-key", zap.NewNop())
	vec := c.Embed(context.Background(), "hello world")

	require.Len(t, vec, 2)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, []string{"hello world"}, gotBody.Inputs)
}

func TestEmbedDegradesOnServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "key", zap.NewNop())
	assert.Nil(t, c.Embed(context.Background(), "hello"))
}

func TestEmbedDegradesOnUnreachableHost(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	c := NewClient(ts.URL, "key", zap.NewNop())
	assert.Nil(t, c.Embed(context.Background(), "hello"))
}
