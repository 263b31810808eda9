package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glarson/lensproxy/internal/config"
)

const chatCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [
    {"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"summary\":\"S\",\"bullets\":[]}"}}
  ],
  "usage": {"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18}
}`

func openAIConfig(baseURL string) *config.InferenceConfig {
	return &config.InferenceConfig{
		Provider:     config.ProviderOpenAI,
		APIKey:       "sk-test",
		BaseURL:      baseURL,
		DefaultModel: "gpt-4o-mini",
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var payload map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletion))
	}))
	defer ts.Close()

	o := NewOpenAI(openAIConfig(ts.URL), ts.Client())
	resp, err := o.Generate(context.Background(), "summarize", WithModel("gpt-4o"))
	require.NoError(t, err)

	assert.Equal(t, `{"summary":"S","bullets":[]}`, resp.Content)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, int64(18), resp.Usage.TotalTokens)
	assert.Equal(t, "gpt-4o", payload["model"])
	assert.EqualValues(t, DefaultMaxTokens, payload["max_tokens"])
}

func TestOpenAIStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer ts.Close()

	o := NewOpenAI(openAIConfig(ts.URL), ts.Client())
	_, err := o.Generate(context.Background(), "p")

	var llmErr *Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, http.StatusTooManyRequests, llmErr.StatusCode)
	assert.False(t, llmErr.Transient)
}

func TestOpenAINotConfigured(t *testing.T) {
	cfg := openAIConfig("http://unused")
	cfg.APIKey = ""
	assert.ErrorIs(t, NewOpenAI(cfg, http.DefaultClient).Configured(), ErrNotConfigured)

	azureCfg := &config.InferenceConfig{Provider: config.ProviderAzure, APIKey: "k"}
	assert.ErrorIs(t, NewOpenAI(azureCfg, http.DefaultClient).Configured(), ErrNotConfigured)
}
