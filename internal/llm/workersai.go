package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/glarson/lensproxy/internal/config"
)

// WorkersAI calls Cloudflare Workers AI through its REST API.
type WorkersAI struct {
	client *http.Client
	cfg    *config.InferenceConfig
}

type workersAIRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int64   `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type workersAIEnvelope struct {
	Result  json.RawMessage `json:"result"`
	Success *bool           `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func NewWorkersAI(cfg *config.InferenceConfig, client *http.Client) *WorkersAI {
	return &WorkersAI{client: client, cfg: cfg}
}

func (w *WorkersAI) Name() string { return config.ProviderWorkersAI }

func (w *WorkersAI) Configured() error {
	if strings.TrimSpace(w.cfg.APIKey) == "" {
		return ErrNotConfigured
	}
	if strings.TrimSpace(w.cfg.AccountID) == "" {
		return fmt.Errorf("%w: account id is missing", ErrNotConfigured)
	}
	return nil
}

func (w *WorkersAI) Generate(ctx context.Context, prompt string, opts ...Option) (*Response, error) {
	if err := w.Configured(); err != nil {
		return nil, err
	}
	options := applyOptions(w.cfg.DefaultModel, opts)

	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", strings.TrimRight(w.cfg.BaseURL, "/"), w.cfg.AccountID, options.Model)
	slog.Debug("Calling Workers AI", "model", options.Model, "prompt_chars", len(prompt))

	status, body, err := postJSON(ctx, w.client, url, w.cfg.APIKey, workersAIRequest{
		Prompt:      prompt,
		MaxTokens:   options.MaxTokens,
		Temperature: options.Temperature,
	})
	if err != nil {
		return nil, &Error{Provider: w.Name(), StatusCode: status, Err: err}
	}
	if status < 200 || status > 299 {
		return nil, statusError(w.Name(), status, body)
	}

	text, err := w.decode(body)
	if err != nil {
		return nil, &Error{
			Provider:   w.Name(),
			StatusCode: status,
			Body:       truncate(string(body), maxErrorBody),
			Err:        err,
		}
	}
	return &Response{Content: text, Model: options.Model}, nil
}

func (w *WorkersAI) decode(body []byte) (string, error) {
	var env workersAIEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Result) == 0 {
		// Not wrapped in the REST envelope.
		return generatedText(body, "response", "generated_text", "text")
	}

	if env.Success != nil && !*env.Success {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return "", errors.New("workers ai reported failure: " + strings.Join(msgs, "; "))
	}

	return generatedText(env.Result, "response", "generated_text", "text")
}
