package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/glarson/lensproxy/internal/config"
)

// HuggingFace calls the hosted text-generation Inference API.
type HuggingFace struct {
	client *http.Client
	cfg    *config.InferenceConfig
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int64   `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

func NewHuggingFace(cfg *config.InferenceConfig, client *http.Client) *HuggingFace {
	return &HuggingFace{client: client, cfg: cfg}
}

func (h *HuggingFace) Name() string { return config.ProviderHuggingFace }

func (h *HuggingFace) Configured() error {
	if strings.TrimSpace(h.cfg.APIKey) == "" {
		return ErrNotConfigured
	}
	return nil
}

func (h *HuggingFace) Generate(ctx context.Context, prompt string, opts ...Option) (*Response, error) {
	if err := h.Configured(); err != nil {
		return nil, err
	}
	options := applyOptions(h.cfg.DefaultModel, opts)

	url := strings.TrimRight(h.cfg.BaseURL, "/") + "/models/" + options.Model
	slog.Debug("Calling Hugging Face inference", "url", url, "prompt_chars", len(prompt))

	status, body, err := postJSON(ctx, h.client, url, h.cfg.APIKey, hfRequest{
		Inputs: prompt,
		Parameters: hfParameters{
			MaxNewTokens:   options.MaxTokens,
			Temperature:    options.Temperature,
			ReturnFullText: options.ReturnFullText,
		},
	})
	if err != nil {
		return nil, &Error{Provider: h.Name(), StatusCode: status, Err: err}
	}
	if status < 200 || status > 299 {
		return nil, statusError(h.Name(), status, body)
	}

	text, err := generatedText(body, "generated_text")
	if err != nil {
		return nil, &Error{
			Provider:   h.Name(),
			StatusCode: status,
			Body:       truncate(string(body), maxErrorBody),
			Err:        fmt.Errorf("%w from Hugging Face", err),
		}
	}

	return &Response{Content: text, Model: options.Model}, nil
}
