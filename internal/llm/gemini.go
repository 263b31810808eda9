package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/glarson/lensproxy/internal/config"
)

// Gemini calls the Gemini API. The client is only built when a key is present.
type Gemini struct {
	client *genai.Client
	cfg    *config.InferenceConfig
}

func NewGemini(ctx context.Context, cfg *config.InferenceConfig, httpClient *http.Client) (*Gemini, error) {
	g := &Gemini{cfg: cfg}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return g, nil
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Name() string { return config.ProviderGemini }

func (g *Gemini) Configured() error {
	if g.client == nil {
		return ErrNotConfigured
	}
	return nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string, opts ...Option) (*Response, error) {
	if err := g.Configured(); err != nil {
		return nil, err
	}
	options := applyOptions(g.cfg.DefaultModel, opts)

	resp, err := g.client.Models.GenerateContent(ctx, options.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(options.Temperature)),
		MaxOutputTokens: int32(options.MaxTokens),
	})
	if err != nil {
		return nil, g.classify(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, &Error{Provider: g.Name(), Err: ErrUnexpectedShape}
	}

	out := &Response{Content: text, Model: options.Model}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int64(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int64(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func (g *Gemini) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(g.Name(), apiErr.Code, []byte(apiErr.Message))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return statusError(g.Name(), apiErrPtr.Code, []byte(apiErrPtr.Message))
	}
	return &Error{Provider: g.Name(), Err: err}
}
