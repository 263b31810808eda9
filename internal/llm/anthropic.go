package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/glarson/lensproxy/internal/config"
)

type Anthropic struct {
	client anthropic.Client
	cfg    *config.InferenceConfig
}

func NewAnthropic(cfg *config.InferenceConfig, httpClient *http.Client) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}

	return &Anthropic{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}
}

func (a *Anthropic) Name() string { return config.ProviderAnthropic }

func (a *Anthropic) Configured() error {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return ErrNotConfigured
	}
	return nil
}

func (a *Anthropic) Generate(ctx context.Context, prompt string, opts ...Option) (*Response, error) {
	if err := a.Configured(); err != nil {
		return nil, err
	}
	options := applyOptions(a.cfg.DefaultModel, opts)

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(options.Model),
		MaxTokens:   options.MaxTokens,
		Temperature: anthropic.Float(options.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, statusError(a.Name(), apiErr.StatusCode, []byte(apiErr.Error()))
		}
		return nil, &Error{Provider: a.Name(), Err: err}
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &Error{Provider: a.Name(), Err: ErrUnexpectedShape}
	}

	return &Response{
		Content: text.String(),
		Model:   options.Model,
		Usage: Usage{
			PromptTokens:     msg.Usage.InputTokens,
			CompletionTokens: msg.Usage.OutputTokens,
			TotalTokens:      msg.Usage.InputTokens + msg.Usage.OutputTokens,
		},
	}, nil
}
