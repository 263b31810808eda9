package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/glarson/lensproxy/internal/config"
)

// OpenAI client implementation. It also serves Azure OpenAI and any compatible base URL.
type OpenAI struct {
	client *openai.Client
	cfg    *config.InferenceConfig
}

func NewOpenAI(cfg *config.InferenceConfig, httpClient *http.Client) *OpenAI {
	var client *openai.Client

	switch cfg.Provider {
	case config.ProviderAzure:
		client = openai.NewClient(
			azure.WithEndpoint(cfg.BaseURL, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		)
	default: // "openai"
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		)
	}

	return &OpenAI{
		client: client,
		cfg:    cfg,
	}
}

func (o *OpenAI) Name() string { return o.cfg.Provider }

func (o *OpenAI) Configured() error {
	if strings.TrimSpace(o.cfg.APIKey) == "" {
		return ErrNotConfigured
	}
	if o.cfg.Provider == config.ProviderAzure && strings.TrimSpace(o.cfg.BaseURL) == "" {
		return errors.Join(ErrNotConfigured, errors.New("azure endpoint is missing"))
	}
	return nil
}

func (o *OpenAI) Generate(ctx context.Context, prompt string, opts ...Option) (*Response, error) {
	if err := o.Configured(); err != nil {
		return nil, err
	}
	// Apply options
	options := applyOptions(o.cfg.DefaultModel, opts)

	resp, err := o.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Model: openai.F(openai.ChatModel(options.Model)),
			Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			}),
			Temperature: openai.F(options.Temperature),
			MaxTokens:   openai.F(options.MaxTokens),
		},
	)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, statusError(o.Name(), apiErr.StatusCode, []byte(apiErr.Error()))
		}
		return nil, &Error{Provider: o.Name(), Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &Error{Provider: o.Name(), Err: ErrUnexpectedShape}
	}

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Model:   options.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
