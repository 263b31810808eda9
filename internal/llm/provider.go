package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/glarson/lensproxy/internal/config"
)

// New builds the provider selected by cfg.Provider. Callers bound each call with a context deadline.
func New(ctx context.Context, cfg *config.InferenceConfig) (Provider, error) {
	httpClient := &http.Client{}

	var (
		provider Provider
		err      error
	)
	switch cfg.Provider {
	case config.ProviderHuggingFace:
		provider = NewHuggingFace(cfg, httpClient)
	case config.ProviderWorkersAI:
		provider = NewWorkersAI(cfg, httpClient)
	case config.ProviderOpenAI, config.ProviderAzure:
		provider = NewOpenAI(cfg, httpClient)
	case config.ProviderAnthropic:
		provider = NewAnthropic(cfg, httpClient)
	case config.ProviderGemini:
		provider, err = NewGemini(ctx, cfg, httpClient)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cerr := provider.Configured(); cerr != nil {
		slog.Warn("Inference provider has no credential; lens requests will fail until it is set",
			"provider", provider.Name(), "env", config.CredentialEnv(cfg.Provider))
	} else {
		slog.Info("Inference provider ready", "provider", provider.Name(), "default_model", cfg.DefaultModel)
	}
	return provider, nil
}
