// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/glarson/lensproxy/internal/config"
	"github.com/glarson/lensproxy/internal/lens"
	"github.com/glarson/lensproxy/internal/llm"
	"github.com/glarson/lensproxy/internal/metrics"
	"github.com/glarson/lensproxy/internal/reference"
	"github.com/glarson/lensproxy/internal/server"
)

var (
	v          = viper.New()
	configFile string

	rootCmd = &cobra.Command{
		Use:   "lensproxy",
		Short: "Summarize a résumé through caller-supplied lenses using a hosted language model.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is not an error
			_ = godotenv.Load()
			return nil
		},
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the lens summary endpoint and the static site",
		RunE:  runServe,
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Regenerate the cached lens summaries shipped with the site",
		RunE:  runGenerate,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML or JSON config file")
	rootCmd.PersistentFlags().String("host", "0.0.0.0", "address to listen on")
	rootCmd.PersistentFlags().String("port", "8000", "port to listen on")
	rootCmd.PersistentFlags().String("provider", config.ProviderHuggingFace, "inference provider")

	for key, flag := range map[string]string{
		"server.host":        "host",
		"server.port":        "port",
		"inference.provider": "provider",
	} {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	generateCmd.Flags().String("output", "data/resume_lenses.json", "file to write the lens cache to")
	generateCmd.Flags().Int("concurrency", 1, "lenses generated in parallel")
	generateCmd.Flags().String("origin", "", "overrides reference.base_url when reference.source is origin, e.g. https://example.com")

	rootCmd.AddCommand(serveCmd, generateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stderr))

	if used := v.ConfigFileUsed(); used != "" {
		slog.Info("Read configuration file", "path", used)
	}
	slog.Info("configuration loaded successfully",
		"provider", cfg.Inference.Provider,
		"reference_source", cfg.Reference.Source,
		"default_model", cfg.Inference.DefaultModel,
	)
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func newService(ctx context.Context, cfg *config.Config, opts ...lens.ServiceOption) (*lens.Service, error) {
	provider, err := llm.New(ctx, &cfg.Inference)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference provider: %w", err)
	}

	source, err := reference.New(ctx, &cfg.Reference)
	if err != nil {
		return nil, fmt.Errorf("failed to create reference source: %w", err)
	}

	models, err := lens.NewModelSet(cfg.Inference.DefaultModel, cfg.Inference.AllowedModels)
	if err != nil {
		return nil, err
	}

	opts = append([]lens.ServiceOption{
		lens.WithMaxTokens(cfg.Inference.MaxTokens),
		lens.WithTemperature(cfg.Inference.Temperature),
		lens.WithInferenceTimeout(cfg.Inference.Timeout),
		lens.WithReferenceTimeout(cfg.Reference.Timeout),
	}, opts...)
	return lens.New(provider, source, models, opts...), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var exporter *metrics.Exporter
	var opts []lens.ServiceOption
	if cfg.Metrics.Enabled {
		exporter = metrics.New()
		opts = append(opts, lens.WithObserver(exporter))
	}

	svc, err := newService(cmd.Context(), cfg, opts...)
	if err != nil {
		return err
	}

	srv := server.New(*cfg, svc, exporter)
	slog.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
	return srv.Run()
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	origin, _ := cmd.Flags().GetString("origin")
	if origin != "" {
		cfg.Reference.BaseURL = origin
	}

	svc, err := newService(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	cache, err := svc.GenerateCache(cmd.Context(), cfg.Lenses, origin, concurrency)
	if err != nil {
		return fmt.Errorf("failed to generate lens cache: %w", err)
	}
	if err := lens.WriteCache(output, cache); err != nil {
		return err
	}

	slog.Info("Wrote lens cache", "path", output, "lenses", len(cache.Lenses))
	return nil
}
