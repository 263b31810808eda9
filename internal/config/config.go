package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "LENSPROXY"

const (
	ProviderHuggingFace = "huggingface"
	ProviderWorkersAI   = "workers-ai"
	ProviderOpenAI      = "openai"
	ProviderAzure       = "azure"
	ProviderAnthropic   = "anthropic"
	ProviderGemini      = "gemini"
)

const (
	SourceOrigin = "origin"
	SourceFile   = "file"
	SourceS3     = "s3"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Log       LogConfig        `mapstructure:"log"`
	Inference InferenceConfig  `mapstructure:"inference"`
	Reference ReferenceConfig  `mapstructure:"reference"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Lenses    []LensDefinition `mapstructure:"lenses"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// StaticDir is served at / when set
	StaticDir string `mapstructure:"static_dir"`
	// TrustProxyHeaders honours X-Forwarded-* and X-Real-IP; enable only behind a proxy that sets them
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type InferenceConfig struct {
	Provider      string        `mapstructure:"provider"`
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	AccountID     string        `mapstructure:"account_id"`
	APIVersion    string        `mapstructure:"api_version"`
	DefaultModel  string        `mapstructure:"default_model"`
	AllowedModels []string      `mapstructure:"allowed_models"`
	MaxTokens     int64         `mapstructure:"max_tokens"`
	Temperature   float64       `mapstructure:"temperature"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ReferenceConfig struct {
	Source  string        `mapstructure:"source"`
	// BaseURL is the site's public origin; the origin source fetches Path from it
	BaseURL string        `mapstructure:"base_url"`
	Path    string        `mapstructure:"path"`
	Dir     string        `mapstructure:"dir"`
	Timeout time.Duration `mapstructure:"timeout"`
	S3      S3Config      `mapstructure:"s3"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Key             string `mapstructure:"key"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LensDefinition is a predefined lens whose summary is cached in the site's data file.
type LensDefinition struct {
	ID               string   `mapstructure:"id"`
	Title            string   `mapstructure:"title"`
	Instruction      string   `mapstructure:"instruction"`
	RecommendedTerms []string `mapstructure:"recommended_terms"`
	SourceNotes      []string `mapstructure:"source_notes"`
}

type providerDefaults struct {
	BaseURL       string
	DefaultModel  string
	AllowedModels []string
	CredentialEnv []string
}

var providers = map[string]providerDefaults{
	ProviderHuggingFace: {
		BaseURL:      "https://api-inference.huggingface.co",
		DefaultModel: "mistralai/Mistral-7B-Instruct-v0.3",
		AllowedModels: []string{
			"mistralai/Mistral-7B-Instruct-v0.3",
			"HuggingFaceH4/zephyr-7b-beta",
			"meta-llama/Meta-Llama-3-8B-Instruct",
		},
		CredentialEnv: []string{"HF_API_TOKEN", "HF_TOKEN"},
	},
	ProviderWorkersAI: {
		BaseURL:      "https://api.cloudflare.com/client/v4",
		DefaultModel: "@cf/meta/llama-3.1-8b-instruct",
		AllowedModels: []string{
			"@cf/meta/llama-3.1-8b-instruct",
			"@cf/meta/llama-3-8b-instruct",
			"@cf/mistral/mistral-7b-instruct-v0.1",
		},
		CredentialEnv: []string{"CLOUDFLARE_API_TOKEN", "CF_API_TOKEN"},
	},
	ProviderOpenAI: {
		BaseURL:       "https://api.openai.com/v1",
		DefaultModel:  "gpt-4o-mini",
		AllowedModels: []string{"gpt-4o-mini", "gpt-4o"},
		CredentialEnv: []string{"OPENAI_API_KEY"},
	},
	ProviderAzure: {
		DefaultModel:  "gpt-4o",
		AllowedModels: []string{"gpt-4o", "gpt-4o-mini"},
		CredentialEnv: []string{"AZURE_OPENAI_API_KEY"},
	},
	ProviderAnthropic: {
		DefaultModel:  "claude-haiku-4-5-20251001",
		AllowedModels: []string{"claude-haiku-4-5-20251001", "claude-sonnet-4-5-20250929"},
		CredentialEnv: []string{"ANTHROPIC_API_KEY"},
	},
	ProviderGemini: {
		DefaultModel:  "gemini-2.5-flash",
		AllowedModels: []string{"gemini-2.5-flash", "gemini-2.5-pro"},
		CredentialEnv: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	},
}

var (
	ErrUnknownProvider = errors.New("unknown inference provider")
	ErrUnknownSource   = errors.New("unknown reference source")
)

// SetDefaults registers every key so environment variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.static_dir", "web/static")
	v.SetDefault("server.trust_proxy_headers", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("inference.provider", ProviderHuggingFace)
	v.SetDefault("inference.api_key", "")
	v.SetDefault("inference.base_url", "")
	v.SetDefault("inference.account_id", "")
	v.SetDefault("inference.api_version", "2024-06-01")
	v.SetDefault("inference.default_model", "")
	v.SetDefault("inference.allowed_models", []string{})
	v.SetDefault("inference.max_tokens", 320)
	v.SetDefault("inference.temperature", 0.2)
	v.SetDefault("inference.timeout", 60*time.Second)

	v.SetDefault("reference.source", SourceFile)
	v.SetDefault("reference.base_url", "")
	v.SetDefault("reference.path", "/resume.txt")
	v.SetDefault("reference.dir", "")
	v.SetDefault("reference.timeout", 10*time.Second)
	v.SetDefault("reference.s3.bucket", "")
	v.SetDefault("reference.s3.key", "resume.txt")
	v.SetDefault("reference.s3.region", "auto")
	v.SetDefault("reference.s3.endpoint", "")
	v.SetDefault("reference.s3.access_key_id", "")
	v.SetDefault("reference.s3.secret_access_key", "")
	v.SetDefault("reference.s3.use_path_style", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads defaults, the optional config file and the environment, then validates the result.
// It does not log; the caller configures logging from the result first.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	cfg.applyProviderDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyProviderDefaults() {
	c.Inference.Provider = strings.ToLower(strings.TrimSpace(c.Inference.Provider))
	c.Reference.Source = strings.ToLower(strings.TrimSpace(c.Reference.Source))

	defaults, ok := providers[c.Inference.Provider]
	if !ok {
		return
	}
	if c.Inference.BaseURL == "" {
		c.Inference.BaseURL = defaults.BaseURL
	}
	if c.Inference.DefaultModel == "" {
		c.Inference.DefaultModel = defaults.DefaultModel
	}
	if len(c.Inference.AllowedModels) == 0 {
		c.Inference.AllowedModels = slices.Clone(defaults.AllowedModels)
	}
	if c.Inference.APIKey == "" {
		c.Inference.APIKey = firstEnv(defaults.CredentialEnv...)
	}
	if c.Inference.Provider == ProviderWorkersAI && c.Inference.AccountID == "" {
		c.Inference.AccountID = firstEnv("CLOUDFLARE_ACCOUNT_ID", "CF_ACCOUNT_ID")
	}

	if c.Reference.Dir == "" {
		c.Reference.Dir = c.Server.StaticDir
	}
	if c.Reference.S3.AccessKeyID == "" {
		c.Reference.S3.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if c.Reference.S3.SecretAccessKey == "" {
		c.Reference.S3.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
}

// Validate rejects settings that cannot produce a working service.
// A missing inference credential is not rejected here; requests report it instead.
func (c *Config) Validate() error {
	if _, ok := providers[c.Inference.Provider]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Inference.Provider)
	}
	switch c.Reference.Source {
	case SourceOrigin:
		if err := validateBaseURL(c.Reference.BaseURL); err != nil {
			return err
		}
	case SourceFile:
	case SourceS3:
		if c.Reference.S3.Bucket == "" {
			return errors.New("reference.s3.bucket is required when reference.source is s3")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, c.Reference.Source)
	}

	if c.Inference.DefaultModel == "" {
		return errors.New("inference.default_model cannot be empty")
	}
	if !slices.Contains(c.Inference.AllowedModels, c.Inference.DefaultModel) {
		return fmt.Errorf("default model %q is not in inference.allowed_models", c.Inference.DefaultModel)
	}
	if c.Inference.MaxTokens <= 0 {
		return errors.New("inference.max_tokens must be positive")
	}
	if c.Inference.Timeout <= 0 || c.Reference.Timeout <= 0 {
		return errors.New("inference.timeout and reference.timeout must be positive")
	}
	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("reference.base_url is required when reference.source is origin")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid reference.base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("reference.base_url %q must be an absolute http or https URL", raw)
	}
	return nil
}

// CredentialEnv lists the conventional environment variables read for a provider's credential.
func CredentialEnv(provider string) []string {
	return slices.Clone(providers[provider].CredentialEnv)
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if val := strings.TrimSpace(os.Getenv(k)); val != "" {
			return val
		}
	}
	return ""
}
