package lens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/glarson/lensproxy/apimodels"
	"github.com/glarson/lensproxy/internal/extract"
	"github.com/glarson/lensproxy/internal/llm"
	"github.com/glarson/lensproxy/internal/reference"
)

const (
	MaxLensLength  = 240
	MaxKeyPoints   = 5
	CacheKeyPoints = 3

	DefaultReferenceTimeout = 10 * time.Second
	DefaultInferenceTimeout = 60 * time.Second

	// maxDetails bounds the upstream body echoed in error details.
	maxDetails = 300
)

// Observer receives the outcome of each upstream call.
type Observer interface {
	ObserveUpstream(call, name, outcome string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveUpstream(string, string, string, time.Duration) {}

type Service struct {
	provider llm.Provider
	source   reference.Source
	models   ModelSet

	maxTokens        int64
	temperature      float64
	referenceTimeout time.Duration
	inferenceTimeout time.Duration

	observer Observer
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithMaxTokens(n int64) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

func WithTemperature(t float64) ServiceOption {
	return func(s *Service) { s.temperature = t }
}

func WithReferenceTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.referenceTimeout = d
		}
	}
}

func WithInferenceTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.inferenceTimeout = d
		}
	}
}

func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock overrides the time source used for generated_at.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the proxy service. A nil source is reported as a configuration error on each request.
func New(provider llm.Provider, source reference.Source, models ModelSet, opts ...ServiceOption) *Service {
	s := &Service{
		provider:         provider,
		source:           source,
		models:           models,
		maxTokens:        llm.DefaultMaxTokens,
		temperature:      llm.DefaultTemperature,
		referenceTimeout: DefaultReferenceTimeout,
		inferenceTimeout: DefaultInferenceTimeout,
		observer:         nopObserver{},
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Models() ModelSet { return s.models }

// ParseRequest decodes a request body. Non-string lens values are treated as missing.
func ParseRequest(body []byte) (apimodels.LensRequest, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return apimodels.LensRequest{}, ErrInvalidJSON(err)
	}
	if raw == nil {
		return apimodels.LensRequest{}, ErrInvalidJSON(errors.New("body is not a JSON object"))
	}

	var req apimodels.LensRequest
	if lens, ok := raw["lens"].(string); ok {
		req.Lens = lens
	}
	switch model := raw["model"].(type) {
	case nil:
	case string:
		req.Model = model
	default:
		req.Model = fmt.Sprint(model)
	}
	return req, nil
}

// Validate returns the trimmed lens and the resolved model. It performs no I/O.
// The model is matched exactly as sent; only an absent or empty model selects the default.
func (s *Service) Validate(req apimodels.LensRequest) (string, string, error) {
	lens := strings.TrimSpace(req.Lens)
	if lens == "" {
		return "", "", errEmptyLens()
	}
	if n := utf8.RuneCountInString(lens); n > MaxLensLength {
		return "", "", errLensTooLong(n)
	}

	model := req.Model
	if model == "" {
		return lens, s.models.Default(), nil
	}
	if !s.models.Contains(model) {
		return "", "", errModelNotAllowed(model, s.models.Allowed())
	}
	return lens, model, nil
}

// Summarize answers one lens request. origin is the scheme and host the request arrived on.
func (s *Service) Summarize(ctx context.Context, req apimodels.LensRequest, origin string) (*apimodels.LensResult, error) {
	logger := LoggerFrom(ctx)

	lens, model, err := s.Validate(req)
	if err != nil {
		logger.Info("Rejected lens request", "error", err)
		return nil, err
	}
	logger.Debug("Validated lens request", "lens_length", utf8.RuneCountInString(lens), "model", model)

	if err := s.checkConfigured(); err != nil {
		logger.Error("Lens proxy is not configured", "error", err)
		return nil, err
	}

	document, err := s.loadDocument(ctx, origin)
	if err != nil {
		logger.Error("Failed to load reference document", "source", s.source.Name(), "error", err)
		return nil, errDocumentLoad(err)
	}
	logger.Debug("Loaded reference document", "source", s.source.Name(), "bytes", len(document))

	prompt := BuildPrompt(lens, document)
	logger.Debug("Invoking inference", "provider", s.provider.Name(), "model", model, "prompt_chars", len(prompt))
	start := time.Now()
	raw, err := s.generate(ctx, prompt, model)
	if err != nil {
		lensErr := errUpstream(s.provider.Name(), err, s.inferenceTimeout)
		logger.Error("Inference failed", "provider", s.provider.Name(), "model", model,
			"status", lensErr.Status, "error", err)
		return nil, lensErr
	}
	logger.Info("Inference returned", "provider", s.provider.Name(), "model", model,
		"chars", utf8.RuneCountInString(raw), "duration", time.Since(start))

	res := extract.Parse(raw)
	if res.Status != extract.Parsed {
		logger.Warn("Model output did not contain usable JSON", "status", res.Status.String(),
			"sample", extract.Sample(raw, 120))
		return nil, errExtraction(res, raw)
	}

	summary, points := extract.Normalize(res.Object, MaxKeyPoints)
	logger.Info("Lens summary generated", "model", model, "strategy", res.Strategy, "key_points", len(points))

	return &apimodels.LensResult{
		Summary:     summary,
		KeyPoints:   points,
		Model:       model,
		Lens:        lens,
		GeneratedAt: s.now().UTC(),
	}, nil
}

func (s *Service) checkConfigured() error {
	if err := s.provider.Configured(); err != nil {
		return errProviderNotConfigured(s.provider.Name(), err)
	}
	if s.source == nil {
		return errSourceNotConfigured()
	}
	return nil
}

func (s *Service) loadDocument(ctx context.Context, origin string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.referenceTimeout)
	defer cancel()

	start := time.Now()
	document, err := s.source.Load(ctx, origin)
	s.observer.ObserveUpstream("reference", s.source.Name(), outcome(err), time.Since(start))
	return document, err
}

func (s *Service) generate(ctx context.Context, prompt, model string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.inferenceTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.provider.Generate(ctx, prompt,
		llm.WithModel(model),
		llm.WithMaxTokens(s.maxTokens),
		llm.WithTemperature(s.temperature),
	)
	s.observer.ObserveUpstream("inference", s.provider.Name(), outcome(err), time.Since(start))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func outcome(err error) string {
	var llmErr *llm.Error
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &llmErr) && llmErr.Transient:
		return "transient"
	default:
		return "error"
	}
}

// Diagnostics describes the endpoint for GET callers.
func (s *Service) Diagnostics() apimodels.Diagnostics {
	d := apimodels.Diagnostics{
		Endpoint:         "/api/lens-summary",
		Method:           "POST",
		Description:      "Summarize the résumé through a caller-supplied lens using a hosted language model.",
		Provider:         s.provider.Name(),
		TokenConfigured:  s.provider.Configured() == nil,
		AssetsConfigured: s.source != nil,
		DefaultModel:     s.models.Default(),
		AllowedModels:    s.models.Allowed(),
		RequestSchema: map[string]string{
			"lens":  fmt.Sprintf("string, required, 1-%d characters", MaxLensLength),
			"model": "string, optional, one of allowed_models",
		},
		ResponseSchema: map[string]string{
			"summary":      "string",
			"key_points":   fmt.Sprintf("array of up to %d strings", MaxKeyPoints),
			"model":        "string",
			"lens":         "string",
			"generated_at": "RFC 3339 timestamp",
		},
		Notes: []string{
			"Send Content-Type: application/json.",
			"A 503 means the model is warming up; retry after 20-30 seconds.",
			"Responses are generated per request and never cached.",
		},
	}
	if s.source != nil {
		d.ReferenceSource = s.source.Name()
	}
	return d
}
