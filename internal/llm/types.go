package llm

import (
	"context"
	"errors"
	"fmt"
)

type Provider interface {
	// Name identifies the provider in logs and diagnostics
	Name() string

	// Configured reports ErrNotConfigured when the credential is missing
	Configured() error

	// Generate submits a prompt and returns the raw generated text
	Generate(ctx context.Context, prompt string, opts ...Option) (*Response, error)
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Option func(*Options)

type Options struct {
	Model          string
	MaxTokens      int64
	Temperature    float64
	ReturnFullText bool
}

func WithModel(model string) Option {
	return func(o *Options) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithMaxTokens(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

type Response struct {
	Content string
	Model   string
	Usage   Usage
}

const (
	DefaultMaxTokens   = 320
	DefaultTemperature = 0.2

	// maxErrorBody bounds how much of an upstream error body is kept.
	maxErrorBody = 300
)

func applyOptions(defaultModel string, opts []Option) Options {
	options := Options{
		Model:       defaultModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

var (
	ErrNotConfigured   = errors.New("inference credential is not configured")
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// Error describes a failed upstream call.
type Error struct {
	Provider string
	// StatusCode is zero when no HTTP response was received
	StatusCode int
	Body       string
	// Transient marks conditions the caller may retry after a delay, such as a model warming up
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Provider + " request failed"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (%d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
