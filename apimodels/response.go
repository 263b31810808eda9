package apimodels

import "time"

type LensResult struct {
	// Short paragraph answering the lens
	Summary string `json:"summary"`

	// At most five supporting points
	KeyPoints []string `json:"key_points"`

	// Model that produced the summary
	Model string `json:"model"`

	// Lens text as validated
	Lens string `json:"lens"`

	// Time the result was produced
	GeneratedAt time.Time `json:"generated_at"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Help  string `json:"help,omitempty"`

	// Underlying cause, such as an upstream error excerpt
	Details string `json:"details,omitempty"`

	CurrentLength  int      `json:"current_length,omitempty"`
	MaxLength      int      `json:"max_length,omitempty"`
	RequestedModel string   `json:"requested_model,omitempty"`
	AllowedModels  []string `json:"allowed_models,omitempty"`
	UpstreamStatus int      `json:"upstream_status,omitempty"`

	// Bounded sample of the raw model output
	RawSample string `json:"raw_sample,omitempty"`
}

// Diagnostics documents the endpoint and its configuration status.
type Diagnostics struct {
	Endpoint         string            `json:"endpoint"`
	Method           string            `json:"method"`
	Description      string            `json:"description"`
	Provider         string            `json:"provider"`
	TokenConfigured  bool              `json:"token_configured"`
	AssetsConfigured bool              `json:"assets_configured"`
	ReferenceSource  string            `json:"reference_source,omitempty"`
	DefaultModel     string            `json:"default_model"`
	AllowedModels    []string          `json:"allowed_models"`
	RequestSchema    map[string]string `json:"request_schema"`
	ResponseSchema   map[string]string `json:"response_schema"`
	Notes            []string          `json:"notes"`
}

// LensCache is the static data file the site ships with precomputed lenses.
type LensCache struct {
	GeneratedAt string       `json:"generated_at"`
	ModelHint   string       `json:"model_hint"`
	Lenses      []CachedLens `json:"lenses"`
}

type CachedLens struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	KeyPoints        []string `json:"key_points"`
	RecommendedTerms []string `json:"recommended_terms"`
	SourceNotes      []string `json:"source_notes"`
}
