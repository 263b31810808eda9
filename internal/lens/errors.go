package lens

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/glarson/lensproxy/apimodels"
	"github.com/glarson/lensproxy/internal/config"
	"github.com/glarson/lensproxy/internal/extract"
	"github.com/glarson/lensproxy/internal/llm"
)

type Kind int

const (
	KindInvalidInput Kind = iota
	KindMethodNotAllowed
	KindConfiguration
	KindDocumentLoad
	KindUpstreamUnavailable
	KindUpstream
	KindExtraction
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindConfiguration:
		return "configuration"
	case KindDocumentLoad:
		return "document_load"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindUpstream:
		return "upstream"
	case KindExtraction:
		return "extraction"
	default:
		return "internal"
	}
}

// Error is a failure that maps to exactly one JSON error response.
type Error struct {
	Kind     Kind
	Status   int
	Response apimodels.ErrorResponse
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Response.Error + ": " + e.Err.Error()
	}
	return e.Response.Error
}

func (e *Error) Unwrap() error { return e.Err }

// AsError returns err as an *Error, classifying unknown errors as internal.
func AsError(err error) *Error {
	var lensErr *Error
	if errors.As(err, &lensErr) {
		return lensErr
	}
	return &Error{
		Kind:     KindInternal,
		Status:   http.StatusInternalServerError,
		Response: apimodels.ErrorResponse{Error: "Unexpected server error.", Details: err.Error()},
		Err:      err,
	}
}

func ErrInvalidJSON(err error) *Error {
	return &Error{
		Kind:   KindInvalidInput,
		Status: http.StatusBadRequest,
		Response: apimodels.ErrorResponse{
			Error: "Invalid JSON body",
			Help:  `Send a JSON object such as {"lens":"How does the candidate handle outages?"} with Content-Type: application/json.`,
		},
		Err: err,
	}
}

func errEmptyLens() *Error {
	return &Error{
		Kind:     KindInvalidInput,
		Status:   http.StatusBadRequest,
		Response: apimodels.ErrorResponse{Error: "Provide a focus or lens description."},
	}
}

func errLensTooLong(n int) *Error {
	return &Error{
		Kind:   KindInvalidInput,
		Status: http.StatusBadRequest,
		Response: apimodels.ErrorResponse{
			Error:         fmt.Sprintf("Lens description is too long (%d characters). Keep it to %d characters or fewer.", n, MaxLensLength),
			CurrentLength: n,
			MaxLength:     MaxLensLength,
		},
	}
}

func errModelNotAllowed(requested string, allowed []string) *Error {
	return &Error{
		Kind:   KindInvalidInput,
		Status: http.StatusBadRequest,
		Response: apimodels.ErrorResponse{
			Error:          fmt.Sprintf("Model %q is not allowed.", requested),
			Help:           "Omit model to use the default, or pick one of allowed_models.",
			RequestedModel: requested,
			AllowedModels:  allowed,
		},
	}
}

func ErrMethodNotAllowed(method string) *Error {
	return &Error{
		Kind:   KindMethodNotAllowed,
		Status: http.StatusMethodNotAllowed,
		Response: apimodels.ErrorResponse{
			Error: "Method not allowed. Use POST with a JSON body.",
			Help:  "GET returns usage documentation; OPTIONS answers CORS preflight.",
		},
		Err: fmt.Errorf("method %s", method),
	}
}

func errProviderNotConfigured(provider string, err error) *Error {
	help := "Configure the inference credential for provider " + provider + " and restart the service."
	if envs := config.CredentialEnv(provider); len(envs) > 0 {
		help = fmt.Sprintf("Set %s (or inference.api_key in the config file) for provider %s and restart the service.",
			strings.Join(envs, " or "), provider)
	}
	if provider == config.ProviderWorkersAI {
		help += " Workers AI also needs CLOUDFLARE_ACCOUNT_ID."
	}
	return &Error{
		Kind:   KindConfiguration,
		Status: http.StatusInternalServerError,
		Response: apimodels.ErrorResponse{
			Error:   "Inference provider is not configured.",
			Help:    help,
			Details: err.Error(),
		},
		Err: err,
	}
}

func errSourceNotConfigured() *Error {
	return &Error{
		Kind:   KindConfiguration,
		Status: http.StatusInternalServerError,
		Response: apimodels.ErrorResponse{
			Error: "Reference document source is not configured.",
			Help:  "Set reference.source to origin, file or s3.",
		},
	}
}

func errDocumentLoad(err error) *Error {
	return &Error{
		Kind:   KindDocumentLoad,
		Status: http.StatusInternalServerError,
		Response: apimodels.ErrorResponse{
			Error:   "Failed to load résumé text.",
			Help:    "Check that the reference document is published at the configured path.",
			Details: err.Error(),
		},
		Err: err,
	}
}

// errUpstream classifies a provider failure into unavailable, pass-through or bad gateway.
func errUpstream(provider string, err error, timeout time.Duration) *Error {
	if errors.Is(err, llm.ErrNotConfigured) {
		return errProviderNotConfigured(provider, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Kind:   KindUpstream,
			Status: http.StatusBadGateway,
			Response: apimodels.ErrorResponse{
				Error: fmt.Sprintf("Inference request timed out after %s.", timeout),
				Help:  "The model took too long to answer. Try a shorter lens or retry later.",
			},
			Err: err,
		}
	}

	var llmErr *llm.Error
	if !errors.As(err, &llmErr) {
		return &Error{
			Kind:     KindUpstream,
			Status:   http.StatusBadGateway,
			Response: apimodels.ErrorResponse{Error: "Inference request failed.", Details: err.Error()},
			Err:      err,
		}
	}

	if llmErr.Transient {
		return &Error{
			Kind:   KindUpstreamUnavailable,
			Status: http.StatusServiceUnavailable,
			Response: apimodels.ErrorResponse{
				Error:          "The model is warming up. Try again shortly.",
				Help:           "The inference provider is loading the model. Wait 20-30 seconds and send the request again.",
				Details:        llmErr.Body,
				UpstreamStatus: llmErr.StatusCode,
			},
			Err: err,
		}
	}

	status := http.StatusBadGateway
	switch llmErr.StatusCode {
	case http.StatusNotFound, http.StatusTooManyRequests:
		status = llmErr.StatusCode
	}

	details := llmErr.Body
	if details == "" && llmErr.Err != nil {
		details = llmErr.Err.Error()
	}

	msg := "Inference request failed."
	if llmErr.StatusCode != 0 {
		msg = fmt.Sprintf("Inference request failed with upstream status %d.", llmErr.StatusCode)
	}
	if errors.Is(err, llm.ErrUnexpectedShape) {
		msg = "Inference provider returned an unexpected response shape."
	}

	return &Error{
		Kind:   KindUpstream,
		Status: status,
		Response: apimodels.ErrorResponse{
			Error:          msg,
			Details:        extract.Sample(details, maxDetails),
			UpstreamStatus: llmErr.StatusCode,
		},
		Err: err,
	}
}

func errExtraction(res extract.Result, raw string) *Error {
	details := "no JSON object found in model output"
	if res.Status == extract.ParseError && res.Err != nil {
		details = "invalid JSON: " + res.Err.Error()
	}
	return &Error{
		Kind:   KindExtraction,
		Status: http.StatusBadGateway,
		Response: apimodels.ErrorResponse{
			Error:     "Model response was not in the expected format.",
			Help:      "The model did not return the requested JSON. Retrying or choosing another model usually helps.",
			Details:   details,
			RawSample: extract.Sample(raw, extract.MaxSnippet),
		},
		Err: fmt.Errorf("extraction %s", res.Status),
	}
}

func ErrBodyTooLarge(limit int64) *Error {
	return &Error{
		Kind:   KindInvalidInput,
		Status: http.StatusRequestEntityTooLarge,
		Response: apimodels.ErrorResponse{
			Error: fmt.Sprintf("Request body is larger than %d bytes.", limit),
			Help:  `Send only {"lens": "...", "model": "..."}.`,
		},
		Err: fmt.Errorf("request body too large: limit %d bytes", limit),
	}
}
