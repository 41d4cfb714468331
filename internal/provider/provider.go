// Package provider defines the uniform contract over the distinct backend
// chat-completion APIs, the shared error taxonomy, and the diagnostics slot
// that retains the last raw provider error for developer inspection.
package provider

import "context"

// Provider is the interface for communicating with an LLM backend.
// Concrete implementations live in separate packages (e.g. provider.openai)
// and typically also implement core.Module for lifecycle management.
//
// Complete issues exactly one request per call: providers never retry
// internally. Recovery (image-stripped retry, model fallback) belongs to
// the pipeline.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Name returns the backend identifier used as the catalog key
	// (e.g. "openai", "anthropic", "openrouter").
	Name() string

	// DefaultModel returns the configured default model identifier.
	DefaultModel() string

	// SupportsVision reports whether the given model accepts image input.
	// Payload builders strip images for models that do not.
	SupportsVision(model string) bool
}

// ModelLister is an optional interface providers implement when the backend
// exposes a model listing endpoint. The catalog refresher uses it to keep
// the fallback candidate universe current.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
