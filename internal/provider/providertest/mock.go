// Package providertest provides mock implementations for provider tests.
package providertest

import (
	"context"
	"sync"

	"github.com/calmahq/calma/internal/provider"
)

// MockProvider is a configurable mock implementation of provider.Provider.
// Calls records every request received, in order.
type MockProvider struct {
	CompleteFunc       func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	NameFunc           func() string
	DefaultModelFunc   func() string
	SupportsVisionFunc func(model string) bool
	ListModelsFunc     func(ctx context.Context) ([]string, error)

	mu    sync.Mutex
	calls []provider.CompletionRequest
}

// Compile-time interface guards.
var (
	_ provider.Provider    = (*MockProvider)(nil)
	_ provider.ModelLister = (*MockProvider)(nil)
)

// Complete implements provider.Provider.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return provider.CompletionResponse{Content: "ok"}, nil
}

// Name implements provider.Provider.
func (m *MockProvider) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

// DefaultModel implements provider.Provider.
func (m *MockProvider) DefaultModel() string {
	if m.DefaultModelFunc != nil {
		return m.DefaultModelFunc()
	}
	return "mock-model"
}

// SupportsVision implements provider.Provider.
func (m *MockProvider) SupportsVision(model string) bool {
	if m.SupportsVisionFunc != nil {
		return m.SupportsVisionFunc(model)
	}
	return false
}

// ListModels implements provider.ModelLister.
func (m *MockProvider) ListModels(ctx context.Context) ([]string, error) {
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return []string{m.DefaultModel()}, nil
}

// Calls returns a copy of all requests received so far.
func (m *MockProvider) Calls() []provider.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Complete calls received.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
