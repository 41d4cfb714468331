package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/calmahq/calma/internal/provider"
)

// maxResponseSize is the maximum response body size (10 MB).
const maxResponseSize = 10 * 1024 * 1024

// newHTTPRequest creates an authenticated HTTP request. With a proxy base
// URL configured, the request is routed through the keyless gateway and
// tagged with an x-provider header instead of an api key.
func (p *Provider) newHTTPRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("anthropic: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	base := p.config.BaseURL
	if p.config.ProxyBaseURL != "" {
		base = p.config.ProxyBaseURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", apiVersion)
	if p.config.ProxyBaseURL != "" {
		httpReq.Header.Set("x-provider", "anthropic")
	} else {
		httpReq.Header.Set("x-api-key", p.config.APIKey)
	}

	return httpReq, nil
}

// do sends a request and returns the response body and status code.
func (p *Provider) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.parsedRequestTimeout())
	defer cancel()

	httpReq, err := p.newHTTPRequest(ctx, method, path, payload)
	if err != nil {
		return nil, 0, err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, 0, mapConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("anthropic: read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

// Complete sends one request to the Messages API and returns the full
// response. It never retries: recovery belongs to the pipeline.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	mr := toRequest(req, &p.config)

	body, statusCode, err := p.do(ctx, http.MethodPost, "/messages", mr)
	if err != nil {
		return provider.CompletionResponse{}, err
	}

	if httpErr := mapHTTPError(statusCode, body); httpErr != nil {
		return provider.CompletionResponse{}, httpErr
	}

	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}

	out := fromResponse(&resp)
	if out.Content == "" {
		return provider.CompletionResponse{}, provider.ErrEmptyResponse
	}
	return out, nil
}

// ListModels implements provider.ModelLister via GET /models.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	body, statusCode, err := p.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}
	if httpErr := mapHTTPError(statusCode, body); httpErr != nil {
		return nil, httpErr
	}

	var list modelList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("anthropic: unmarshal model list: %w", err)
	}

	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, m.ID)
	}
	return models, nil
}
