package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/calmahq/calma/internal/provider"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := &Provider{
		config: Config{
			APIKey:  "sk-test",
			Model:   "gpt-4o-mini",
			BaseURL: srv.URL,
		},
		client: srv.Client(),
	}
	p.config.defaults()
	p.config.BaseURL = srv.URL
	return p
}

func TestComplete_Success(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	var gotAuth string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ciao!"}}],"model":"gpt-4o-mini","usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`))
	})

	resp, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages:  []provider.Message{{Role: provider.MessageRoleUser, Content: "ciao"}},
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Content != "ciao!" {
		t.Errorf("Content = %q, want ciao!", resp.Content)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("TotalTokens = %d, want 7", resp.Usage.TotalTokens)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if gotBody["stream"] != false {
		t.Errorf("stream = %v, want false", gotBody["stream"])
	}
}

func TestComplete_ModelOverride(t *testing.T) {
	t.Parallel()

	var gotModel string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		gotModel, _ = body["model"].(string)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	_, err := p.Complete(context.Background(), provider.CompletionRequest{
		Model:    "gpt-4.1",
		Messages: []provider.Message{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotModel != "gpt-4.1" {
		t.Errorf("model = %q, want the request-level override", gotModel)
	}
}

func TestComplete_HTTPErrorCarriesBody(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	})

	_, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.Message{{Role: provider.MessageRoleUser, Content: "hi"}},
	})

	var httpErr *provider.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *provider.HTTPError", err)
	}
	if httpErr.Status != 500 {
		t.Errorf("Status = %d, want 500", httpErr.Status)
	}
	if !strings.Contains(string(httpErr.Body), "overloaded") {
		t.Errorf("Body = %q, want raw body retained", httpErr.Body)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.Message{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if !errors.Is(err, provider.ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestComplete_ProxyPath(t *testing.T) {
	t.Parallel()

	var gotAuth, gotProvider string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotProvider = r.Header.Get("x-provider")
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := &Provider{
		config: Config{Model: "gpt-4o-mini", ProxyBaseURL: srv.URL},
		client: srv.Client(),
	}
	p.config.defaults()

	if _, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.Message{{Role: provider.MessageRoleUser, Content: "hi"}},
	}); err != nil {
		t.Fatal(err)
	}

	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty on the proxy path", gotAuth)
	}
	if gotProvider != "openai" {
		t.Errorf("x-provider = %q, want openai", gotProvider)
	}
}

func TestComplete_ImagesEncodedAsDataURLs(t *testing.T) {
	t.Parallel()

	var raw string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		raw = string(data)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	_, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.Message{{
			Role:    provider.MessageRoleUser,
			Content: "what is this?",
			Images:  []provider.ImagePart{{MediaType: "image/png", Data: []byte{1, 2, 3}}},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(raw, `"type":"image_url"`) {
		t.Errorf("payload = %s, want image_url content part", raw)
	}
	if !strings.Contains(raw, "data:image/png;base64,AQID") {
		t.Errorf("payload = %s, want base64 data URL", raw)
	}
}

func TestListModels(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/models" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
	})

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"gpt-4o", "gpt-4o-mini"}
	if len(models) != len(want) {
		t.Fatalf("models = %v, want %v", models, want)
	}
	for i := range want {
		if models[i] != want[i] {
			t.Errorf("models[%d] = %q, want %q", i, models[i], want[i])
		}
	}
}

func TestSupportsVision(t *testing.T) {
	t.Parallel()

	p := &Provider{config: Config{Model: "gpt-4o", VisionModels: []string{"custom-vision"}}}
	p.vision = map[string]bool{"gpt-4o": true, "custom-vision": true}

	if !p.SupportsVision("gpt-4o") {
		t.Error("gpt-4o should support vision")
	}
	if !p.SupportsVision("custom-vision") {
		t.Error("configured vision model should support vision")
	}
	if p.SupportsVision("gpt-3.5-turbo") {
		t.Error("gpt-3.5-turbo should not support vision")
	}
}
