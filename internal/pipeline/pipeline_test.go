package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/calmahq/calma/internal/catalog"
	"github.com/calmahq/calma/internal/memory"
	"github.com/calmahq/calma/internal/notify"
	"github.com/calmahq/calma/internal/observability"
	"github.com/calmahq/calma/internal/provider"
	"github.com/calmahq/calma/internal/provider/providertest"
	"github.com/calmahq/calma/internal/safety"
	"github.com/calmahq/calma/internal/transcript"
)

// Requests are told apart by their token caps: the classifier asks for 10,
// the summarizer for 600, generation for the configured maximum.
const (
	classifyTokens  = 10
	summarizeTokens = 600
	generateTokens  = 1024
)

type env struct {
	pipeline *Pipeline
	mock     *providertest.MockProvider
	turns    transcript.Store
	notified *atomic.Int32
}

// newEnv builds a pipeline over a single mock provider with catalog
// [m1, m2] and primary model m1. complete handles generation requests;
// verdict is the classifier's answer.
func newEnv(t *testing.T, verdict string, complete func(req provider.CompletionRequest) (provider.CompletionResponse, error)) *env {
	t.Helper()

	mock := &providertest.MockProvider{}
	mock.CompleteFunc = func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
		switch req.MaxTokens {
		case classifyTokens:
			return provider.CompletionResponse{Content: verdict}, nil
		case summarizeTokens:
			return provider.CompletionResponse{Content: "summary"}, nil
		default:
			return complete(req)
		}
	}

	var notified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		notified.Add(1)
	}))
	t.Cleanup(srv.Close)

	turns := transcript.NewMemStore()
	summaries := memory.NewMemStore()

	config := Config{Provider: "mock", Model: "m1", UserName: "Dana"}
	config.defaults()

	p := NewPipeline(config, Deps{
		Provider:   mock,
		Classifier: safety.NewClassifier(mock, safety.Config{}, nil),
		Notifier: notify.NewNotifier(notify.Config{EndpointURL: srv.URL},
			notify.Contact{Email: "ec@example.com"}, notify.NewMemStateStore(), nil),
		Summarizer:  memory.NewSummarizer(mock, turns, summaries, memory.SummarizerConfig{}, nil),
		Catalog:     catalog.New(map[string][]string{"mock": {"m1", "m2"}}),
		Transcript:  turns,
		Summaries:   summaries,
		Diagnostics: provider.NewDiagnostics(),
	})

	return &env{pipeline: p, mock: mock, turns: turns, notified: &notified}
}

// generationCalls filters out classifier and summarizer traffic.
func (e *env) generationCalls() []provider.CompletionRequest {
	var out []provider.CompletionRequest
	for _, req := range e.mock.Calls() {
		if req.MaxTokens == generateTokens {
			out = append(out, req)
		}
	}
	return out
}

func TestProcessTurn_SafeTurnDelivered(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "SAFE", func(req provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{Content: "Capisco, dimmi di più."}, nil
	})

	out, err := e.pipeline.ProcessTurn(context.Background(), "s1", "Sono stanco oggi", nil)
	if err != nil {
		t.Fatal(err)
	}
	e.pipeline.Wait()

	if out.State != StateDelivered {
		t.Errorf("State = %s, want %s", out.State, StateDelivered)
	}
	if out.Model != "m1" || out.FallbackDepth != 0 {
		t.Errorf("Model = %q depth = %d, want m1 / 0", out.Model, out.FallbackDepth)
	}
	if got := len(e.generationCalls()); got != 1 {
		t.Errorf("generation calls = %d, want 1", got)
	}
	if got := e.notified.Load(); got != 0 {
		t.Errorf("notifier called %d times, want 0", got)
	}

	all, _ := e.turns.All(context.Background(), "s1")
	if len(all) != 2 || all[1].Role != provider.MessageRoleAssistant {
		t.Fatalf("transcript = %+v, want user turn + assistant turn", all)
	}
	if all[1].Content != "Capisco, dimmi di più." {
		t.Errorf("assistant content = %q", all[1].Content)
	}
}

func TestProcessTurn_CrisisBlocksGeneration(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "CRISIS", func(req provider.CompletionRequest) (provider.CompletionResponse, error) {
		t.Error("generation must never run for a crisis turn")
		return provider.CompletionResponse{}, nil
	})

	out, err := e.pipeline.ProcessTurn(context.Background(), "s1", "I want to end it all", nil)
	if err != nil {
		t.Fatal(err)
	}
	e.pipeline.Wait()

	if out.State != StateBlocked {
		t.Errorf("State = %s, want %s", out.State, StateBlocked)
	}
	if out.Reply.Content != defaultCrisisMessage {
		t.Errorf("crisis reply = %q, want the fixed message", out.Reply.Content)
	}
	if got := e.notified.Load(); got != 1 {
		t.Errorf("notifier called %d times, want 1", got)
	}

	all, _ := e.turns.All(context.Background(), "s1")
	if len(all) != 2 || all[1].Content != defaultCrisisMessage {
		t.Fatalf("transcript = %+v, want user turn + fixed crisis turn", all)
	}
}

func TestProcessTurn_FallbackAfterRetry(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "SAFE", func(req provider.CompletionRequest) (provider.CompletionResponse, error) {
		if req.Model == "m1" {
			return provider.CompletionResponse{}, &provider.HTTPError{Provider: "mock", Status: 500, Body: []byte("boom")}
		}
		return provider.CompletionResponse{Content: "from-m2"}, nil
	})

	out, err := e.pipeline.ProcessTurn(context.Background(), "s1", "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	e.pipeline.Wait()

	if out.State != StateDelivered {
		t.Fatalf("State = %s, want %s", out.State, StateDelivered)
	}
	if out.Model != "m2" || out.FallbackDepth != 1 {
		t.Errorf("Model = %q depth = %d, want m2 / 1", out.Model, out.FallbackDepth)
	}
	if out.Reply.Content != "from-m2" {
		t.Errorf("reply = %q, want from-m2", out.Reply.Content)
	}

	// Primary with images, primary stripped, then the single fallback.
	calls := e.generationCalls()
	if len(calls) != 3 {
		t.Fatalf("generation calls = %d, want 3", len(calls))
	}
	if calls[0].Model != "m1" || calls[1].Model != "m1" || calls[2].Model != "m2" {
		t.Errorf("call models = %s %s %s, want m1 m1 m2", calls[0].Model, calls[1].Model, calls[2].Model)
	}
}

func TestProcessTurn_ExhaustedStoresGenericError(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "SAFE", func(req provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{}, &provider.HTTPError{Provider: "mock", Status: 503, Body: []byte("raw provider detail")}
	})

	out, err := e.pipeline.ProcessTurn(context.Background(), "s1", "hello", nil)
	if err != nil {
		t.Fatalf("no error may escape on exhaustion, got %v", err)
	}
	e.pipeline.Wait()

	if out.State != StateExhausted {
		t.Errorf("State = %s, want %s", out.State, StateExhausted)
	}

	all, _ := e.turns.All(context.Background(), "s1")
	if len(all) != 2 {
		t.Fatalf("transcript has %d turns, want 2", len(all))
	}
	if all[1].Content != defaultErrorMessage {
		t.Errorf("stored turn = %q, want the generic error message", all[1].Content)
	}
	if strings.Contains(all[1].Content, "raw provider detail") {
		t.Error("raw provider error leaked into the transcript")
	}

	rec, ok := e.pipeline.LastDiagnostic()
	if !ok {
		t.Fatal("diagnostics slot is empty")
	}
	if !strings.Contains(rec.Detail, "raw provider detail") {
		t.Errorf("diagnostics detail = %q, want the raw body retained", rec.Detail)
	}
}

func TestProcessTurn_SummarizerFiresOnTurnBoundaries(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "SAFE", func(req provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{Content: "reply"}, nil
	})

	// Each turn stores a user and an assistant message, so the non-system
	// count crosses 12, 24 and 36 on the 6th, 12th and 18th turn.
	for i := 0; i < 18; i++ {
		if _, err := e.pipeline.ProcessTurn(context.Background(), "s1", "ciao", nil); err != nil {
			t.Fatal(err)
		}
		e.pipeline.Wait()
	}

	var summaryCalls int
	for _, req := range e.mock.Calls() {
		if req.MaxTokens == summarizeTokens {
			summaryCalls++
		}
	}
	if summaryCalls != 3 {
		t.Errorf("summarization calls = %d, want 3", summaryCalls)
	}
}

func TestProcessTurn_RetryStripsImages(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "SAFE", nil)
	e.mock.SupportsVisionFunc = func(string) bool { return true }

	var fails int
	e.mock.CompleteFunc = func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
		if req.MaxTokens == classifyTokens {
			return provider.CompletionResponse{Content: "SAFE"}, nil
		}
		if fails == 0 {
			fails++
			return provider.CompletionResponse{}, &provider.HTTPError{Provider: "mock", Status: 400, Body: []byte("images rejected")}
		}
		return provider.CompletionResponse{Content: "ok"}, nil
	}
	e.pipeline.config.Multimodal = true

	img := []provider.ImagePart{{MediaType: "image/jpeg", Data: []byte{0xFF}}}
	out, err := e.pipeline.ProcessTurn(context.Background(), "s1", "look at this", img)
	if err != nil {
		t.Fatal(err)
	}
	e.pipeline.Wait()

	if out.State != StateDelivered || out.FallbackDepth != 0 {
		t.Fatalf("outcome = %+v, want delivered on the stripped retry", out)
	}

	calls := e.generationCalls()
	if len(calls) != 2 {
		t.Fatalf("generation calls = %d, want 2", len(calls))
	}
	if !payloadHasImages(calls[0]) {
		t.Error("first attempt should carry the image")
	}
	if payloadHasImages(calls[1]) {
		t.Error("retry must strip images from the payload")
	}
}

func TestProcessTurn_PayloadIncludesSummaries(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "SAFE", func(req provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{Content: "reply"}, nil
	})

	e.pipeline.deps.Summaries.Append(context.Background(), "s1", memory.Summary{Content: "User has been anxious about work."})

	if _, err := e.pipeline.ProcessTurn(context.Background(), "s1", "ciao", nil); err != nil {
		t.Fatal(err)
	}
	e.pipeline.Wait()

	calls := e.generationCalls()
	if len(calls) != 1 {
		t.Fatalf("generation calls = %d, want 1", len(calls))
	}

	var found bool
	for _, msg := range calls[0].Messages {
		if msg.Role == provider.MessageRoleSystem && strings.Contains(msg.Content, "anxious about work") {
			found = true
		}
	}
	if !found {
		t.Error("payload is missing the stored summary context")
	}
}

func TestProcessTurn_ImageBudgetCapsSingleTurn(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "SAFE", func(req provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{Content: "ok"}, nil
	})
	e.mock.SupportsVisionFunc = func(string) bool { return true }
	e.pipeline.config.Multimodal = true
	e.pipeline.config.MaxImages = 1

	imgs := []provider.ImagePart{
		{MediaType: "image/jpeg", Data: []byte{1}},
		{MediaType: "image/jpeg", Data: []byte{2}},
		{MediaType: "image/jpeg", Data: []byte{3}},
	}
	if _, err := e.pipeline.ProcessTurn(context.Background(), "s1", "three photos", imgs); err != nil {
		t.Fatal(err)
	}
	e.pipeline.Wait()

	calls := e.generationCalls()
	if len(calls) != 1 {
		t.Fatalf("generation calls = %d, want 1", len(calls))
	}
	if got := payloadImageCount(calls[0]); got != 1 {
		t.Errorf("payload carries %d images, want 1", got)
	}
}

func TestProcessTurn_ImageBudgetPrefersRecentTurns(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "SAFE", func(req provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{Content: "ok"}, nil
	})
	e.mock.SupportsVisionFunc = func(string) bool { return true }
	e.pipeline.config.Multimodal = true
	e.pipeline.config.MaxImages = 3

	pair := []provider.ImagePart{
		{MediaType: "image/jpeg", Data: []byte{1}},
		{MediaType: "image/jpeg", Data: []byte{2}},
	}
	if _, err := e.pipeline.ProcessTurn(context.Background(), "s1", "first pair", pair); err != nil {
		t.Fatal(err)
	}
	e.pipeline.Wait()
	if _, err := e.pipeline.ProcessTurn(context.Background(), "s1", "second pair", pair); err != nil {
		t.Fatal(err)
	}
	e.pipeline.Wait()

	calls := e.generationCalls()
	if len(calls) != 2 {
		t.Fatalf("generation calls = %d, want 2", len(calls))
	}
	second := calls[1]
	if got := payloadImageCount(second); got != 3 {
		t.Errorf("payload carries %d images, want 3", got)
	}
	last := second.Messages[len(second.Messages)-1]
	if len(last.Images) != 2 {
		t.Errorf("newest turn carries %d images, want its full 2", len(last.Images))
	}
}

func TestProcessTurn_CountsClassifierCacheHits(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "SAFE", func(req provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{Content: "reply"}, nil
	})
	metrics := observability.NewMetrics("calma")
	e.pipeline.deps.Metrics = metrics

	// Identical windows in two sessions: the second verdict comes from
	// the cache.
	for _, session := range []string{"a", "b"} {
		if _, err := e.pipeline.ProcessTurn(context.Background(), session, "ciao", nil); err != nil {
			t.Fatal(err)
		}
		e.pipeline.Wait()
	}

	body := scrapeMetrics(t, metrics)
	if !strings.Contains(body, "calma_classifier_cache_hits_total 1") {
		t.Errorf("cache hit counter not at 1:\n%s", body)
	}
}

func TestProcessTurn_CountsDeliveredAlerts(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "CRISIS", func(req provider.CompletionRequest) (provider.CompletionResponse, error) {
		t.Error("generation must never run for a crisis turn")
		return provider.CompletionResponse{}, nil
	})
	metrics := observability.NewMetrics("calma")
	e.pipeline.deps.Metrics = metrics

	if _, err := e.pipeline.ProcessTurn(context.Background(), "s1", "I want to end it all", nil); err != nil {
		t.Fatal(err)
	}
	e.pipeline.Wait()

	body := scrapeMetrics(t, metrics)
	if !strings.Contains(body, "calma_alerts_sent_total 1") {
		t.Errorf("alert counter not at 1:\n%s", body)
	}
}

func TestProcessTurn_CountsWrittenSummaries(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "SAFE", func(req provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{Content: "reply"}, nil
	})
	metrics := observability.NewMetrics("calma")
	e.pipeline.deps.Metrics = metrics

	// Six turns store twelve non-system messages, crossing one summary
	// boundary.
	for i := 0; i < 6; i++ {
		if _, err := e.pipeline.ProcessTurn(context.Background(), "s1", "ciao", nil); err != nil {
			t.Fatal(err)
		}
		e.pipeline.Wait()
	}

	body := scrapeMetrics(t, metrics)
	if !strings.Contains(body, "calma_summaries_written_total 1") {
		t.Errorf("summary counter not at 1:\n%s", body)
	}
}

func scrapeMetrics(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func payloadHasImages(req provider.CompletionRequest) bool {
	return payloadImageCount(req) > 0
}

func payloadImageCount(req provider.CompletionRequest) int {
	n := 0
	for _, msg := range req.Messages {
		n += len(msg.Images)
	}
	return n
}
