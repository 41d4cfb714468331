package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/calmahq/calma/internal/catalog"
	"github.com/calmahq/calma/internal/memory"
	"github.com/calmahq/calma/internal/pipeline"
	"github.com/calmahq/calma/internal/provider"
	"github.com/calmahq/calma/internal/provider/providertest"
	"github.com/calmahq/calma/internal/safety"
	"github.com/calmahq/calma/internal/transcript"
)

func newTestTools(t *testing.T) *tools {
	t.Helper()

	mock := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
			if req.MaxTokens == 10 {
				return provider.CompletionResponse{Content: "SAFE"}, nil
			}
			return provider.CompletionResponse{Content: "hello there"}, nil
		},
	}

	turns := transcript.NewMemStore()
	summaries := memory.NewMemStore()

	config := pipeline.Config{Provider: "mock", Model: "m1"}
	p := pipeline.NewPipeline(config, pipeline.Deps{
		Provider:    mock,
		Classifier:  safety.NewClassifier(mock, safety.Config{}, nil),
		Summarizer:  memory.NewSummarizer(mock, turns, summaries, memory.SummarizerConfig{}, nil),
		Catalog:     catalog.New(map[string][]string{"mock": {"m1"}}),
		Transcript:  turns,
		Summaries:   summaries,
		Diagnostics: provider.NewDiagnostics(),
	})

	return &tools{pipeline: p}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()

	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestSendMessageTool(t *testing.T) {
	t.Parallel()

	th := newTestTools(t)

	res, err := th.handleSendMessage(context.Background(), callRequest(map[string]any{
		"session_id": "s1",
		"content":    "ciao",
	}))
	if err != nil {
		t.Fatal(err)
	}

	got := resultText(t, res)
	if !strings.Contains(got, `"state": "delivered"`) {
		t.Errorf("result = %s, want delivered state", got)
	}
	if !strings.Contains(got, "hello there") {
		t.Errorf("result = %s, want assistant content", got)
	}
}

func TestSendMessageTool_RequiresSessionID(t *testing.T) {
	t.Parallel()

	th := newTestTools(t)

	res, err := th.handleSendMessage(context.Background(), callRequest(map[string]any{
		"content": "no session",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("want error result for missing session_id")
	}
}

func TestGetTranscriptTool(t *testing.T) {
	t.Parallel()

	th := newTestTools(t)

	if _, err := th.handleSendMessage(context.Background(), callRequest(map[string]any{
		"session_id": "s1",
		"content":    "ciao",
	})); err != nil {
		t.Fatal(err)
	}

	res, err := th.handleGetTranscript(context.Background(), callRequest(map[string]any{
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatal(err)
	}

	got := resultText(t, res)
	if !strings.Contains(got, `"role": "user"`) || !strings.Contains(got, `"role": "assistant"`) {
		t.Errorf("transcript = %s, want both turns", got)
	}
}

func TestGetTranscriptTool_Limit(t *testing.T) {
	t.Parallel()

	th := newTestTools(t)

	for _, content := range []string{"one", "two"} {
		if _, err := th.handleSendMessage(context.Background(), callRequest(map[string]any{
			"session_id": "s1",
			"content":    content,
		})); err != nil {
			t.Fatal(err)
		}
	}

	res, err := th.handleGetTranscript(context.Background(), callRequest(map[string]any{
		"session_id": "s1",
		"limit":      float64(1),
	}))
	if err != nil {
		t.Fatal(err)
	}

	got := resultText(t, res)
	if strings.Contains(got, `"role": "user"`) {
		t.Errorf("transcript = %s, want only the last assistant turn", got)
	}
}
