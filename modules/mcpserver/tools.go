package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/calmahq/calma/internal/pipeline"
)

// tools binds the MCP tool handlers to a pipeline.
type tools struct {
	pipeline *pipeline.Pipeline
}

func registerTools(s *server.MCPServer, p *pipeline.Pipeline) {
	th := &tools{pipeline: p}

	s.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a user message into a conversation session. The reply goes through safety classification and model fallback before delivery."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session identifier")),
		mcp.WithString("content", mcp.Required(), mcp.Description("The user message text")),
	), th.handleSendMessage)

	s.AddTool(mcp.NewTool("get_transcript",
		mcp.WithDescription("Read the stored transcript of a session, oldest turn first."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session identifier")),
		mcp.WithNumber("limit", mcp.Description("Return only the last N turns (default: all)")),
	), th.handleGetTranscript)
}

func (th *tools) handleSendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := th.pipeline.ProcessTurn(ctx, sessionID, content, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("process turn: %v", err)), nil
	}

	payload := map[string]any{
		"state":   string(outcome.State),
		"content": outcome.Reply.Content,
	}
	if outcome.Model != "" {
		payload["model"] = outcome.Model
	}
	if outcome.FallbackDepth > 0 {
		payload["fallback_depth"] = outcome.FallbackDepth
	}

	b, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func (th *tools) handleGetTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	turns, err := th.pipeline.Transcript(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read transcript: %v", err)), nil
	}

	if v, ok := req.GetArguments()["limit"].(float64); ok && v > 0 && int(v) < len(turns) {
		turns = turns[len(turns)-int(v):]
	}

	type turnPayload struct {
		Role      string    `json:"role"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at,omitzero"`
	}
	payload := make([]turnPayload, 0, len(turns))
	for _, turn := range turns {
		payload = append(payload, turnPayload{
			Role:      string(turn.Role),
			Content:   turn.Content,
			CreatedAt: turn.CreatedAt,
		})
	}

	b, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}
