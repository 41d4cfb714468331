package gateway

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/calmahq/calma/internal/pipeline"
	"github.com/calmahq/calma/internal/provider"
	"github.com/calmahq/calma/internal/transcript"
)

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	SessionID string      `json:"session_id"`
	Content   string      `json:"content"`
	Images    []ChatImage `json:"images,omitempty"`
}

// ChatImage is an inline base64 image attachment.
type ChatImage struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	State         pipeline.State `json:"state"`
	Content       string         `json:"content"`
	Model         string         `json:"model,omitempty"`
	FallbackDepth int            `json:"fallback_depth,omitempty"`
}

// handleChat processes one user turn through the pipeline.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.SessionID == "" || req.Content == "" {
			writeError(w, http.StatusBadRequest, "session_id and content are required")
			return
		}

		images := make([]provider.ImagePart, 0, len(req.Images))
		for _, img := range req.Images {
			data, err := base64.StdEncoding.DecodeString(img.Data)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid image encoding")
				return
			}
			images = append(images, provider.ImagePart{MediaType: img.MediaType, Data: data})
		}

		out, err := g.pipeline.ProcessTurn(r.Context(), req.SessionID, req.Content, images)
		if err != nil {
			g.logger.Error("processing turn failed", "session", req.SessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, ChatResponse{
			State:         out.State,
			Content:       out.Reply.Content,
			Model:         out.Model,
			FallbackDepth: out.FallbackDepth,
		})
	}
}

// TranscriptResponse is the JSON response for GET /api/transcript.
type TranscriptResponse struct {
	SessionID string            `json:"session_id"`
	Turns     []transcript.Turn `json:"turns"`
}

// handleTranscript returns the full transcript for ?session_id=.
func (g *Gateway) handleTranscript() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}

		turns, err := g.pipeline.Transcript(r.Context(), sessionID)
		if err != nil {
			g.logger.Error("reading transcript failed", "session", sessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, TranscriptResponse{SessionID: sessionID, Turns: turns})
	}
}

// handleHealth reports liveness.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleDiagnostics exposes the last raw provider failure. Development only;
// mounted behind the expose_diagnostics config flag.
func (g *Gateway) handleDiagnostics() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rec, ok := g.pipeline.LastDiagnostic()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"record": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"record": rec})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
