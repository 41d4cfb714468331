package anthropic

import (
	"encoding/base64"

	"github.com/calmahq/calma/internal/provider"
)

// --- Anthropic Messages API types (unexported, serialization only) ---

type messagesRequest struct {
	Model       string       `json:"model"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature *float64     `json:"temperature,omitempty"`
	Stream      bool         `json:"stream"`
}

type apiMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Model   string         `json:"model"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// --- Converter functions ---

// toRequest transforms a CompletionRequest into the Messages API shape.
// System messages are extracted from the message list into the dedicated
// system field; the API does not accept them inline.
func toRequest(req provider.CompletionRequest, cfg *Config) messagesRequest {
	out := messagesRequest{
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	}

	if req.Model != "" {
		out.Model = req.Model
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	switch {
	case req.Temperature != nil:
		out.Temperature = req.Temperature
	case cfg.Temperature != nil:
		out.Temperature = cfg.Temperature
	}

	for _, m := range req.Messages {
		if m.Role == provider.MessageRoleSystem {
			if out.System != "" {
				out.System += "\n\n"
			}
			out.System += m.Content
			continue
		}

		blocks := []contentBlock{{Type: "text", Text: m.Content}}
		for _, img := range m.Images {
			blocks = append(blocks, contentBlock{
				Type: "image",
				Source: &imageSource{
					Type:      "base64",
					MediaType: img.MediaType,
					Data:      base64.StdEncoding.EncodeToString(img.Data),
				},
			})
		}
		out.Messages = append(out.Messages, apiMessage{Role: string(m.Role), Content: blocks})
	}

	return out
}

// fromResponse converts a Messages API response, concatenating text blocks.
func fromResponse(resp *messagesResponse) provider.CompletionResponse {
	var cr provider.CompletionResponse
	for _, block := range resp.Content {
		if block.Type == "text" {
			cr.Content += block.Text
		}
	}
	cr.Model = resp.Model
	cr.Usage = provider.TokenUsage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	return cr
}
