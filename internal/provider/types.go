package provider

// MessageRole identifies the sender of a message in a conversation.
type MessageRole string

// MessageRole constants for conversation messages.
const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ImagePart is an image attached to a message. Clients encode it into
// their own wire format (data URL, base64 source block, and so on).
type ImagePart struct {
	// MediaType is the MIME type, e.g. "image/jpeg".
	MediaType string `json:"media_type"`

	// Data is the raw image bytes.
	Data []byte `json:"data"`
}

// Message represents a single message in a conversation window.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	Images  []ImagePart `json:"images,omitempty"`
}

// CompletionRequest is the input to a Provider.Complete call.
// Model overrides the provider's configured default, which is how the
// fallback loop retries alternate models on the same backend.
type CompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// CompletionResponse is the output of a Provider.Complete call.
type CompletionResponse struct {
	Content string     `json:"content"`
	Model   string     `json:"model,omitempty"`
	Usage   TokenUsage `json:"usage"`
}

// TokenUsage tracks token consumption for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
