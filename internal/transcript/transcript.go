// Package transcript provides the conversation turn model and transcript
// storage interfaces with an in-memory implementation.
package transcript

import (
	"context"
	"time"

	"github.com/calmahq/calma/internal/provider"
)

// Turn is one message authored by user or assistant within a conversation.
// System prompts are synthesized by the pipeline at request time and are
// never persisted as turns.
type Turn struct {
	Role      provider.MessageRole `json:"role"`
	Content   string               `json:"content"`
	Images    []provider.ImagePart `json:"images,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// Store manages conversation transcripts, ordered by append time.
// Implementations must be safe for concurrent use. Turns are append-only;
// deletion is a host concern, not part of this core.
type Store interface {
	// Append adds a turn to the session's transcript.
	Append(ctx context.Context, sessionID string, t Turn) error

	// Recent returns the n most recent turns for a session, oldest first.
	// If fewer than n turns exist, all turns are returned.
	Recent(ctx context.Context, sessionID string, n int) ([]Turn, error)

	// All returns every turn for a session, oldest first.
	All(ctx context.Context, sessionID string) ([]Turn, error)

	// NonSystemCount returns the number of stored turns whose role is not
	// system. The summarizer's trigger condition is defined on this count.
	NonSystemCount(ctx context.Context, sessionID string) (int, error)
}
