// Package memory provides durable conversation summaries: periodic
// condensation of transcript history into append-only summary records
// consumed as extra context by later requests.
package memory

import (
	"context"
	"time"
)

// Summary is a condensed digest of prior conversation turns.
// Summaries are append-only and never mutated once created.
type Summary struct {
	Content string `json:"content"`

	// SourceTurnCount is the total non-system turn count at the moment
	// the summary was created.
	SourceTurnCount int `json:"source_turn_count"`

	CreatedAt time.Time `json:"created_at"`
}

// Store manages summary records per session.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds a summary to the session's records.
	Append(ctx context.Context, sessionID string, s Summary) error

	// Recent returns the n most recent summaries for a session, oldest
	// first. If fewer than n exist, all are returned.
	Recent(ctx context.Context, sessionID string, n int) ([]Summary, error)
}
