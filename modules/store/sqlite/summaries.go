package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/calmahq/calma/internal/memory"
)

// summaryStore implements memory.Store backed by SQLite.
type summaryStore struct {
	db *sql.DB
}

// Append adds a summary to the session's records.
func (s *summaryStore) Append(ctx context.Context, sessionID string, sum memory.Summary) error {
	createdAt := sum.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (session_id, seq, content, source_turn_count, created_at)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM summaries WHERE session_id = ?), 0) + 1,
		        ?, ?, ?)`,
		sessionID, sessionID,
		sum.Content, sum.SourceTurnCount, createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append summary: %w", err)
	}

	return nil
}

// Recent returns the n most recent summaries for a session, oldest first.
func (s *summaryStore) Recent(ctx context.Context, sessionID string, n int) ([]memory.Summary, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content, source_turn_count, created_at
		FROM summaries
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sums []memory.Summary
	for rows.Next() {
		var sum memory.Summary
		var createdAt string
		if err := rows.Scan(&sum.Content, &sum.SourceTurnCount, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan summary: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			sum.CreatedAt = ts
		}
		sums = append(sums, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: summary rows: %w", err)
	}

	slices.Reverse(sums)
	return sums, nil
}
