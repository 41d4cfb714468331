package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/calmahq/calma/internal/provider"
	"github.com/calmahq/calma/internal/transcript"
)

// turnStore implements transcript.Store backed by SQLite.
type turnStore struct {
	db *sql.DB
}

// Append adds a turn to the session's transcript.
func (s *turnStore) Append(ctx context.Context, sessionID string, t transcript.Turn) error {
	imagesJSON := []byte("[]")
	if len(t.Images) > 0 {
		var err error
		imagesJSON, err = json.Marshal(t.Images)
		if err != nil {
			return fmt.Errorf("sqlite: marshal images: %w", err)
		}
	}

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (session_id, seq, role, content, images, created_at)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM turns WHERE session_id = ?), 0) + 1,
		        ?, ?, ?, ?)`,
		sessionID, sessionID,
		string(t.Role), t.Content, string(imagesJSON), createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append turn: %w", err)
	}

	return nil
}

// Recent returns the n most recent turns for a session, oldest first.
func (s *turnStore) Recent(ctx context.Context, sessionID string, n int) ([]transcript.Turn, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, images, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	slices.Reverse(turns)
	return turns, nil
}

// All returns every turn for a session, oldest first.
func (s *turnStore) All(ctx context.Context, sessionID string) ([]transcript.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, images, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: all turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTurns(rows)
}

// NonSystemCount returns the number of stored turns whose role is not system.
func (s *turnStore) NonSystemCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM turns WHERE session_id = ? AND role != ?`,
		sessionID, string(provider.MessageRoleSystem),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count turns: %w", err)
	}
	return n, nil
}

func scanTurns(rows *sql.Rows) ([]transcript.Turn, error) {
	var turns []transcript.Turn
	for rows.Next() {
		var role, content, imagesJSON, createdAt string
		if err := rows.Scan(&role, &content, &imagesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan turn: %w", err)
		}

		t := transcript.Turn{
			Role:    provider.MessageRole(role),
			Content: content,
		}
		if imagesJSON != "" && imagesJSON != "[]" {
			if err := json.Unmarshal([]byte(imagesJSON), &t.Images); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal images: %w", err)
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			t.CreatedAt = ts
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: turn rows: %w", err)
	}
	return turns, nil
}
