package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// alertStore implements notify.StateStore backed by SQLite, so the 24h
// alert cooldown survives restarts.
type alertStore struct {
	db *sql.DB
}

// LastSentAt returns the time of the last successful alert for the contact,
// or the zero time if none was ever sent.
func (s *alertStore) LastSentAt(ctx context.Context, email string) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT last_sent_at FROM alert_state WHERE contact_email = ?", email,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: read alert state: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse alert timestamp %q: %w", raw, err)
	}
	return ts, nil
}

// SetLastSentAt records a successful alert delivery.
func (s *alertStore) SetLastSentAt(ctx context.Context, email string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_state (contact_email, last_sent_at) VALUES (?, ?)
		ON CONFLICT(contact_email) DO UPDATE SET last_sent_at = excluded.last_sent_at`,
		email, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: write alert state: %w", err)
	}
	return nil
}
