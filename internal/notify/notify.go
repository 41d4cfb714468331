// Package notify sends emergency-contact alerts when a crisis message is
// detected, rate limited to one alert per contact per day.
package notify

import (
	"context"
	"time"
)

// Contact is the emergency contact configured for a user. A user without a
// contact simply never triggers an alert.
type Contact struct {
	Email string
}

// StateStore persists the last successful alert time per contact so the
// cooldown survives restarts.
type StateStore interface {
	// LastSentAt returns the time of the last successful alert for the
	// contact, or the zero time if none was ever sent.
	LastSentAt(ctx context.Context, email string) (time.Time, error)

	// SetLastSentAt records a successful alert delivery.
	SetLastSentAt(ctx context.Context, email string, at time.Time) error
}
