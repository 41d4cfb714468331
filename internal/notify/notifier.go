package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultCooldown = 24 * time.Hour
	sendTimeout     = 10 * time.Second
)

// Config holds notifier settings.
type Config struct {
	// EndpointURL is the alert delivery endpoint. Empty disables alerting.
	EndpointURL string

	// Cooldown is the minimum interval between alerts for the same
	// contact. Defaults to 24 hours.
	Cooldown time.Duration
}

// Defaults fills zero-valued fields.
func (c *Config) Defaults() {
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
}

// Notifier delivers crisis alerts to a user's emergency contact. It is
// strictly best-effort: every failure is swallowed after logging, because an
// alert problem must never disturb the conversation itself.
type Notifier struct {
	config  Config
	contact Contact
	state   StateStore
	client  *http.Client
	logger  *slog.Logger

	// mu is held across the whole check-send-record sequence so two
	// concurrent crisis turns cannot both pass the cooldown check.
	mu sync.Mutex

	now func() time.Time
}

// NewNotifier creates a notifier for a single user's emergency contact.
func NewNotifier(config Config, contact Contact, state StateStore, logger *slog.Logger) *Notifier {
	config.Defaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		config:  config,
		contact: contact,
		state:   state,
		client:  &http.Client{Timeout: sendTimeout},
		logger:  logger,
		now:     time.Now,
	}
}

type alertPayload struct {
	ToEmail  string `json:"toEmail"`
	UserName string `json:"userName"`
}

type alertResponse struct {
	Success *bool `json:"success"`
}

// NotifyIfNeeded sends an alert to the configured contact unless one was
// already sent within the cooldown window, and reports whether an alert was
// delivered. It never returns an error: a user with no contact is a no-op,
// and delivery failures are logged and dropped.
func (n *Notifier) NotifyIfNeeded(ctx context.Context, userName string) bool {
	if n.contact.Email == "" || n.config.EndpointURL == "" {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	last, err := n.state.LastSentAt(ctx, n.contact.Email)
	if err != nil {
		n.logger.Warn("alert state read failed", "error", err)
		return false
	}
	if !last.IsZero() && n.now().Sub(last) < n.config.Cooldown {
		n.logger.Debug("alert suppressed by cooldown", "contact", n.contact.Email, "last_sent", last)
		return false
	}

	if err := n.send(ctx, userName); err != nil {
		n.logger.Warn("alert delivery failed", "contact", n.contact.Email, "error", err)
		return false
	}

	if err := n.state.SetLastSentAt(ctx, n.contact.Email, n.now()); err != nil {
		n.logger.Warn("alert state write failed", "error", err)
		return true
	}
	n.logger.Info("emergency contact alerted", "contact", n.contact.Email)
	return true
}

func (n *Notifier) send(ctx context.Context, userName string) error {
	body, err := json.Marshal(alertPayload{ToEmail: n.contact.Email, UserName: userName})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("alert endpoint returned status %d", resp.StatusCode)
	}

	// A 2xx body may still carry an explicit failure flag. A missing or
	// unparseable body counts as success.
	var ar alertResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err == nil {
		if ar.Success != nil && !*ar.Success {
			return fmt.Errorf("alert endpoint reported failure")
		}
	}
	return nil
}
