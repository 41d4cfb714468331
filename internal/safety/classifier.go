// Package safety implements the crisis gate: a single-purpose classifier
// that labels a recent conversation window as safe or crisis, backed by a
// capacity-bounded verdict cache.
package safety

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/calmahq/calma/internal/provider"
	"github.com/calmahq/calma/internal/transcript"
)

// Config tunes the classifier. Defaults match the production setup:
// a short, deterministic two-token classification call.
type Config struct {
	// WindowTurns is how many trailing turns the classifier sees.
	// The classifier never receives the full transcript.
	WindowTurns int `yaml:"window_turns"`

	// CrisisToken and SafeToken are the two legal classifier outputs.
	CrisisToken string `yaml:"crisis_token"`
	SafeToken   string `yaml:"safe_token"`

	// Model overrides the provider's default model for classification.
	Model string `yaml:"model"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// CacheCapacity bounds the verdict cache; EvictBatch entries are
	// dropped, oldest first, when the cap is reached.
	CacheCapacity int `yaml:"cache_capacity"`
	EvictBatch    int `yaml:"evict_batch"`
}

// Defaults fills zero-valued fields with the production defaults.
func (c *Config) Defaults() {
	if c.WindowTurns <= 0 {
		c.WindowTurns = 6
	}
	if c.CrisisToken == "" {
		c.CrisisToken = "CRISIS"
	}
	if c.SafeToken == "" {
		c.SafeToken = "SAFE"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.1
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 10
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = defaultCacheCapacity
	}
	if c.EvictBatch <= 0 {
		c.EvictBatch = defaultEvictBatch
	}
}

const classifierPrompt = `You are a safety triage classifier for a support
conversation. Read the excerpt below and decide whether the most recent user
message signals imminent risk of self-harm or suicide.

Respond with exactly one word: %s if it does, %s otherwise.

Excerpt:
%s`

// Classifier labels candidate text as crisis or safe. It is fail-open:
// any classifier failure is treated as not-crisis, so a transient network
// error never blocks a benign conversation.
type Classifier struct {
	provider provider.Provider
	config   Config
	cache    *verdictCache
	logger   *slog.Logger
}

// NewClassifier creates a Classifier over the given provider.
func NewClassifier(p provider.Provider, cfg Config, logger *slog.Logger) *Classifier {
	cfg.Defaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{
		provider: p,
		config:   cfg,
		cache:    newVerdictCache(cfg.CacheCapacity, cfg.EvictBatch),
		logger:   logger,
	}
}

// WindowTurns returns the configured classification window size.
func (c *Classifier) WindowTurns() int {
	return c.config.WindowTurns
}

// Classify labels the candidate text and reports whether the verdict came
// from the cache. Cached verdicts are returned without any network call;
// otherwise one completion is issued and the verdict is cached. The response
// is crisis iff it contains the crisis token, case-insensitively. Anything
// else, including call failure, is safe.
func (c *Classifier) Classify(ctx context.Context, candidate string) (crisis, cached bool) {
	if verdict, ok := c.cache.get(candidate); ok {
		return verdict, true
	}

	temp := c.config.Temperature
	resp, err := c.provider.Complete(ctx, provider.CompletionRequest{
		Model: c.config.Model,
		Messages: []provider.Message{
			{
				Role:    provider.MessageRoleUser,
				Content: fmt.Sprintf(classifierPrompt, c.config.CrisisToken, c.config.SafeToken, candidate),
			},
		},
		Temperature: &temp,
		MaxTokens:   c.config.MaxTokens,
	})
	if err != nil {
		// Fail open: a classification failure must never block the
		// conversation. The verdict is not cached.
		c.logger.Warn("classification failed, treating as safe", "error", err)
		return false, false
	}

	verdict := strings.Contains(
		strings.ToUpper(resp.Content),
		strings.ToUpper(c.config.CrisisToken),
	)
	c.cache.put(candidate, verdict)
	return verdict, false
}

// RenderWindow formats the trailing turns of a transcript into the
// candidate text the classifier sees: role-prefixed lines, most recent
// user-authored content last.
func RenderWindow(turns []transcript.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		if t.Role == provider.MessageRoleSystem {
			continue
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}
