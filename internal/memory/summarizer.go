package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/calmahq/calma/internal/provider"
	"github.com/calmahq/calma/internal/transcript"
)

// SummarizerConfig tunes the periodic summarization pass.
type SummarizerConfig struct {
	// Every is the non-system turn interval between summaries.
	// A summary fires iff the count is an exact multiple of Every.
	Every int `yaml:"every"`

	// Window is the maximum number of trailing non-system turns included
	// in the summarization prompt.
	Window int `yaml:"window"`

	// Model overrides the provider's default model for summarization.
	Model string `yaml:"model"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

func (c *SummarizerConfig) defaults() {
	if c.Every <= 0 {
		c.Every = 12
	}
	if c.Window <= 0 {
		c.Window = 60
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 600
	}
}

const summaryPrompt = `Condense the following conversation between a user and
a supportive assistant into a short factual summary. Keep the user's stated
feelings, recurring themes, and any commitments made. Write in the third
person, at most one paragraph.

Conversation:
%s

Summary:`

// Summarizer periodically condenses conversation history into durable
// summary records. Summarization is best-effort: failures are logged and
// never block the turn that triggered them.
type Summarizer struct {
	provider   provider.Provider
	transcript transcript.Store
	store      Store
	config     SummarizerConfig
	logger     *slog.Logger

	mu   sync.Mutex
	done map[string]map[int]bool // sessionID → counts already summarized
}

// NewSummarizer creates a Summarizer over the given provider and stores.
func NewSummarizer(p provider.Provider, ts transcript.Store, ss Store, cfg SummarizerConfig, logger *slog.Logger) *Summarizer {
	cfg.defaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Summarizer{
		provider:   p,
		transcript: ts,
		store:      ss,
		config:     cfg,
		logger:     logger,
		done:       make(map[string]map[int]bool),
	}
}

// MaybeSummarize checks the trigger condition and, when met, condenses the
// trailing conversation window into a new summary record, reporting whether
// one was written. The condition is exact: the non-system turn count must be
// a positive multiple of Every, and the same count never triggers twice.
func (s *Summarizer) MaybeSummarize(ctx context.Context, sessionID string) bool {
	count, err := s.transcript.NonSystemCount(ctx, sessionID)
	if err != nil {
		s.logger.Warn("summarizer: counting turns failed", "session", sessionID, "error", err)
		return false
	}

	if count == 0 || count%s.config.Every != 0 {
		return false
	}
	if !s.claim(sessionID, count) {
		return false
	}

	turns, err := s.transcript.Recent(ctx, sessionID, s.config.Window)
	if err != nil {
		s.logger.Warn("summarizer: reading transcript failed", "session", sessionID, "error", err)
		return false
	}

	temp := s.config.Temperature
	resp, err := s.provider.Complete(ctx, provider.CompletionRequest{
		Model: s.config.Model,
		Messages: []provider.Message{
			{Role: provider.MessageRoleUser, Content: fmt.Sprintf(summaryPrompt, renderTurns(turns))},
		},
		Temperature: &temp,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		s.logger.Warn("summarizer: completion failed", "session", sessionID, "error", err)
		return false
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		s.logger.Warn("summarizer: empty summary discarded", "session", sessionID)
		return false
	}

	sum := Summary{
		Content:         content,
		SourceTurnCount: count,
		CreatedAt:       time.Now(),
	}
	if err := s.store.Append(ctx, sessionID, sum); err != nil {
		s.logger.Warn("summarizer: storing summary failed", "session", sessionID, "error", err)
		return false
	}

	s.logger.Info("conversation summarized", "session", sessionID, "turns", count)
	return true
}

// claim marks the given count as consumed for the session. Returns false if
// the count was already claimed, guaranteeing one summarization per boundary.
func (s *Summarizer) claim(sessionID string, count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, ok := s.done[sessionID]
	if !ok {
		counts = make(map[int]bool)
		s.done[sessionID] = counts
	}
	if counts[count] {
		return false
	}
	counts[count] = true
	return true
}

// renderTurns formats turns as role-prefixed lines for the prompt.
func renderTurns(turns []transcript.Turn) string {
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
