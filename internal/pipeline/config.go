package pipeline

import (
	"github.com/calmahq/calma/internal/memory"
	"github.com/calmahq/calma/internal/notify"
	"github.com/calmahq/calma/internal/safety"
)

const (
	defaultCrisisMessage = "It sounds like you are going through something very " +
		"serious right now. You deserve immediate support from a real person. " +
		"Please reach out to a crisis line or emergency services in your area " +
		"right away. You are not alone."

	defaultErrorMessage = "I'm having trouble responding right now. " +
		"Please try again in a moment."

	defaultSystemPrompt = "You are a warm, supportive companion. Listen " +
		"carefully, validate feelings, and respond with empathy. Never give " +
		"medical advice."
)

// Config holds pipeline settings.
type Config struct {
	// Provider is the active backend name. Must match a loaded provider
	// module (e.g. "openai").
	Provider string `yaml:"provider"`

	// Model is the primary model. Empty uses the provider's default.
	Model string `yaml:"model"`

	// UserName is the display name sent in emergency alerts.
	UserName string `yaml:"user_name"`

	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`

	// HistoryTurns bounds how many trailing turns go into the payload.
	HistoryTurns int `yaml:"history_turns"`

	// MaxSummaries bounds how many recent summaries go into the payload.
	MaxSummaries int `yaml:"max_summaries"`

	// Multimodal enables image attachments for vision-capable models.
	Multimodal bool `yaml:"multimodal"`

	// MaxImages is the per-request image budget.
	MaxImages int `yaml:"max_images"`

	// CrisisMessage is the fixed reply shown on a crisis verdict.
	// Never model-generated.
	CrisisMessage string `yaml:"crisis_message"`

	// ErrorMessage is the fixed reply stored when every candidate fails.
	ErrorMessage string `yaml:"error_message"`

	// Catalog seeds the per-provider model lists the fallback selector
	// filters. The refresh job overwrites entries from live listings.
	Catalog map[string][]string `yaml:"catalog"`

	// RefreshSchedule is the cron expression for catalog refresh.
	RefreshSchedule string `yaml:"refresh_schedule"`

	Safety     safety.Config           `yaml:"safety"`
	Summarizer memory.SummarizerConfig `yaml:"summarizer"`
	Notify     NotifyConfig            `yaml:"notify"`
}

// NotifyConfig is the notifier section of the pipeline config.
type NotifyConfig struct {
	// ContactEmail is the emergency contact. Empty disables alerting.
	ContactEmail string `yaml:"contact_email"`

	// EndpointURL is the alert webhook endpoint.
	EndpointURL string `yaml:"endpoint_url"`
}

func (c *Config) defaults() {
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.HistoryTurns <= 0 {
		c.HistoryTurns = 30
	}
	if c.MaxSummaries <= 0 {
		c.MaxSummaries = 3
	}
	if c.MaxImages <= 0 {
		c.MaxImages = 4
	}
	if c.CrisisMessage == "" {
		c.CrisisMessage = defaultCrisisMessage
	}
	if c.ErrorMessage == "" {
		c.ErrorMessage = defaultErrorMessage
	}
	if c.RefreshSchedule == "" {
		c.RefreshSchedule = "0 * * * *"
	}
	// The primary model is always a valid candidate even when no catalog
	// was configured; the refresh job replaces this seed at runtime.
	if c.Provider != "" && c.Model != "" && len(c.Catalog[c.Provider]) == 0 {
		if c.Catalog == nil {
			c.Catalog = map[string][]string{}
		}
		c.Catalog[c.Provider] = []string{c.Model}
	}
}

func (c *Config) notifyConfig() notify.Config {
	return notify.Config{EndpointURL: c.Notify.EndpointURL}
}
