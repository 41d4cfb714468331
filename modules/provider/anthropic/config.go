package anthropic

import (
	"fmt"
	"time"
)

// apiVersion is the anthropic-version header value.
const apiVersion = "2023-06-01"

// Config holds the configuration for the Anthropic provider module.
type Config struct {
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`

	// ProxyBaseURL routes requests through a keyless gateway. When set,
	// the request carries an x-provider header instead of an api key.
	ProxyBaseURL string `yaml:"proxy_base_url"`

	Timeout        string `yaml:"timeout"`
	RequestTimeout string `yaml:"request_timeout"`

	// VisionModels extends the built-in list of models that accept images.
	VisionModels []string `yaml:"vision_models"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.anthropic.com/v1"
	}
	if c.MaxTokens <= 0 {
		// The Messages API requires max_tokens on every request.
		c.MaxTokens = 1024
	}
	if c.Timeout == "" {
		c.Timeout = "300s"
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = "120s"
	}
}

func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 300 * time.Second
	}
	return d
}

func (c *Config) parsedRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

func (c *Config) validateTimeouts() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("provider.anthropic: invalid timeout %q: %w", c.Timeout, err)
	}
	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("provider.anthropic: invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	return nil
}

// knownVisionModels lists models that accept image input.
var knownVisionModels = map[string]bool{
	"claude-3-5-haiku-latest":  true,
	"claude-3-5-sonnet-latest": true,
	"claude-3-7-sonnet-latest": true,
	"claude-sonnet-4-0":        true,
	"claude-opus-4-0":          true,
}
