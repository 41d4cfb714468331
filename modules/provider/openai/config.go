package openai

import (
	"fmt"
	"time"
)

// Config holds the configuration for the OpenAI provider module.
type Config struct {
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`

	// ProxyBaseURL routes requests through a keyless gateway. When set,
	// the request carries an x-provider header instead of a bearer key.
	ProxyBaseURL string `yaml:"proxy_base_url"`

	// Timeout is the hard client deadline for a whole response.
	// RequestTimeout is the per-call context deadline. Both are long:
	// generation latency is high and must not read as a hard failure.
	Timeout        string `yaml:"timeout"`
	RequestTimeout string `yaml:"request_timeout"`

	// VisionModels extends the built-in list of models that accept images.
	VisionModels []string `yaml:"vision_models"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Timeout == "" {
		c.Timeout = "300s"
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = "120s"
	}
}

// parsedTimeout returns the client timeout as a time.Duration.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 300 * time.Second
	}
	return d
}

// parsedRequestTimeout returns the per-call deadline as a time.Duration.
func (c *Config) parsedRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// validateTimeouts checks that both timeout strings are valid Go durations.
func (c *Config) validateTimeouts() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("provider.openai: invalid timeout %q: %w", c.Timeout, err)
	}
	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("provider.openai: invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	return nil
}

// knownVisionModels lists models that accept image input. Extended via the
// vision_models config key for models released after this build.
var knownVisionModels = map[string]bool{
	"gpt-4-turbo":  true,
	"gpt-4o":       true,
	"gpt-4o-mini":  true,
	"gpt-4.1":      true,
	"gpt-4.1-mini": true,
	"gpt-4.1-nano": true,
	"o1":           true,
	"o3":           true,
	"o4-mini":      true,
}
