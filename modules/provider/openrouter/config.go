package openrouter

import (
	"fmt"
	"time"
)

// Config holds the configuration for the OpenRouter provider module.
type Config struct {
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`

	// Referer and Title populate the optional HTTP-Referer and X-Title
	// headers OpenRouter uses for app attribution.
	Referer string `yaml:"referer"`
	Title   string `yaml:"title"`

	// ProxyBaseURL routes requests through a keyless gateway. When set,
	// the request carries an x-provider header instead of a bearer key.
	ProxyBaseURL string `yaml:"proxy_base_url"`

	Timeout        string `yaml:"timeout"`
	RequestTimeout string `yaml:"request_timeout"`

	// VisionModels lists models that accept images. OpenRouter serves an
	// open-ended model universe, so there is no useful built-in list.
	VisionModels []string `yaml:"vision_models"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://openrouter.ai/api/v1"
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
		return fmt.Errorf("provider.openrouter: invalid timeout %q: %w", c.Timeout, err)
	}
	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("provider.openrouter: invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	return nil
}
