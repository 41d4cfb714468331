// Package catalog maintains the per-provider model universe and produces
// the deterministic fallback candidate lists the pipeline retries on failure.
package catalog

import (
	"sync"
)

// Catalog holds the ordered model list per provider. Order is significant:
// fallback candidates are tried in catalog order. Safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	models map[string][]string
}

// New creates a Catalog seeded with the given provider → models mapping.
func New(initial map[string][]string) *Catalog {
	models := make(map[string][]string, len(initial))
	for name, list := range initial {
		models[name] = append([]string(nil), list...)
	}
	return &Catalog{models: models}
}

// Models returns the ordered model list for a provider.
func (c *Catalog) Models(providerName string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.models[providerName]...)
}

// SetModels replaces a provider's model list, preserving the given order.
func (c *Catalog) SetModels(providerName string, models []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[providerName] = append([]string(nil), models...)
}

// Fallbacks returns every catalog model for the provider except the current
// one, in catalog order. It is a plain exclusion filter: no scoring, no
// ranking, no randomization.
func (c *Catalog) Fallbacks(providerName, currentModel string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []string
	for _, m := range c.models[providerName] {
		if m != currentModel {
			out = append(out, m)
		}
	}
	return out
}
