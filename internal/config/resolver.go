package config

import (
	"slices"
	"strings"
)

// namespaceRank orders module namespaces so that dependencies load before
// their consumers: telemetry first, then storage, then provider clients,
// then the pipeline that composes them, then the surfaces that call it.
var namespaceRank = map[string]int{
	"observability": 0,
	"store":         1,
	"provider":      2,
	"pipeline":      3,
	"gateway":       4,
	"mcpserver":     5,
}

const defaultRank = 6

// rank returns the load-order rank for a module ID.
func rank(id string) int {
	ns, _, _ := strings.Cut(id, ".")
	if r, ok := namespaceRank[ns]; ok {
		return r
	}
	return defaultRank
}

// Resolve returns the module IDs from the configuration in load order.
// Modules are ordered by namespace rank, then alphabetically within a rank,
// so loading is deterministic across runs.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})
	return ids
}
