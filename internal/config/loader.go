package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envExpr matches ${VAR} and ${VAR:-default} references in raw config text.
var envExpr = regexp.MustCompile(`\$\{(\w+)(:-([^}]*))?\}`)

// Load reads a YAML configuration file, substitutes environment variable
// references, and parses the result. A reference without a default must
// resolve from the environment; any that do not fail the load as a group.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, missing := substituteEnv(raw)
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: %s references undefined variables: %s",
			path, strings.Join(missing, ", "))
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// substituteEnv rewrites every ${VAR} and ${VAR:-default} reference and
// returns the names that resolved to nothing, deduplicated in order of
// first appearance. Unresolved references are left in place.
func substituteEnv(raw []byte) ([]byte, []string) {
	var missing []string
	seen := map[string]bool{}

	out := envExpr.ReplaceAllFunc(raw, func(ref []byte) []byte {
		groups := envExpr.FindSubmatch(ref)
		name := string(groups[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if len(groups[2]) > 0 {
			return groups[3]
		}

		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return ref
	})

	return out, missing
}
