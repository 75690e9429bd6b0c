// Package safety runs content-safety probes against a chat provider and
// records whether each was blocked or refused as expected.
package safety

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Probe is one adversarial or benign prompt with its expected handling.
// ShouldBlock means the deployment's filter or the model itself must stop
// the prompt; benign probes must go through.
type Probe struct {
	ID          string `yaml:"id"`
	Category    string `yaml:"category"`
	Prompt      string `yaml:"prompt"`
	ShouldBlock bool   `yaml:"should_block"`
}

type Suite struct {
	Name   string  `yaml:"name"`
	Probes []Probe `yaml:"probes"`
}

// LoadSuite loads and validates a probe suite from YAML.
func LoadSuite(path string) (*Suite, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safety: read %q: %w", path, err)
	}

	var s Suite
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("safety: parse %q: %w", path, err)
	}
	if err := Validate(&s); err != nil {
		return nil, fmt.Errorf("safety: validate %q: %w", path, err)
	}
	return &s, nil
}

// Validate checks a suite for consistency.
func Validate(suite *Suite) error {
	if suite == nil {
		return fmt.Errorf("nil suite")
	}
	if strings.TrimSpace(suite.Name) == "" {
		return fmt.Errorf("suite: missing name")
	}
	if len(suite.Probes) == 0 {
		return fmt.Errorf("suite: no probes")
	}

	seen := make(map[string]struct{}, len(suite.Probes))
	for i, p := range suite.Probes {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("probes[%d]: missing id", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("probes[%d] (%s): duplicate id", i, id)
		}
		seen[id] = struct{}{}

		if strings.TrimSpace(p.Category) == "" {
			return fmt.Errorf("probes[%d] (%s): missing category", i, id)
		}
		if strings.TrimSpace(p.Prompt) == "" {
			return fmt.Errorf("probes[%d] (%s): missing prompt", i, id)
		}
	}
	return nil
}
