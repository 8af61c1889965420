// Package catalog loads error categories and the default retry policy from a
// YAML file and applies them to a running engine.
//
// A catalog looks like:
//
//	default_policy:
//	  max_attempts: 4
//	  base_delay: PT2S
//	categories:
//	  - name: gpu_oom
//	    patterns: ["CUDA out of memory"]
//	    retryable: true
//	    policy: {max_attempts: 2, base_delay: 30s}
//	    insert_before: resource_exhausted
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/remediation"
)

// ErrCatalogNotFound is returned when the catalog file does not exist.
var ErrCatalogNotFound = errors.New("catalog file not found")

// Catalog is the parsed form of a catalog file.
type Catalog struct {
	DefaultPolicy *PolicySpec    `yaml:"default_policy,omitempty" json:"default_policy,omitempty"`
	Categories    []CategorySpec `yaml:"categories" json:"categories"`
}

// PolicySpec is a partial retry policy. Delays accept PT2S or 2s.
type PolicySpec struct {
	MaxAttempts       *int     `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	BaseDelay         string   `yaml:"base_delay,omitempty" json:"base_delay,omitempty"`
	MaxDelay          string   `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
	BackoffMultiplier *float64 `yaml:"backoff_multiplier,omitempty" json:"backoff_multiplier,omitempty"`
	JitterFactor      *float64 `yaml:"jitter_factor,omitempty" json:"jitter_factor,omitempty"`
}

// CategorySpec describes one error category. Retryable defaults to true.
type CategorySpec struct {
	Name            string      `yaml:"name" json:"name"`
	Patterns        []string    `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Codes           []string    `yaml:"codes,omitempty" json:"codes,omitempty"`
	Retryable       *bool       `yaml:"retryable,omitempty" json:"retryable,omitempty"`
	Policy          *PolicySpec `yaml:"policy,omitempty" json:"policy,omitempty"`
	DeadLetterAfter *int        `yaml:"dead_letter_after,omitempty" json:"dead_letter_after,omitempty"`
	Remediation     HookList    `yaml:"remediation,omitempty" json:"remediation,omitempty"`
	InsertBefore    string      `yaml:"insert_before,omitempty" json:"insert_before,omitempty"`
}

// HookList names one or more remediation hooks. It accepts a single name or a
// list in both YAML and JSON.
type HookList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HookList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "" {
			*h = nil
			return nil
		}
		*h = HookList{value.Value}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		*h = names
		return nil
	default:
		return fmt.Errorf("line %d: remediation must be a name or a list of names", value.Line)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HookList) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		if name == "" {
			*h = nil
		} else {
			*h = HookList{name}
		}
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("remediation must be a name or a list of names")
	}
	*h = names
	return nil
}

// Load reads and parses the catalog at path. Environment variables in the
// file are expanded.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCatalogNotFound
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(cat.Categories))
	for _, c := range cat.Categories {
		if seen[c.Name] {
			return nil, fmt.Errorf("catalog lists category %q twice", c.Name)
		}
		seen[c.Name] = true
	}
	return &cat, nil
}

// Override converts the spec to a core.PolicyOverride.
func (p *PolicySpec) Override() (*core.PolicyOverride, error) {
	if p == nil {
		return nil, nil
	}
	o := &core.PolicyOverride{
		MaxAttempts:       p.MaxAttempts,
		BackoffMultiplier: p.BackoffMultiplier,
		JitterFactor:      p.JitterFactor,
	}
	if p.BaseDelay != "" {
		d, err := core.ParsePolicyDuration(p.BaseDelay)
		if err != nil {
			return nil, fmt.Errorf("base_delay: %w", err)
		}
		o.BaseDelayMs = core.Int64Ptr(d.Milliseconds())
	}
	if p.MaxDelay != "" {
		d, err := core.ParsePolicyDuration(p.MaxDelay)
		if err != nil {
			return nil, fmt.Errorf("max_delay: %w", err)
		}
		o.MaxDelayMs = core.Int64Ptr(d.Milliseconds())
	}
	return o, nil
}

// Build turns the spec into a category, resolving remediation hooks by name.
func (c *CategorySpec) Build(hooks *remediation.Registry) (core.ErrorCategory, error) {
	patterns, err := core.CompilePatterns(c.Patterns...)
	if err != nil {
		return core.ErrorCategory{}, fmt.Errorf("category %q: %w", c.Name, err)
	}
	policy, err := c.Policy.Override()
	if err != nil {
		return core.ErrorCategory{}, fmt.Errorf("category %q: %w", c.Name, err)
	}

	cat := core.ErrorCategory{
		Name:            c.Name,
		Patterns:        patterns,
		Codes:           c.Codes,
		Retryable:       c.Retryable == nil || *c.Retryable,
		Policy:          policy,
		DeadLetterAfter: c.DeadLetterAfter,
	}

	if len(c.Remediation) > 0 {
		if hooks == nil {
			hooks = remediation.NewRegistry()
		}
		resolved := make([]core.Remediator, 0, len(c.Remediation))
		for _, name := range c.Remediation {
			hook, err := hooks.Lookup(name)
			if err != nil {
				return core.ErrorCategory{}, fmt.Errorf("category %q: %w", c.Name, err)
			}
			resolved = append(resolved, hook)
		}
		if len(resolved) == 1 {
			cat.Remediator = resolved[0]
		} else {
			cat.Remediator = remediation.Chain(resolved...)
		}
	}

	if err := cat.Validate(); err != nil {
		return core.ErrorCategory{}, err
	}
	return cat, nil
}
