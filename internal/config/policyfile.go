package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the raw top-level shape of the policy file:
// JSON or YAML, top-level keys servers/tools/limits/redaction, all
// optional. internal/policy.FromFile turns this into enforceable predicates.
type PolicyFile struct {
	Servers struct {
		Allowlist []string `json:"allowlist" yaml:"allowlist"`
		Denylist  []string `json:"denylist" yaml:"denylist"`
	} `json:"servers" yaml:"servers"`
	Tools struct {
		Allowlist []string `json:"allowlist" yaml:"allowlist"`
		Denylist  []string `json:"denylist" yaml:"denylist"`
	} `json:"tools" yaml:"tools"`
	Limits struct {
		MaxToolsPerServer int `json:"max_tools_per_server" yaml:"max_tools_per_server"`
		MaxOutputBytes    int `json:"max_output_bytes" yaml:"max_output_bytes"`
		MaxOutputTokens   int `json:"max_output_tokens" yaml:"max_output_tokens"`
	} `json:"limits" yaml:"limits"`
	Redaction struct {
		Patterns []string `json:"patterns" yaml:"patterns"`
	} `json:"redaction" yaml:"redaction"`
}

// LoadPolicyFile reads a JSON or YAML policy file, dispatching on the
// file extension. ".yaml"/".yml" parse as YAML; anything else (including
// no extension) parses as JSON.
func LoadPolicyFile(path string) (PolicyFile, error) {
	var pf PolicyFile

	data, err := os.ReadFile(path)
	if err != nil {
		return pf, fmt.Errorf("config: read policy file %q: %w", path, err)
	}

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return pf, fmt.Errorf("config: parse YAML policy file %q: %w", path, err)
		}
		return pf, nil
	}

	if err := json.Unmarshal(data, &pf); err != nil {
		return pf, fmt.Errorf("config: parse JSON policy file %q: %w", path, err)
	}
	return pf, nil
}
