package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// serverConfigFile mirrors the top-level structure of a gateway server
// config file: a map of server name to its configuration, the same
// "keyed by name, name not itself a JSON field" shape the teacher's
// mcp.json uses.
type serverConfigFile struct {
	Servers map[string]ServerConfig `json:"servers"`
}

// LoadServerConfigFile reads and parses a gateway server config file from
// path, tagging every resulting entry with source. The Name field of
// each ServerConfig is populated from the map key, not from any JSON
// field within it.
func LoadServerConfigFile(path string, source Source) ([]ResolvedServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read server config %q: %w", path, err)
	}

	var file serverConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse server config %q: %w", path, err)
	}

	out := make([]ResolvedServerConfig, 0, len(file.Servers))
	for name, cfg := range file.Servers {
		cfg.Name = name
		cfg.Source = source
		out = append(out, ResolvedServerConfig{Name: name, Source: source, Config: cfg})
	}
	return out, nil
}
