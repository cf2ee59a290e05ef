// Package policy implements the pure predicates and limits applied on
// every tool lookup and call: server/tool allow-deny lists, output
// truncation, and secret redaction.
package policy

import (
	"path/filepath"

	"github.com/mcpgateway/gateway/internal/config"
)

const (
	defaultMaxToolsPerServer = 100
	defaultMaxOutputBytes    = 50_000
	defaultMaxOutputTokens   = 4000
)

// defaultRedactionPatterns is applied when the policy file supplies none
//.
var defaultRedactionPatterns = []string{
	`(?i)(api[_-]?key|token|password|secret)\s*[:=]\s*\S+`,
	`(?i)Bearer\s+\S+`,
	`sk-[A-Za-z0-9]{8,}`,
}

// Config is the enforceable, parsed form of a PolicyFile.
type Config struct {
	ServersAllowlist []string
	ServersDenylist  []string
	ToolsAllowlist   []string
	ToolsDenylist    []string

	MaxToolsPerServer int
	MaxOutputBytes    int
	MaxOutputTokens   int

	RedactionEnabled  bool
	RedactionPatterns []string
}

// Default returns the policy with no allow/deny lists and the spec
// default limits and redaction patterns.
func Default() Config {
	return Config{
		MaxToolsPerServer: defaultMaxToolsPerServer,
		MaxOutputBytes:    defaultMaxOutputBytes,
		MaxOutputTokens:   defaultMaxOutputTokens,
		RedactionEnabled:  true,
		RedactionPatterns: append([]string(nil), defaultRedactionPatterns...),
	}
}

// FromFile converts a loaded config.PolicyFile into a Config, filling in
// spec defaults for every omitted field.
func FromFile(pf config.PolicyFile) Config {
	c := Default()

	c.ServersAllowlist = pf.Servers.Allowlist
	c.ServersDenylist = pf.Servers.Denylist
	c.ToolsAllowlist = pf.Tools.Allowlist
	c.ToolsDenylist = pf.Tools.Denylist

	if pf.Limits.MaxToolsPerServer > 0 {
		c.MaxToolsPerServer = pf.Limits.MaxToolsPerServer
	}
	if pf.Limits.MaxOutputBytes > 0 {
		c.MaxOutputBytes = pf.Limits.MaxOutputBytes
	}
	if pf.Limits.MaxOutputTokens > 0 {
		c.MaxOutputTokens = pf.Limits.MaxOutputTokens
	}
	if len(pf.Redaction.Patterns) > 0 {
		c.RedactionPatterns = pf.Redaction.Patterns
	}
	return c
}

// globMatch reports whether name matches glob, using shell-style
// wildcards (*, ?, [set]) via path/filepath.Match — the stdlib's glob
// dialect is a verbatim match for the required syntax, so no third-party
// glob library is used here (see DESIGN.md).
func globMatch(glob, name string) bool {
	matched, err := filepath.Match(glob, name)
	if err != nil {
		// A malformed pattern never matches, it does not panic or block.
		return false
	}
	return matched
}

// matchesAny reports whether name matches any pattern in patterns: as a
// glob when matchAsGlob is set, by exact string comparison otherwise.
func matchesAny(patterns []string, name string, matchAsGlob bool) bool {
	for _, p := range patterns {
		if matchAsGlob {
			if globMatch(p, name) {
				return true
			}
		} else if p == name {
			return true
		}
	}
	return false
}

// ServerAllowed reports whether a server name passes policy: no allowlist
// configured or it matches (exact literal name), AND it matches no
// denylist entry (glob).
func (c Config) ServerAllowed(name string) bool {
	if len(c.ServersAllowlist) > 0 && !matchesAny(c.ServersAllowlist, name, false) {
		return false
	}
	if matchesAny(c.ServersDenylist, name, true) {
		return false
	}
	return true
}

// ToolAllowed reports whether a tool_id ("server::tool") passes policy:
// both allow and deny tool lists are glob patterns over the full
// tool_id.
func (c Config) ToolAllowed(toolID string) bool {
	if len(c.ToolsAllowlist) > 0 && !matchesAny(c.ToolsAllowlist, toolID, true) {
		return false
	}
	if matchesAny(c.ToolsDenylist, toolID, true) {
		return false
	}
	return true
}

// Allowed reports whether a tool from a given server passes both the
// server-level and the tool-level policy.
func (c Config) Allowed(serverName, toolID string) bool {
	return c.ServerAllowed(serverName) && c.ToolAllowed(toolID)
}
