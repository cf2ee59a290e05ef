package config

import (
	"fmt"
	"strings"
)

// toolIDSep is the canonical join between a server name and a tool name.
const toolIDSep = "::"

// MakeToolID joins a server name and a tool name into the canonical
// "{server}::{tool}" identifier.
func MakeToolID(server, tool string) string {
	return server + toolIDSep + tool
}

// ParseToolID splits a tool_id back into (server, tool). It returns an
// error if id does not contain the separator — tool names themselves
// must not contain "::", so ParseToolID(MakeToolID(server, tool)) ==
// (server, tool) for any server/tool pair without "::".
func ParseToolID(id string) (server, tool string, err error) {
	parts := strings.SplitN(id, toolIDSep, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("config: malformed tool id %q", id)
	}
	return parts[0], parts[1], nil
}
