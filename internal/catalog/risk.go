package catalog

import "strings"

// highRiskPatterns and lowRiskPatterns drive risk inference.
// High wins on tie, so it is checked first.
var highRiskPatterns = []string{
	"delete", "remove", "drop", "execute", "run", "write",
	"create", "update", "modify", "send", "post", "put",
}

var lowRiskPatterns = []string{
	"read", "get", "list", "search", "query", "fetch", "describe",
}

// tagCategories maps a tag name to the keywords that trigger it.
var tagCategories = map[string][]string{
	"database": {"db", "sql", "query", "table", "database"},
	"file":     {"file", "directory", "folder", "path"},
	"git":      {"git", "commit", "branch", "repository", "repo"},
	"http":     {"http", "api", "request", "fetch", "url"},
	"search":   {"search", "find", "grep", "filter"},
	"code":     {"code", "function", "class", "symbol"},
}

// InferRiskHint infers a RiskHint from a tool's name and description by
// case-insensitive substring match against their concatenation.
func InferRiskHint(toolName, description string) RiskHint {
	combined := strings.ToLower(toolName + " " + description)

	for _, pattern := range highRiskPatterns {
		if strings.Contains(combined, pattern) {
			return RiskHigh
		}
	}
	for _, pattern := range lowRiskPatterns {
		if strings.Contains(combined, pattern) {
			return RiskLow
		}
	}
	return RiskMedium
}

// ExtractTags builds the deduplicated tag set for a tool: the server name
// plus any category whose keywords match name+description.
func ExtractTags(serverName, toolName, description string) []string {
	seen := map[string]bool{serverName: true}
	tags := []string{serverName}

	combined := strings.ToLower(toolName + " " + description)

	// Iterate categories in a fixed order for deterministic output.
	for _, category := range []string{"database", "file", "git", "http", "search", "code"} {
		for _, keyword := range tagCategories[category] {
			if strings.Contains(combined, keyword) {
				if !seen[category] {
					seen[category] = true
					tags = append(tags, category)
				}
				break
			}
		}
	}
	return tags
}

// TruncateDescription truncates description to at most maxLen characters,
// appending "..." when truncation occurs.
func TruncateDescription(description string, maxLen int) string {
	if description == "" {
		return ""
	}
	runes := []rune(description)
	if len(runes) <= maxLen {
		return description
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// BuildToolInfo constructs a ToolInfo record for one downstream tool,
// applying tag extraction, risk inference, and description truncation.
func BuildToolInfo(serverName, toolName, description string, inputSchema []byte) ToolInfo {
	if len(inputSchema) == 0 {
		inputSchema = []byte("{}")
	}
	return ToolInfo{
		ToolID:           serverName + "::" + toolName,
		ServerName:       serverName,
		ToolName:         toolName,
		Description:      description,
		ShortDescription: TruncateDescription(description, 100),
		InputSchema:      inputSchema,
		Tags:             ExtractTags(serverName, toolName, description),
		RiskHint:         InferRiskHint(toolName, description),
	}
}
