package gateway

import (
	"encoding/json"
	"sort"
	"unicode/utf8"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/util"
)

const safetyNotesHigh = "This tool may modify data or have side effects."

// Describe implements describe: resolve via catalog, reject unknown or
// policy-blocked tools, and flatten the input schema's properties into an
// argument list.
func (m *Manager) Describe(toolID string) (DescribeResult, error) {
	info, ok := m.catalog.Get(toolID)
	if !ok {
		return DescribeResult{}, &ErrUnknownTool{ToolID: toolID}
	}
	if !m.policy.Allowed(info.ServerName, toolID) {
		return DescribeResult{}, &ErrPolicyBlocked{ToolID: toolID}
	}

	args := extractArguments(info.InputSchema)

	result := DescribeResult{
		ToolID:      info.ToolID,
		ServerName:  info.ServerName,
		ToolName:    info.ToolName,
		Description: info.Description,
		Arguments:   args,
		RiskHint:    info.RiskHint,
	}
	if info.RiskHint == catalog.RiskHigh {
		result.SafetyNotes = safetyNotesHigh
	}
	return result, nil
}

// extractArguments flattens a JSON Schema's top-level properties/required
// into a sorted argument list. A missing or unparseable schema yields no
// arguments rather than an error: describe must always return something.
func extractArguments(schema json.RawMessage) []ArgumentInfo {
	if len(schema) == 0 {
		return nil
	}

	var parsed struct {
		Properties map[string]struct {
			Type        json.RawMessage `json:"type"`
			Description string          `json:"description"`
			Examples    []any           `json:"examples"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		return nil
	}

	required := make(map[string]bool, len(parsed.Required))
	for _, r := range parsed.Required {
		required[r] = true
	}

	names := make([]string, 0, len(parsed.Properties))
	for name := range parsed.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]ArgumentInfo, 0, len(names))
	for _, name := range names {
		prop := parsed.Properties[name]
		args = append(args, ArgumentInfo{
			Name:             name,
			Required:         required[name],
			Type:             schemaTypeString(prop.Type),
			ShortDescription: truncateDescription(prop.Description, 200),
			Examples:         stringifyExamples(prop.Examples),
		})
	}
	return args
}

// stringifyExamples renders a JSON Schema "examples" array as display
// strings; nil when there are none, matching an "optional examples" field.
func stringifyExamples(examples []any) []string {
	if len(examples) == 0 {
		return nil
	}
	out := make([]string, 0, len(examples))
	for _, ex := range examples {
		if s, ok := ex.(string); ok {
			out = append(out, s)
			continue
		}
		if b, err := json.Marshal(ex); err == nil {
			out = append(out, string(b))
		}
	}
	return out
}

// schemaTypeString renders a JSON Schema "type" value (string or array of
// strings) as a single display string.
func schemaTypeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var multi []string
	if err := json.Unmarshal(raw, &multi); err == nil {
		if len(multi) == 0 {
			return ""
		}
		out := multi[0]
		for _, t := range multi[1:] {
			out += "|" + t
		}
		return out
	}
	return ""
}

// truncateDescription caps s at max runes, the "..." suffix included.
func truncateDescription(s string, max int) string {
	if max <= 3 || utf8.RuneCountInString(s) <= max {
		return util.TruncateRunes(s, max)
	}
	return util.TruncateRunes(s, max-3)
}
