package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcpgateway/gateway/internal/policy"
)

const (
	minTimeoutMs     = 1_000
	maxTimeoutMs     = 300_000
	defaultTimeoutMs = 30_000
)

// Invoke implements invoke. It never raises: every failure mode,
// including an unknown or blocked tool, comes back as Ok=false with a
// populated Errors list.
func (m *Manager) Invoke(ctx context.Context, req InvokeRequest) InvokeResult {
	info, ok := m.catalog.Get(req.ToolID)
	if !ok {
		return InvokeResult{ToolID: req.ToolID, Ok: false, Errors: []string{(&ErrUnknownTool{ToolID: req.ToolID}).Error()}}
	}
	if !m.policy.Allowed(info.ServerName, req.ToolID) {
		return InvokeResult{ToolID: req.ToolID, Ok: false, Errors: []string{(&ErrPolicyBlocked{ToolID: req.ToolID}).Error()}}
	}

	child, ok := m.childFor(info.ServerName)
	if !ok {
		return InvokeResult{ToolID: req.ToolID, Ok: false, Errors: []string{fmt.Sprintf("gateway: server %q is not connected", info.ServerName)}}
	}

	if err := validateArguments(info.InputSchema, req.Arguments); err != nil {
		return InvokeResult{ToolID: req.ToolID, Ok: false, Errors: []string{(&ErrSchemaInvalid{ToolID: req.ToolID, Reason: err.Error()}).Error()}}
	}

	timeoutMs := clampTimeout(req.Options.TimeoutMs)
	params := map[string]any{
		"name":      info.ToolName,
		"arguments": req.Arguments,
	}

	raw, err := child.Call(ctx, req.ToolID, "tools/call", params, timeoutMs)
	if err != nil {
		return InvokeResult{ToolID: req.ToolID, Ok: false, Errors: []string{err.Error()}}
	}

	output, truncated, rawSize := m.postProcess(raw, req.Options)
	return InvokeResult{
		ToolID:          req.ToolID,
		Ok:              true,
		Output:          output,
		Truncated:       truncated,
		RawSizeEstimate: rawSize,
	}
}

func clampTimeout(ms int) int {
	if ms <= 0 {
		return defaultTimeoutMs
	}
	if ms < minTimeoutMs {
		return minTimeoutMs
	}
	if ms > maxTimeoutMs {
		return maxTimeoutMs
	}
	return ms
}

// postProcess applies redaction (if requested) then truncation, in that
// order, so a redaction marker is never cut in half by a later size cap.
// The result is always treated as text: once truncated it carries an
// appended marker and is no longer guaranteed to be valid JSON.
func (m *Manager) postProcess(raw json.RawMessage, opts InvokeOptions) (string, bool, int) {
	data := []byte(raw)
	if opts.Redact {
		data = m.redactor.Redact(data)
	}

	// max_output_chars is an additional, tighter upper bound, never a
	// looser one than the policy default (spec.md §9 Open Question 2).
	maxBytes := m.policy.MaxOutputBytes
	if opts.MaxOutputChars > 0 {
		if charBudget := opts.MaxOutputChars * 4; charBudget < maxBytes {
			maxBytes = charBudget
		}
	}

	result := policy.Truncate(data, maxBytes)
	return string(result.Data), result.Truncated, result.RawSizeEstimate
}
