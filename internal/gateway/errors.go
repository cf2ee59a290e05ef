package gateway

import "fmt"

// ErrUnknownTool is returned by Describe (and used internally by Invoke)
// when tool_id is not present in the catalog.
type ErrUnknownTool struct {
	ToolID string
}

func (e *ErrUnknownTool) Error() string {
	return fmt.Sprintf("gateway: unknown tool %q", e.ToolID)
}

// ErrPolicyBlocked is returned by Describe (and used internally by
// Invoke) when tool_id exists but policy denies it.
type ErrPolicyBlocked struct {
	ToolID string
}

func (e *ErrPolicyBlocked) Error() string {
	return fmt.Sprintf("gateway: tool %q is blocked by policy", e.ToolID)
}
