package gateway

import "github.com/mcpgateway/gateway/internal/catalog"

// SearchFilters narrows a catalog_search call beyond the free-text query.
type SearchFilters struct {
	Servers        []string
	Tags           []string
	RiskMax        catalog.RiskHint
	IncludeOffline bool
}

// SearchRequest is the input to CatalogSearch.
type SearchRequest struct {
	Query   string
	Filters SearchFilters
	Limit   int
}

// CapabilityCard is one search hit: enough to decide whether to call
// Describe, without the full input schema.
type CapabilityCard struct {
	ToolID           string           `json:"tool_id"`
	ServerName       string           `json:"server"`
	ToolName         string           `json:"tool_name"`
	ShortDescription string           `json:"short_description"`
	Tags             []string         `json:"tags"`
	Availability     string           `json:"availability"`
	RiskHint         catalog.RiskHint `json:"risk_hint"`
}

// SearchResult is the output of CatalogSearch.
type SearchResult struct {
	Tools          []CapabilityCard `json:"tools"`
	TotalAvailable int              `json:"total_available"`
	Truncated      bool             `json:"truncated"`
}

// ArgumentInfo describes one property of a tool's input schema for the
// describe operation's flattened argument list.
type ArgumentInfo struct {
	Name             string   `json:"name"`
	Required         bool     `json:"required"`
	Type             string   `json:"type,omitempty"`
	ShortDescription string   `json:"short_description,omitempty"`
	Examples         []string `json:"examples,omitempty"`
}

// DescribeResult is the output of Describe.
type DescribeResult struct {
	ToolID      string          `json:"tool_id"`
	ServerName  string          `json:"server_name"`
	ToolName    string          `json:"tool_name"`
	Description string          `json:"description"`
	Arguments   []ArgumentInfo  `json:"arguments"`
	RiskHint    catalog.RiskHint `json:"risk_hint"`
	SafetyNotes string          `json:"safety_notes,omitempty"`
}

// InvokeOptions carries the optional per-call knobs of an invoke request.
type InvokeOptions struct {
	TimeoutMs     int
	Redact        bool
	MaxOutputChars int
}

// InvokeRequest is the input to Invoke.
type InvokeRequest struct {
	ToolID    string
	Arguments any
	Options   InvokeOptions
}

// InvokeResult is the output of Invoke. It never raises: every failure
// mode is reported through Ok/Errors so the host always gets a
// well-formed response.
type InvokeResult struct {
	ToolID          string   `json:"tool_id"`
	Ok              bool     `json:"ok"`
	Output          string   `json:"result,omitempty"`
	Truncated       bool     `json:"truncated"`
	RawSizeEstimate int      `json:"raw_size_estimate"`
	Errors          []string `json:"errors,omitempty"`
}

// RefreshResult is the output of Refresh.
type RefreshResult struct {
	Ok           bool              `json:"ok"`
	RevisionID   string            `json:"revision_id"`
	ServerCount  int               `json:"server_count"`
	OnlineCount  int               `json:"online_count"`
	ToolCount    int               `json:"tool_count"`
	ServerErrors map[string]string `json:"server_errors,omitempty"`
}

// ServerHealthEntry is one server's row in a HealthResult.
type ServerHealthEntry struct {
	Name      string                  `json:"name"`
	Status    catalog.ServerStatusEnum `json:"status"`
	ToolCount int                     `json:"tool_count"`
}

// HealthResult is the output of Health.
type HealthResult struct {
	RevisionID    string              `json:"revision_id"`
	Servers       []ServerHealthEntry `json:"servers"`
	LastRefreshTs float64             `json:"last_refresh_ts"`
}
