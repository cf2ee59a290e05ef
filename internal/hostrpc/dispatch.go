package hostrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/gateway"
)

// dispatch decodes params for method and calls the matching gateway
// operation. Every error path here becomes a JSON-RPC error response:
// unknown methods, malformed params, and errors returned by Describe or
// Refresh. gateway.Invoke's own internal never-raises contract means a
// tool call that merely failed downstream never becomes an error here.
func dispatch(ctx context.Context, mgr *gateway.Manager, method string, params json.RawMessage) (any, error) {
	switch method {
	case methodCatalogSearch:
		return dispatchCatalogSearch(mgr, params)
	case methodDescribe:
		return dispatchDescribe(mgr, params)
	case methodInvoke:
		return dispatchInvoke(ctx, mgr, params)
	case methodRefresh:
		return dispatchRefresh(ctx, mgr, params)
	case methodHealth:
		return mgr.Health(), nil
	default:
		return nil, fmt.Errorf("hostrpc: unknown method %q", method)
	}
}

type catalogSearchParams struct {
	Query   string `json:"query"`
	Filters struct {
		Server  []string `json:"server"`
		Tags    []string `json:"tags"`
		RiskMax string   `json:"risk_max"`
	} `json:"filters"`
	Limit          int  `json:"limit"`
	IncludeOffline bool `json:"include_offline"`
}

func dispatchCatalogSearch(mgr *gateway.Manager, raw json.RawMessage) (any, error) {
	var p catalogSearchParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("hostrpc: %s: %w", methodCatalogSearch, err)
		}
	}

	req := gateway.SearchRequest{
		Query: p.Query,
		Limit: p.Limit,
		Filters: gateway.SearchFilters{
			Servers:        p.Filters.Server,
			Tags:           p.Filters.Tags,
			RiskMax:        catalog.RiskHint(p.Filters.RiskMax),
			IncludeOffline: p.IncludeOffline,
		},
	}
	return mgr.CatalogSearch(req), nil
}

type describeParams struct {
	ToolID string `json:"tool_id"`
}

func dispatchDescribe(mgr *gateway.Manager, raw json.RawMessage) (any, error) {
	var p describeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("hostrpc: %s: %w", methodDescribe, err)
	}
	result, err := mgr.Describe(p.ToolID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

type invokeParams struct {
	ToolID    string `json:"tool_id"`
	Arguments any    `json:"arguments"`
	Options   struct {
		TimeoutMs      int  `json:"timeout_ms"`
		Redact         bool `json:"redact"`
		MaxOutputChars int  `json:"max_output_chars"`
	} `json:"options"`
}

func dispatchInvoke(ctx context.Context, mgr *gateway.Manager, raw json.RawMessage) (any, error) {
	var p invokeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("hostrpc: %s: %w", methodInvoke, err)
	}

	req := gateway.InvokeRequest{
		ToolID:    p.ToolID,
		Arguments: p.Arguments,
		Options: gateway.InvokeOptions{
			TimeoutMs:      p.Options.TimeoutMs,
			Redact:         p.Options.Redact,
			MaxOutputChars: p.Options.MaxOutputChars,
		},
	}
	// Invoke never raises to its caller (spec.md §7); its result is
	// always a well-formed InvokeResult, success or ok=false.
	return mgr.Invoke(ctx, req), nil
}

type refreshParams struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

func dispatchRefresh(ctx context.Context, mgr *gateway.Manager, raw json.RawMessage) (any, error) {
	var p refreshParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("hostrpc: %s: %w", methodRefresh, err)
		}
	}
	result, err := mgr.Refresh(ctx, p.Source)
	if err != nil {
		return nil, err
	}
	return result, nil
}
