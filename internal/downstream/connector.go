package downstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/rpcframe"
)

// handshakeTimeoutMs bounds initialize and tools/list during Connect,
// independent of the per-call timeout used for later tool invocations
//.
const handshakeTimeoutMs = 30_000

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolsListResult struct {
	Tools []rawTool `json:"tools"`
}

type rawTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Connect performs the MCP handshake over an already-started child:
// initialize, notifications/initialized, then tools/list. It builds and
// returns the resulting catalog.ToolInfo records, truncated to
// maxToolsPerServer with a warning log on truncation. The child must already be running (see Start).
func (mc *ManagedChild) Connect(ctx context.Context, maxToolsPerServer int) ([]catalog.ToolInfo, error) {
	initParams := initializeParams{
		ProtocolVersion: "2024-11-05",
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: "gateway", Version: "1.0.0"},
	}

	if _, err := mc.Call(ctx, "", "initialize", initParams, handshakeTimeoutMs); err != nil {
		mc.setStatus(func(s *catalog.ServerStatus) {
			s.Status = catalog.StatusError
			s.LastError = fmt.Sprintf("initialize: %v", err)
		})
		return nil, fmt.Errorf("downstream %q: initialize: %w", mc.cfg.Name, err)
	}

	if err := mc.notifyInitialized(); err != nil {
		mc.setStatus(func(s *catalog.ServerStatus) {
			s.Status = catalog.StatusError
			s.LastError = fmt.Sprintf("notifications/initialized: %v", err)
		})
		return nil, fmt.Errorf("downstream %q: notifications/initialized: %w", mc.cfg.Name, err)
	}

	raw, err := mc.Call(ctx, "", "tools/list", map[string]any{}, handshakeTimeoutMs)
	if err != nil {
		mc.setStatus(func(s *catalog.ServerStatus) {
			s.Status = catalog.StatusError
			s.LastError = fmt.Sprintf("tools/list: %v", err)
		})
		return nil, fmt.Errorf("downstream %q: tools/list: %w", mc.cfg.Name, err)
	}

	var parsed toolsListResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		mc.setStatus(func(s *catalog.ServerStatus) {
			s.Status = catalog.StatusError
			s.LastError = fmt.Sprintf("tools/list: malformed response: %v", err)
		})
		return nil, fmt.Errorf("downstream %q: tools/list: malformed response: %w", mc.cfg.Name, err)
	}

	tools := parsed.Tools
	if maxToolsPerServer > 0 && len(tools) > maxToolsPerServer {
		log.Printf("downstream %q: tools/list returned %d tools, truncating to %d per policy",
			mc.cfg.Name, len(tools), maxToolsPerServer)
		tools = tools[:maxToolsPerServer]
	}

	infos := make([]catalog.ToolInfo, 0, len(tools))
	for _, t := range tools {
		infos = append(infos, catalog.BuildToolInfo(mc.cfg.Name, t.Name, t.Description, t.InputSchema))
	}

	now := time.Now()
	mc.setStatus(func(s *catalog.ServerStatus) {
		s.Status = catalog.StatusOnline
		s.LastError = ""
		s.ToolCount = len(infos)
		ts := float64(now.UnixNano()) / 1e9
		s.LastConnectedAt = &ts
		s.LastActivityAt = &ts
	})

	return infos, nil
}

// notifyInitialized sends the fire-and-forget notifications/initialized
// message required by the MCP handshake (no response, no pending entry).
func (mc *ManagedChild) notifyInitialized() error {
	mc.mu.Lock()
	writer := mc.writer
	mc.mu.Unlock()
	if writer == nil {
		return fmt.Errorf("downstream %q: not started", mc.cfg.Name)
	}
	return writer.WriteRequest(rpcframe.Request{Method: "notifications/initialized"})
}
