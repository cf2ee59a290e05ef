package gateway

import (
	"context"
	"fmt"

	"github.com/mcpgateway/gateway/internal/catalog"
)

// Refresh implements refresh: reload the resolved config list for
// source, filter by policy, disconnect every current child, then
// reconnect from the fresh list. Refresh is not transactional — on
// partial failure the catalog ends up with whichever servers did
// connect, per DisconnectAll/ConnectAll's own contract.
func (m *Manager) Refresh(ctx context.Context, source string) (RefreshResult, error) {
	if m.loadConfigs == nil {
		return RefreshResult{}, fmt.Errorf("gateway: no config loader configured")
	}

	resolved, err := m.loadConfigs(source)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("gateway: loading configs for %q: %w", source, err)
	}
	m.lastSource = source

	m.DisconnectAll()
	serverErrors := m.ConnectAll(ctx, resolved)

	revisionID, _ := m.catalog.Meta()
	stringErrors := make(map[string]string, len(serverErrors))
	for name, e := range serverErrors {
		stringErrors[name] = e.Error()
	}

	onlineCount := 0
	for _, child := range m.Children() {
		if child.Status().Status == catalog.StatusOnline {
			onlineCount++
		}
	}

	return RefreshResult{
		Ok:           len(serverErrors) == 0,
		RevisionID:   revisionID,
		ServerCount:  len(resolved),
		OnlineCount:  onlineCount,
		ToolCount:    m.catalog.Count(),
		ServerErrors: stringErrors,
	}, nil
}
