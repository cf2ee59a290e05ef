package gateway

// Health implements health: current revision, per-server status/tool
// count, and the last refresh timestamp.
func (m *Manager) Health() HealthResult {
	revisionID, lastRefreshTs := m.catalog.Meta()

	children := m.Children()
	servers := make([]ServerHealthEntry, 0, len(children))
	for _, child := range children {
		status := child.Status()
		servers = append(servers, ServerHealthEntry{
			Name:      status.Name,
			Status:    status.Status,
			ToolCount: status.ToolCount,
		})
	}

	return HealthResult{
		RevisionID:    revisionID,
		Servers:       servers,
		LastRefreshTs: lastRefreshTs,
	}
}
