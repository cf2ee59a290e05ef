package gateway

import (
	"fmt"

	"github.com/mcpgateway/gateway/internal/health"
)

// Cancel implements the cancel operation: it parses a "{server}::{id}"
// request_id, locates the owning child's pending table, and defers to
// health.Cancel for the refuse/cancel decision.
func (m *Manager) Cancel(requestID string, force bool) (health.CancelOutcome, error) {
	serverName, id, err := health.ParseRequestID(requestID)
	if err != nil {
		return "", fmt.Errorf("gateway: %w", err)
	}

	child, ok := m.childFor(serverName)
	if !ok {
		return health.CancelNotFound, nil
	}

	return health.Cancel(child.Pending(), id, force), nil
}
