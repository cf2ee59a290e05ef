package health

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mcpgateway/gateway/internal/downstream"
)

// CancelOutcome is the result of a cancel operation.
type CancelOutcome string

const (
	CancelCancelled       CancelOutcome = "cancelled"
	CancelNotFound        CancelOutcome = "not_found"
	CancelAlreadyComplete CancelOutcome = "already_complete"
	CancelRefused         CancelOutcome = "refused"
)

// ParseRequestID splits a host-facing request_id of the form
// "{server}::{numeric}" into its server name and numeric id.
func ParseRequestID(requestID string) (server string, id int64, err error) {
	server, numeric, found := strings.Cut(requestID, "::")
	if !found || server == "" || numeric == "" {
		return "", 0, fmt.Errorf("health: malformed request_id %q", requestID)
	}
	id, err = strconv.ParseInt(numeric, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("health: malformed request_id %q: %w", requestID, err)
	}
	return server, id, nil
}

// Cancel attempts to cancel request id against pt (one child's pending
// table). Cancelling work that is not yet stalled or over its own
// timeout requires force=true: cancelling healthy long-running work is
// opt-in.
func Cancel(pt *downstream.PendingTable, id int64, force bool) CancelOutcome {
	snap, ok := pt.SnapshotOne(id)
	if !ok {
		if pt.WasIssued(id) {
			return CancelAlreadyComplete
		}
		return CancelNotFound
	}

	state := DerivePendingState(time.Now(), snap.StartedAt, snap.LastHeartbeat, snap.TimeoutMs)
	unhealthy := state == StateStalled || state == StateTimeout
	if !unhealthy && !force {
		return CancelRefused
	}

	if pt.Cancel(id) {
		return CancelCancelled
	}
	// Resolved between the snapshot read above and this cancel attempt.
	return CancelAlreadyComplete
}
