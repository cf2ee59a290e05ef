// Package health derives the observable RequestState of in-flight
// downstream calls and runs the periodic stall/slowness monitor, without
// ever cancelling anything on its own.
package health

import "time"

// RequestState is the derived (never stored) lifecycle state of one
// pending request.
type RequestState string

const (
	StateCompleted RequestState = "completed"
	StateCancelled RequestState = "cancelled"
	StateTimeout   RequestState = "timeout"
	StateStalled   RequestState = "stalled"
	StateActive    RequestState = "active"
	StatePending   RequestState = "pending"
)

// StallThreshold and SlownessThreshold are the heartbeat-age cutoffs used
// both by the periodic monitor's log messages and by state derivation.
const (
	StallThreshold    = 120 * time.Second
	SlownessThreshold = 60 * time.Second
)

// DerivePendingState derives the state of a request still present in its
// child's pending table: timeout beats staleness, staleness beats mere
// slowness. COMPLETED and CANCELLED never apply here — a resolved or
// cancelled entry is removed
// from the pending table the moment it resolves, so by construction it
// is never observed by this function; callers detect a request that is
// no longer pending via PendingTable.SnapshotOne and WasIssued instead
// (see cancel.go), which do not tell a completed request from a
// cancelled one.
func DerivePendingState(now, startedAt, lastHeartbeat time.Time, timeoutMs int) RequestState {
	if now.Sub(startedAt) > time.Duration(timeoutMs)*time.Millisecond {
		return StateTimeout
	}
	age := now.Sub(lastHeartbeat)
	switch {
	case age > StallThreshold:
		return StateStalled
	case age > SlownessThreshold:
		return StateActive
	default:
		return StatePending
	}
}
