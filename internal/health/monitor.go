package health

import (
	"context"
	"log"
	"time"

	"github.com/mcpgateway/gateway/internal/downstream"
)

// period is how often the monitor scans every child's pending table
// "runs every 30 seconds".
const period = 30 * time.Second

// Monitor periodically scans every managed child's pending requests and
// logs a stall or slowness warning when a request's heartbeat goes
// quiet. It takes no corrective action — cancellation is always explicit
// (see cancel.go).
type Monitor struct {
	children func() []*downstream.ManagedChild
}

// NewMonitor creates a Monitor that scans whatever children's fn returns
// at each tick, so it always sees the gateway's current child set even
// as servers connect and disconnect.
func NewMonitor(children func() []*downstream.ManagedChild) *Monitor {
	return &Monitor{children: children}
}

// Run blocks, scanning every period until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.scanOnce(now)
		}
	}
}

func (m *Monitor) scanOnce(now time.Time) {
	for _, child := range m.children() {
		scanSnapshots(now, child.Name(), child.Pending().Snapshot())
	}
}

// scanSnapshots logs a stall or slowness warning for each snapshot whose
// heartbeat age exceeds the relevant threshold. Split out from scanOnce
// so it can be exercised directly against hand-built snapshots, without
// needing a live child process.
func scanSnapshots(now time.Time, serverName string, snaps []downstream.Snapshot) {
	for _, snap := range snaps {
		age := now.Sub(snap.LastHeartbeat)
		switch {
		case age > StallThreshold:
			log.Printf("health: %s request %d (%s) stalled, heartbeat age %s",
				serverName, snap.RequestID, snap.ToolID, age.Round(time.Second))
		case age > SlownessThreshold:
			log.Printf("health: %s request %d (%s) slow, heartbeat age %s",
				serverName, snap.RequestID, snap.ToolID, age.Round(time.Second))
		}
	}
}
