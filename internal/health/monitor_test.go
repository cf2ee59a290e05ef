package health

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/mcpgateway/gateway/internal/downstream"
)

func TestScanSnapshots_LogsStallAndSlowness(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)

	now := time.Now()
	snaps := []downstream.Snapshot{
		{RequestID: 1, ToolID: "fs::read", StartedAt: now.Add(-200 * time.Second), LastHeartbeat: now.Add(-200 * time.Second), TimeoutMs: 600_000},
		{RequestID: 2, ToolID: "fs::write", StartedAt: now.Add(-90 * time.Second), LastHeartbeat: now.Add(-90 * time.Second), TimeoutMs: 600_000},
		{RequestID: 3, ToolID: "fs::list", StartedAt: now, LastHeartbeat: now, TimeoutMs: 600_000},
	}

	scanSnapshots(now, "fs", snaps)

	out := buf.String()
	if !strings.Contains(out, "stalled") {
		t.Errorf("expected a stalled log line, got: %s", out)
	}
	if !strings.Contains(out, "slow") {
		t.Errorf("expected a slow log line, got: %s", out)
	}
	if strings.Count(out, "\n") != 2 {
		t.Errorf("expected exactly 2 log lines (fresh entry must not log), got: %q", out)
	}
}

func TestScanSnapshots_NoWarningsWhenAllFresh(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)

	now := time.Now()
	snaps := []downstream.Snapshot{
		{RequestID: 1, ToolID: "fs::read", StartedAt: now, LastHeartbeat: now, TimeoutMs: 600_000},
	}
	scanSnapshots(now, "fs", snaps)

	if buf.Len() != 0 {
		t.Errorf("expected no log output, got: %s", buf.String())
	}
}

func TestMonitor_Run_StopsOnContextCancel(t *testing.T) {
	m := NewMonitor(func() []*downstream.ManagedChild { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
