package health

import (
	"testing"

	"github.com/mcpgateway/gateway/internal/downstream"
)

func TestParseRequestID(t *testing.T) {
	server, id, err := ParseRequestID("github::42")
	if err != nil {
		t.Fatalf("ParseRequestID: %v", err)
	}
	if server != "github" || id != 42 {
		t.Errorf("got (%q, %d), want (github, 42)", server, id)
	}
}

func TestParseRequestID_Malformed(t *testing.T) {
	cases := []string{"github", "::42", "github::", "github::abc", ""}
	for _, c := range cases {
		if _, _, err := ParseRequestID(c); err == nil {
			t.Errorf("ParseRequestID(%q) expected error, got nil", c)
		}
	}
}

func TestCancel_HealthyRequestRefusedWithoutForce(t *testing.T) {
	pt := downstream.NewPendingTable()
	id := pt.NextID()
	pt.Register(id, "fs::read", "tools/call", 600_000)

	if got := Cancel(pt, id, false); got != CancelRefused {
		t.Errorf("Cancel(force=false) = %v, want refused", got)
	}
	// Still pending after a refusal.
	if _, ok := pt.SnapshotOne(id); !ok {
		t.Error("expected the request to remain pending after a refusal")
	}
}

func TestCancel_HealthyRequestWithForce(t *testing.T) {
	pt := downstream.NewPendingTable()
	id := pt.NextID()
	waiter := pt.Register(id, "fs::read", "tools/call", 600_000)

	if got := Cancel(pt, id, true); got != CancelCancelled {
		t.Errorf("Cancel(force=true) = %v, want cancelled", got)
	}
	res := <-waiter
	if res.Err != downstream.ErrCancelled {
		t.Errorf("waiter error = %v, want ErrCancelled", res.Err)
	}
}

func TestCancel_NotFound(t *testing.T) {
	pt := downstream.NewPendingTable()
	if got := Cancel(pt, 999, true); got != CancelNotFound {
		t.Errorf("Cancel(unknown id) = %v, want not_found", got)
	}
}

func TestCancel_AlreadyComplete(t *testing.T) {
	pt := downstream.NewPendingTable()
	id := pt.NextID()
	pt.Register(id, "fs::read", "tools/call", 600_000)
	pt.Resolve(id, nil)

	if got := Cancel(pt, id, true); got != CancelAlreadyComplete {
		t.Errorf("Cancel(resolved id) = %v, want already_complete", got)
	}
}
