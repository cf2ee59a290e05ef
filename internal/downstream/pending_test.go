package downstream

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestPendingTable_NextID_Monotone(t *testing.T) {
	pt := NewPendingTable()
	if got := pt.NextID(); got != 1 {
		t.Fatalf("first NextID() = %d, want 1", got)
	}
	if got := pt.NextID(); got != 2 {
		t.Fatalf("second NextID() = %d, want 2", got)
	}
}

func TestPendingTable_Resolve_DeliversResult(t *testing.T) {
	pt := NewPendingTable()
	id := pt.NextID()
	waiter := pt.Register(id, "fs::read", "tools/call", 5000)

	if pt.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", pt.Count())
	}

	want := json.RawMessage(`{"ok":true}`)
	if !pt.Resolve(id, want) {
		t.Fatal("Resolve returned false for a registered id")
	}

	select {
	case res := <-waiter:
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if string(res.Data) != string(want) {
			t.Errorf("Data = %s, want %s", res.Data, want)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never received a result")
	}

	if pt.Count() != 0 {
		t.Errorf("Count() = %d after resolve, want 0", pt.Count())
	}
}

func TestPendingTable_Resolve_UnknownID(t *testing.T) {
	pt := NewPendingTable()
	if pt.Resolve(999, json.RawMessage(`{}`)) {
		t.Error("Resolve returned true for an id that was never registered")
	}
}

func TestPendingTable_Fail_DeliversError(t *testing.T) {
	pt := NewPendingTable()
	id := pt.NextID()
	waiter := pt.Register(id, "fs::read", "tools/call", 5000)

	wantErr := errors.New("boom")
	if !pt.Fail(id, wantErr) {
		t.Fatal("Fail returned false for a registered id")
	}

	res := <-waiter
	if res.Err != wantErr {
		t.Errorf("Err = %v, want %v", res.Err, wantErr)
	}
}

func TestPendingTable_Timeout(t *testing.T) {
	pt := NewPendingTable()
	id := pt.NextID()
	waiter := pt.Register(id, "fs::read", "tools/call", 20)

	select {
	case res := <-waiter:
		var timeoutErr *ErrTimeout
		if !errors.As(res.Err, &timeoutErr) {
			t.Fatalf("expected *ErrTimeout, got %v", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never fired")
	}

	if pt.Count() != 0 {
		t.Errorf("Count() = %d after timeout, want 0", pt.Count())
	}
}

func TestPendingTable_Heartbeat_AdvancesLastHeartbeat(t *testing.T) {
	pt := NewPendingTable()
	id := pt.NextID()
	pt.Register(id, "fs::read", "tools/call", 5000)

	before, _ := pt.SnapshotOne(id)
	time.Sleep(5 * time.Millisecond)
	pt.Heartbeat(time.Now())
	after, _ := pt.SnapshotOne(id)

	if !after.LastHeartbeat.After(before.LastHeartbeat) {
		t.Error("Heartbeat did not advance last_heartbeat")
	}
}

func TestPendingTable_DisconnectAll_FailsAndClears(t *testing.T) {
	pt := NewPendingTable()
	id1, id2 := pt.NextID(), pt.NextID()
	w1 := pt.Register(id1, "fs::read", "tools/call", 5000)
	w2 := pt.Register(id2, "fs::write", "tools/call", 5000)

	disconnectErr := &ErrDisconnected{Server: "fs"}
	pt.DisconnectAll(disconnectErr)

	for _, w := range []<-chan Result{w1, w2} {
		res := <-w
		if res.Err != disconnectErr {
			t.Errorf("Err = %v, want %v", res.Err, disconnectErr)
		}
	}
	if pt.Count() != 0 {
		t.Errorf("Count() = %d after DisconnectAll, want 0", pt.Count())
	}
}

func TestPendingTable_Cancel(t *testing.T) {
	pt := NewPendingTable()
	id := pt.NextID()
	waiter := pt.Register(id, "fs::read", "tools/call", 5000)

	if !pt.Cancel(id) {
		t.Fatal("Cancel returned false for a registered id")
	}
	if pt.Cancel(id) {
		t.Error("Cancel returned true on an already-cancelled id")
	}

	res := <-waiter
	if !errors.Is(res.Err, ErrCancelled) {
		t.Errorf("Err = %v, want ErrCancelled", res.Err)
	}
}

func TestPendingTable_AvgResponseTimeMs_RollingWindow(t *testing.T) {
	pt := NewPendingTable()

	// Resolve a single request instantly and check that the average is a
	// small non-negative number rather than zero (the window has one
	// sample in it).
	id := pt.NextID()
	pt.Register(id, "fs::read", "tools/call", 5000)
	pt.Resolve(id, json.RawMessage(`{}`))

	if avg := pt.AvgResponseTimeMs(); avg < 0 {
		t.Errorf("AvgResponseTimeMs() = %f, want >= 0", avg)
	}
}

func TestPendingTable_AvgResponseTimeMs_NoSamples(t *testing.T) {
	pt := NewPendingTable()
	if avg := pt.AvgResponseTimeMs(); avg != 0 {
		t.Errorf("AvgResponseTimeMs() with no samples = %f, want 0", avg)
	}
}
