package downstream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// rollingWindowSize is the width of the response-time ring buffer
// "a bounded ring buffer of 100 samples".
const rollingWindowSize = 100

// Result is what a waiter receives when its request resolves, fails, or
// times out.
type Result struct {
	Data json.RawMessage
	Err  error
}

// ErrTimeout is returned (wrapped) when a request's timeout_ms elapses
// before a matching response arrives.
type ErrTimeout struct {
	Method string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("request timed out: %s", e.Method)
}

// ErrDisconnected is returned (wrapped) to every pending waiter when the
// child's output stream closes or the manager tears the child down.
type ErrDisconnected struct {
	Server string
}

func (e *ErrDisconnected) Error() string {
	return fmt.Sprintf("downstream %q disconnected", e.Server)
}

// ErrCancelled is returned to a waiter whose request was cancelled via
// the cancel operation.
var ErrCancelled = fmt.Errorf("request cancelled")

// pendingEntry is one in-flight request.
type pendingEntry struct {
	requestID     int64
	toolID        string // empty for initialize/tools/list
	method        string
	startedAt     time.Time
	lastHeartbeat time.Time
	timeoutMs     int
	waiter        chan Result
	timer         *time.Timer
	resolved      bool
}

// Snapshot is a read-only view of one pending entry's metadata, used by
// the health monitor and the cancel operation.
type Snapshot struct {
	RequestID     int64
	ToolID        string
	Method        string
	StartedAt     time.Time
	LastHeartbeat time.Time
	TimeoutMs     int
}

// PendingTable is the per-child mapping from numeric request id to an
// awaitable slot. Insertion, lookup, and deletion are
// O(1); a timer fires a timeout independently of the reader loop.
type PendingTable struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*pendingEntry

	window      [rollingWindowSize]float64
	windowCount int
	windowIdx   int
	windowSum   float64
	avgMs       float64
}

// NewPendingTable creates an empty table whose first allocated id is 1.
func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[int64]*pendingEntry)}
}

// NextID allocates the next monotone request id for this child.
func (pt *PendingTable) NextID() int64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.nextID++
	return pt.nextID
}

// Register inserts a new pending entry and arms its timeout timer. The
// returned channel receives exactly one Result, from the reader (success
// or RPC error), the timeout timer, a Cancel call, or DisconnectAll.
func (pt *PendingTable) Register(id int64, toolID, method string, timeoutMs int) <-chan Result {
	now := time.Now()
	entry := &pendingEntry{
		requestID:     id,
		toolID:        toolID,
		method:        method,
		startedAt:     now,
		lastHeartbeat: now,
		timeoutMs:     timeoutMs,
		waiter:        make(chan Result, 1),
	}

	pt.mu.Lock()
	pt.entries[id] = entry
	pt.mu.Unlock()

	entry.timer = time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
		pt.failIfPresent(id, &ErrTimeout{Method: method})
	})

	return entry.waiter
}

// Count returns the number of pending entries.
func (pt *PendingTable) Count() int {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return len(pt.entries)
}

// Heartbeat advances last_heartbeat on every currently-pending entry —
// used when a line on the child's stdout fails to parse as JSON, which
// still proves the child is alive.
func (pt *PendingTable) Heartbeat(now time.Time) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	for _, e := range pt.entries {
		e.lastHeartbeat = now
	}
}

// Resolve removes the entry for id (if present) and delivers result as a
// success, recording its elapsed time into the rolling average. It
// reports whether a matching pending entry was found.
func (pt *PendingTable) Resolve(id int64, result json.RawMessage) bool {
	pt.mu.Lock()
	entry, ok := pt.entries[id]
	if !ok {
		pt.mu.Unlock()
		return false
	}
	delete(pt.entries, id)
	elapsedMs := time.Since(entry.startedAt).Seconds() * 1000
	pt.recordSampleLocked(elapsedMs)
	pt.mu.Unlock()

	entry.timer.Stop()
	entry.waiter <- Result{Data: result}
	return true
}

// Fail removes the entry for id (if present) and delivers err as a
// failure. It reports whether a matching pending entry was found.
func (pt *PendingTable) Fail(id int64, err error) bool {
	return pt.failIfPresent(id, err)
}

func (pt *PendingTable) failIfPresent(id int64, err error) bool {
	pt.mu.Lock()
	entry, ok := pt.entries[id]
	if !ok {
		pt.mu.Unlock()
		return false
	}
	delete(pt.entries, id)
	pt.mu.Unlock()

	entry.timer.Stop()
	entry.waiter <- Result{Err: err}
	return true
}

// DisconnectAll fails every currently-pending entry with err and clears
// the table.
func (pt *PendingTable) DisconnectAll(err error) {
	pt.mu.Lock()
	entries := make([]*pendingEntry, 0, len(pt.entries))
	for _, e := range pt.entries {
		entries = append(entries, e)
	}
	pt.entries = make(map[int64]*pendingEntry)
	pt.mu.Unlock()

	for _, e := range entries {
		e.timer.Stop()
		e.waiter <- Result{Err: err}
	}
}

// Cancel removes the entry for id (if present), fails its waiter with
// ErrCancelled, and reports whether it was found (i.e. was still
// pending — "not_found"/"already_complete" are the caller's job to
// distinguish, since PendingTable has no memory of completed requests).
func (pt *PendingTable) Cancel(id int64) bool {
	return pt.failIfPresent(id, ErrCancelled)
}

// Snapshot returns a point-in-time copy of every pending entry's
// metadata, sorted is not guaranteed — callers needing order should sort.
func (pt *PendingTable) Snapshot() []Snapshot {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	out := make([]Snapshot, 0, len(pt.entries))
	for _, e := range pt.entries {
		out = append(out, Snapshot{
			RequestID:     e.requestID,
			ToolID:        e.toolID,
			Method:        e.method,
			StartedAt:     e.startedAt,
			LastHeartbeat: e.lastHeartbeat,
			TimeoutMs:     e.timeoutMs,
		})
	}
	return out
}

// SnapshotOne returns the metadata for a single pending entry.
func (pt *PendingTable) SnapshotOne(id int64) (Snapshot, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	e, ok := pt.entries[id]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		RequestID:     e.requestID,
		ToolID:        e.toolID,
		Method:        e.method,
		StartedAt:     e.startedAt,
		LastHeartbeat: e.lastHeartbeat,
		TimeoutMs:     e.timeoutMs,
	}, true
}

// WasIssued reports whether id was ever allocated by NextID on this
// table, regardless of whether it is still pending. Combined with a
// false SnapshotOne, this lets a caller distinguish "already completed"
// from "never existed" without the table needing to remember the
// outcome of every past request.
func (pt *PendingTable) WasIssued(id int64) bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return id >= 1 && id <= pt.nextID
}

// AvgResponseTimeMs returns the arithmetic mean of the rolling window of
// completed-request latencies (0 if no requests have completed yet).
func (pt *PendingTable) AvgResponseTimeMs() float64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.avgMs
}

func (pt *PendingTable) recordSampleLocked(elapsedMs float64) {
	if pt.windowCount < rollingWindowSize {
		pt.window[pt.windowCount] = elapsedMs
		pt.windowSum += elapsedMs
		pt.windowCount++
	} else {
		old := pt.window[pt.windowIdx]
		pt.window[pt.windowIdx] = elapsedMs
		pt.windowSum += elapsedMs - old
		pt.windowIdx = (pt.windowIdx + 1) % rollingWindowSize
	}
	pt.avgMs = pt.windowSum / float64(pt.windowCount)
}
