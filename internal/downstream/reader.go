package downstream

import (
	"io"
	"time"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/rpcframe"
)

// runReader owns resolution of every pending request for this child: it is
// the only goroutine that calls pending.Resolve/Fail for responses read
// off the wire. A line that fails to parse as JSON still counts as a
// heartbeat — the child is alive even if it just wrote a log line to
// stdout by mistake.
func (mc *ManagedChild) runReader(stdout io.Reader) {
	defer close(mc.readerDone)

	scanner := rpcframe.NewLineScanner(stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		now := time.Now()

		// On every line, parsed or not, last_activity_at advances — this
		// is independent of the pending-table heartbeat below.
		mc.setStatus(func(s *catalog.ServerStatus) {
			ts := float64(now.UnixNano()) / 1e9
			s.LastActivityAt = &ts
		})

		resp, ok := rpcframe.ParseLine(line)
		if !ok {
			mc.pending.Heartbeat(now)
			continue
		}

		idFloat, hasID := resp.IDAsFloat()
		if !hasID {
			// A parsed JSON object with no numeric id (a notification or
			// other unsolicited message) has no pending consumer — ignored,
			// not a heartbeat. Only a line that fails to parse at all
			// counts as proof of liveness.
			continue
		}
		id := int64(idFloat)

		if resp.Error != nil {
			mc.pending.Fail(id, resp.Error)
			continue
		}

		result := resp.Result
		if len(result) == 0 {
			result = []byte("{}")
		}
		mc.pending.Resolve(id, result)
	}

	mc.setStatus(func(s *catalog.ServerStatus) {
		if s.Status == catalog.StatusOnline {
			s.Status = catalog.StatusError
			s.LastError = "Server process exited"
		}
	})
	mc.pending.DisconnectAll(&ErrDisconnected{Server: mc.cfg.Name})
}
