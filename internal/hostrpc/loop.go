// Package hostrpc drives the host-facing side of the gateway: a
// line-delimited JSON-RPC 2.0 loop over standard in/out, the same wire
// format internal/rpcframe speaks downstream (spec.md §1: "the outer
// host-facing transport — assumed: same line-delimited JSON-RPC over
// standard in/out as the downstream protocol"). It exposes exactly the
// five gateway operations as RPC methods and never anything else.
package hostrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"

	"github.com/mcpgateway/gateway/internal/gateway"
	"github.com/mcpgateway/gateway/internal/rpcframe"
)

// inboundRequest is the host-facing wire shape the loop reads: a JSON-RPC
// 2.0 request whose method selects one of the five gateway operations
// and whose params is that operation's single input object.
type inboundRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// outboundResponse is the JSON-RPC 2.0 response envelope written back to
// the host for every request line read.
type outboundResponse struct {
	JSONRPC string             `json:"jsonrpc"`
	ID      json.RawMessage    `json:"id,omitempty"`
	Result  any                `json:"result,omitempty"`
	Error   *rpcframe.RPCError `json:"error,omitempty"`
}

// method names are the exact host-facing tool names from spec.md §6.
const (
	methodCatalogSearch = "gateway.catalog_search"
	methodDescribe      = "gateway.describe"
	methodInvoke        = "gateway.invoke"
	methodRefresh       = "gateway.refresh"
	methodHealth        = "gateway.health"
)

// responseWriter serializes one JSON-RPC response per line, newline
// terminated and flushed before returning, mirroring rpcframe.Writer's
// on-the-wire discipline for the opposite direction of traffic.
type responseWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newResponseWriter(w io.Writer) *responseWriter {
	return &responseWriter{w: bufio.NewWriter(w)}
}

func (rw *responseWriter) write(resp outboundResponse) error {
	resp.JSONRPC = "2.0"
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()
	if _, err := rw.w.Write(data); err != nil {
		return err
	}
	if err := rw.w.WriteByte('\n'); err != nil {
		return err
	}
	return rw.w.Flush()
}

// Loop serves the five host-facing gateway operations over r/w until r
// reaches EOF or ctx is cancelled. Exactly one response line is written
// per request line; a line that fails to parse is answered with a
// JSON-RPC parse error rather than silently dropped, since (unlike the
// downstream direction) the host is this gateway's only caller and
// deserves to know its request was rejected.
func Loop(ctx context.Context, r io.Reader, w io.Writer, mgr *gateway.Manager) error {
	writer := newResponseWriter(w)
	scanner := rpcframe.NewLineScanner(r)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := append([]byte(nil), scanner.Bytes()...)
		resp := handleLine(ctx, mgr, line)
		if err := writer.write(resp); err != nil {
			log.Printf("hostrpc: write response: %v", err)
		}
	}
	return scanner.Err()
}

func handleLine(ctx context.Context, mgr *gateway.Manager, line []byte) outboundResponse {
	var req inboundRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return outboundResponse{Error: &rpcframe.RPCError{Code: -32700, Message: "parse error: " + err.Error()}}
	}

	result, err := dispatch(ctx, mgr, req.Method, req.Params)
	if err != nil {
		return outboundResponse{ID: req.ID, Error: &rpcframe.RPCError{Code: -32000, Message: err.Error()}}
	}
	return outboundResponse{ID: req.ID, Result: result}
}
