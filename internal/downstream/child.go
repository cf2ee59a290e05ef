// Package downstream owns the lifecycle of one spawned downstream process:
// starting it, performing the MCP handshake, running its pending-request
// table and reader loop, and terminating it. It imports catalog (to build
// ToolInfo records and report ServerStatus) but catalog never imports this
// package, so there is no cycle between process management and the tool
// index.
package downstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/config"
	"github.com/mcpgateway/gateway/internal/rpcframe"
)

// killGrace is how long Terminate waits after SIGTERM before escalating to
// SIGKILL.
const killGrace = 5 * time.Second

// ManagedChild is one running (or stopped) downstream server process: its
// exec.Cmd, wire reader/writer, pending-request table, and observable
// status.
type ManagedChild struct {
	cfg config.ServerConfig

	mu           sync.Mutex
	cmd          *exec.Cmd
	writer       *rpcframe.Writer
	stdin        io.WriteCloser
	pending      *PendingTable
	status       catalog.ServerStatus
	externalKill func() error // set instead of cmd for an adopted process

	readerDone chan struct{}
	exited     chan struct{} // closed once by awaitExit's single cmd.Wait() call
	cancelCtx  context.CancelFunc
}

// AdoptedProcess describes an already-running downstream process that an
// external collaborator (the manifest/installer subsystem — out of this
// core's scope) spawned and wants the gateway to manage from here on.
// The core never starts the process itself; it only takes ownership of
// its stdio and plugs it into the same handshake and reader loop a
// spawned child gets.
type AdoptedProcess struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Stderr io.Reader    // optional
	Kill   func() error // terminates the process; used by Terminate
}

// NewManagedChild creates a stopped child for cfg.
func NewManagedChild(cfg config.ServerConfig) *ManagedChild {
	return &ManagedChild{
		cfg:     cfg,
		pending: NewPendingTable(),
		status: catalog.ServerStatus{
			Name:   cfg.Name,
			Status: catalog.StatusOffline,
		},
	}
}

// Name returns the configured server name.
func (mc *ManagedChild) Name() string { return mc.cfg.Name }

// Pending exposes the child's pending table for the health monitor and the
// cancel operation.
func (mc *ManagedChild) Pending() *PendingTable { return mc.pending }

// Start spawns the child process and wires its stdio pipes, but performs
// no protocol handshake — that is Connect's job (internal/downstream
// connector.go), mirroring the teacher's separation of process spawn from
// MCP initialize.
func (mc *ManagedChild) Start(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.cmd != nil {
		return fmt.Errorf("downstream %q: already started", mc.cfg.Name)
	}

	childCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(childCtx, mc.cfg.Command, mc.cfg.Args...)
	if mc.cfg.Cwd != "" {
		cmd.Dir = mc.cfg.Cwd
	}
	cmd.Env = os.Environ()
	for k, v := range mc.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("downstream %q: stdin pipe: %w", mc.cfg.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("downstream %q: stdout pipe: %w", mc.cfg.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("downstream %q: stderr pipe: %w", mc.cfg.Name, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		mc.status.Status = catalog.StatusError
		mc.status.LastError = err.Error()
		return fmt.Errorf("downstream %q: start process: %w", mc.cfg.Name, err)
	}

	mc.cmd = cmd
	mc.stdin = stdin
	mc.writer = rpcframe.NewWriter(stdin)
	mc.cancelCtx = cancel
	mc.readerDone = make(chan struct{})
	mc.exited = make(chan struct{})
	mc.status.Status = catalog.StatusConnecting
	mc.status.LastError = ""

	go drainStderr(mc.cfg.Name, stderr)
	go mc.runReader(stdout)
	go mc.awaitExit(cmd)

	return nil
}

// Adopt wires mc to an already-running external process's stdio,
// skipping Start's exec.Command spawn entirely. Connect still performs
// the initialize/tools/list handshake exactly as it does for a spawned
// child, so Adopt and Start are interchangeable preconditions for it.
func (mc *ManagedChild) Adopt(proc AdoptedProcess) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.cmd != nil || mc.stdin != nil {
		return fmt.Errorf("downstream %q: already started", mc.cfg.Name)
	}
	if proc.Stdin == nil || proc.Stdout == nil {
		return fmt.Errorf("downstream %q: adopted process missing stdin/stdout pipe", mc.cfg.Name)
	}

	mc.stdin = proc.Stdin
	mc.writer = rpcframe.NewWriter(proc.Stdin)
	mc.externalKill = proc.Kill
	mc.readerDone = make(chan struct{})
	mc.status.Status = catalog.StatusConnecting
	mc.status.LastError = ""

	if proc.Stderr != nil {
		go drainStderr(mc.cfg.Name, proc.Stderr)
	}
	go mc.runReader(proc.Stdout)

	return nil
}

// drainStderr reads a child's stderr until it closes, logging each chunk
// read, so a full pipe buffer can never block its stdout.
func drainStderr(name string, r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			log.Printf("downstream %q stderr: %s", name, buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// awaitExit waits for the child process to exit and records the fact as
// a disconnect, unless Terminate already put the child in StatusOffline.
// It is the sole caller of cmd.Wait() for this child — Terminate waits on
// mc.exited rather than calling cmd.Wait() itself, since calling Wait
// concurrently from two goroutines is a data race on the underlying
// exec.Cmd.
func (mc *ManagedChild) awaitExit(cmd *exec.Cmd) {
	err := cmd.Wait()
	defer close(mc.exited)

	mc.mu.Lock()
	alreadyStopped := mc.status.Status == catalog.StatusOffline
	if !alreadyStopped {
		mc.status.Status = catalog.StatusError
		if err != nil {
			mc.status.LastError = fmt.Sprintf("process exited: %v", err)
		} else {
			mc.status.LastError = "process exited"
		}
	}
	mc.mu.Unlock()

	if !alreadyStopped {
		mc.pending.DisconnectAll(&ErrDisconnected{Server: mc.cfg.Name})
	}
}

// Call allocates a request id, registers a pending entry, writes the
// request, and waits for the reader loop (or the timeout timer, or a
// disconnect, or a cancel) to resolve it.
func (mc *ManagedChild) Call(ctx context.Context, toolID, method string, params any, timeoutMs int) (json.RawMessage, error) {
	mc.mu.Lock()
	writer := mc.writer
	mc.mu.Unlock()
	if writer == nil {
		return nil, fmt.Errorf("downstream %q: not started", mc.cfg.Name)
	}

	id := mc.pending.NextID()
	waiter := mc.pending.Register(id, toolID, method, timeoutMs)

	if err := writer.WriteRequest(rpcframe.Request{ID: id, Method: method, Params: params}); err != nil {
		mc.pending.Fail(id, err)
		return nil, fmt.Errorf("downstream %q: write %s: %w", mc.cfg.Name, method, err)
	}

	select {
	case <-ctx.Done():
		mc.pending.Fail(id, ctx.Err())
		return nil, ctx.Err()
	case res := <-waiter:
		return res.Data, res.Err
	}
}

// RequestID combines this child's name with the numeric request id
// passed in, forming the host-facing "server::id" request_id string.
func (mc *ManagedChild) RequestID(id int64) string {
	return fmt.Sprintf("%s::%d", mc.cfg.Name, id)
}

// Status returns a point-in-time snapshot of this child's ServerStatus,
// with pending_request_count and avg_response_time_ms filled from the
// live pending table.
func (mc *ManagedChild) Status() catalog.ServerStatus {
	mc.mu.Lock()
	s := mc.status
	mc.mu.Unlock()
	s.PendingRequestCount = mc.pending.Count()
	s.AvgResponseTimeMs = mc.pending.AvgResponseTimeMs()
	return s
}

// setStatus updates the lifecycle status fields under lock; used by
// Connect after a successful or failed handshake.
func (mc *ManagedChild) setStatus(mutate func(*catalog.ServerStatus)) {
	mc.mu.Lock()
	mutate(&mc.status)
	mc.mu.Unlock()
}

// Terminate sends SIGTERM, waits up to killGrace for exit, then SIGKILLs,
// failing every pending request along the way. For an adopted process
// (no owned exec.Cmd), it defers entirely to the Kill callback supplied
// at adoption time.
func (mc *ManagedChild) Terminate() {
	mc.mu.Lock()
	cmd := mc.cmd
	stdin := mc.stdin
	kill := mc.externalKill
	exited := mc.exited
	mc.status.Status = catalog.StatusOffline
	mc.mu.Unlock()

	mc.pending.DisconnectAll(&ErrDisconnected{Server: mc.cfg.Name})

	if cmd == nil || cmd.Process == nil {
		if stdin != nil {
			stdin.Close()
		}
		if kill != nil {
			if err := kill(); err != nil {
				log.Printf("downstream %q: terminate adopted process: %v", mc.cfg.Name, err)
			}
		}
		return
	}

	if stdin != nil {
		stdin.Close()
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-exited:
	case <-time.After(killGrace):
		cmd.Process.Kill()
		<-exited
	}

	if mc.cancelCtx != nil {
		mc.cancelCtx()
	}
}
