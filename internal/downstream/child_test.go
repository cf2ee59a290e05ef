package downstream

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/config"
)

// TestHelperProcess is not a real test: it is re-executed as a subprocess
// (os.Args[0] with -test.run=TestHelperProcess) to stand in for a
// downstream MCP server, in the manner of os/exec's own test suite. It
// speaks just enough JSON-RPC to exercise Start/Connect/Call/Terminate.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		if len(req.ID) == 0 {
			// Notification (e.g. notifications/initialized): no response.
			continue
		}

		var result string
		switch req.Method {
		case "initialize":
			result = `{"protocolVersion":"2024-11-05"}`
		case "tools/list":
			result = os.Getenv("FAKE_TOOLS_LIST")
			if result == "" {
				result = `{"tools":[{"name":"echo","description":"echoes args","inputSchema":{"type":"object"}}]}`
			}
		case "slow":
			time.Sleep(200 * time.Millisecond)
			result = `{"slept":true}`
		case "fail":
			os.Stdout.WriteString(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-1,"message":"boom"}}` + "\n")
			continue
		default:
			result = `{}`
		}
		os.Stdout.WriteString(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}` + "\n")
	}
}

func helperConfig(name string) config.ServerConfig {
	return config.ServerConfig{
		Name:    name,
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--"},
		Env:     map[string]string{"GO_WANT_HELPER_PROCESS": "1"},
	}
}

func TestManagedChild_StartConnectCall(t *testing.T) {
	mc := NewManagedChild(helperConfig("echo-server"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mc.Terminate()

	infos, err := mc.Connect(ctx, 100)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(infos) != 1 || infos[0].ToolName != "echo" {
		t.Fatalf("Connect tools = %+v, want one tool named echo", infos)
	}
	if infos[0].ToolID != "echo-server::echo" {
		t.Errorf("ToolID = %q", infos[0].ToolID)
	}

	status := mc.Status()
	if status.Status != catalog.StatusOnline {
		t.Errorf("Status = %v, want online", status.Status)
	}
	if status.ToolCount != 1 {
		t.Errorf("ToolCount = %d, want 1", status.ToolCount)
	}

	result, err := mc.Call(ctx, "echo-server::echo", "tools/call", map[string]any{"name": "echo"}, 5000)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(result) != "{}" {
		t.Errorf("Call result = %s, want {}", result)
	}
}

func TestManagedChild_Call_RPCError(t *testing.T) {
	mc := NewManagedChild(helperConfig("fail-server"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mc.Terminate()

	if _, err := mc.Connect(ctx, 100); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := mc.Call(ctx, "fail-server::fail", "fail", nil, 5000)
	if err == nil {
		t.Fatal("expected an error from the fail method")
	}
}

func TestManagedChild_Call_Timeout(t *testing.T) {
	mc := NewManagedChild(helperConfig("slow-server"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mc.Terminate()

	if _, err := mc.Connect(ctx, 100); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := mc.Call(ctx, "slow-server::slow", "slow", nil, 20)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestManagedChild_Terminate_FailsPending(t *testing.T) {
	mc := NewManagedChild(helperConfig("term-server"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := mc.Connect(ctx, 100); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := mc.Call(ctx, "term-server::slow", "slow", nil, 10_000)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	mc.Terminate()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected the in-flight call to fail on terminate")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight call never unblocked after Terminate")
	}

	if mc.Status().Status != catalog.StatusOffline {
		t.Errorf("Status after Terminate = %v, want offline", mc.Status().Status)
	}
}

func TestManagedChild_Connect_NoLimitMeansUnbounded(t *testing.T) {
	mc := NewManagedChild(helperConfig("echo-server"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mc.Terminate()

	infos, err := mc.Connect(ctx, 0) // 0 means "no limit" per maxToolsPerServer semantics
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("len(infos) = %d, want 1", len(infos))
	}
}

func TestManagedChild_Connect_TruncatesToMaxToolsPerServer(t *testing.T) {
	cfg := helperConfig("wide-server")
	cfg.Env["FAKE_TOOLS_LIST"] = `{"tools":[
		{"name":"a","description":"tool a"},
		{"name":"b","description":"tool b"},
		{"name":"c","description":"tool c"}
	]}`

	mc := NewManagedChild(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mc.Terminate()

	infos, err := mc.Connect(ctx, 2)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("len(infos) = %d, want 2 after truncation to maxToolsPerServer", len(infos))
	}
	if mc.Status().ToolCount != 2 {
		t.Errorf("Status().ToolCount = %d, want 2", mc.Status().ToolCount)
	}
}

// TestManagedChild_Start_BadCommand verifies Start surfaces spawn errors
// for a command that does not exist, without leaving the child half-wired.
func TestManagedChild_Start_BadCommand(t *testing.T) {
	cfg := config.ServerConfig{Name: "nope", Command: "/nonexistent/binary-xyz"}
	mc := NewManagedChild(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := mc.Start(ctx); err == nil {
		t.Fatal("expected Start to fail for a nonexistent command")
	}
}
