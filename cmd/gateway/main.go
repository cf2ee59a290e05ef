package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcpgateway/gateway/internal/config"
	"github.com/mcpgateway/gateway/internal/gateway"
	"github.com/mcpgateway/gateway/internal/hostrpc"
	"github.com/mcpgateway/gateway/internal/policy"
	pkgconfig "github.com/mcpgateway/gateway/pkg/config"
)

func main() {
	// Load .env file, same convention as the teacher's pkg/config.LoadEnv.
	pkgconfig.LoadEnv()

	// Everything human-readable goes to stderr: stdout carries the
	// host-facing JSON-RPC response stream.
	fmt.Fprintln(os.Stderr, "╔══════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║          MCP Gateway                  ║")
	fmt.Fprintln(os.Stderr, "║   downstream multiplexer · Go          ║")
	fmt.Fprintln(os.Stderr, "╚══════════════════════════════════════╝")

	serverConfigPath := os.Getenv("MCP_GATEWAY_CONFIG")
	if serverConfigPath == "" {
		serverConfigPath = "gateway.json"
	}
	policyPath := os.Getenv("MCP_GATEWAY_POLICY")

	pol := loadPolicy(policyPath)
	loader := newConfigLoader(serverConfigPath)

	mgr := gateway.NewManager(pol, loader)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	resolved, err := loader("")
	if err != nil {
		log.Printf("⚠️  Loading server config %q: %v", serverConfigPath, err)
		resolved = nil
	}
	connectErrs := mgr.ConnectAll(ctx, resolved)
	cancel()
	for name, e := range connectErrs {
		log.Printf("⚠️  Connect %q: %v", name, e)
	}
	fmt.Fprintf(os.Stderr, "🔌 Downstream: %d/%d server(s) online\n", len(resolved)-len(connectErrs), len(resolved))
	defer mgr.DisconnectAll()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	monitor := mgr.HealthMonitor()
	go monitor.Run(runCtx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("⚡ Received signal %v, shutting down", sig)
		runCancel()
	}()

	fmt.Fprintln(os.Stderr, "📡 Serving host-facing gateway.* operations over stdio")
	if err := hostrpc.Loop(runCtx, os.Stdin, os.Stdout, mgr); err != nil && runCtx.Err() == nil {
		log.Printf("❌ Host RPC loop error: %v", err)
		os.Exit(1)
	}
}

// loadPolicy loads the policy file at path (JSON or YAML), falling back
// to spec defaults when path is empty or unreadable.
func loadPolicy(path string) policy.Config {
	if path == "" {
		return policy.Default()
	}
	pf, err := config.LoadPolicyFile(path)
	if err != nil {
		log.Printf("⚠️  Loading policy %q: %v, using defaults", path, err)
		return policy.Default()
	}
	return policy.FromFile(pf)
}

// newConfigLoader returns a gateway.ConfigLoader that reads the project
// server config file at path. "source" selects which file to reload;
// empty means "the configured project file", matching refresh's
// "reload whatever was last configured" semantics.
func newConfigLoader(path string) gateway.ConfigLoader {
	return func(source string) ([]config.ResolvedServerConfig, error) {
		target := path
		if source != "" {
			target = source
		}
		if _, statErr := os.Stat(target); statErr != nil {
			return nil, nil
		}
		resolved, err := config.LoadServerConfigFile(target, config.SourceProject)
		if err != nil {
			return nil, err
		}
		return config.ResolvePrecedence(resolved), nil
	}
}
