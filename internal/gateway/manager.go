// Package gateway wires the catalog, policy, and downstream packages
// together into the five host-facing operations and the
// connect/disconnect/adopt lifecycle that feeds them.
package gateway

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/config"
	"github.com/mcpgateway/gateway/internal/downstream"
	"github.com/mcpgateway/gateway/internal/health"
	"github.com/mcpgateway/gateway/internal/policy"
)

// ConfigLoader resolves server configs for a named source. Refresh passes
// its source argument through unchanged; what an empty source loads is
// up to the loader.
type ConfigLoader func(source string) ([]config.ResolvedServerConfig, error)

// Manager is the registry/manager façade: it owns the catalog, every
// child's lifecycle, and the policy applied across all five gateway
// operations.
type Manager struct {
	mu       sync.RWMutex
	catalog  *catalog.Catalog
	policy   policy.Config
	redactor *policy.CompiledRedactor
	children map[string]*downstream.ManagedChild

	loadConfigs ConfigLoader
	lastSource  string
}

// NewManager creates an empty Manager. Call ConnectAll (or Refresh) to
// populate it before serving any host-facing operation.
func NewManager(pol policy.Config, loader ConfigLoader) *Manager {
	redactor, errs := pol.CompileRedactor()
	for _, e := range errs {
		log.Printf("gateway: %v", e)
	}
	return &Manager{
		catalog:     catalog.New(),
		policy:      pol,
		redactor:    redactor,
		children:    make(map[string]*downstream.ManagedChild),
		loadConfigs: loader,
	}
}

// Children returns a snapshot slice of every currently tracked child, for
// the health monitor to scan.
func (m *Manager) Children() []*downstream.ManagedChild {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*downstream.ManagedChild, 0, len(m.children))
	for _, c := range m.children {
		out = append(out, c)
	}
	return out
}

// HealthMonitor builds a health.Monitor bound to this manager's live
// child set.
func (m *Manager) HealthMonitor() *health.Monitor {
	return health.NewMonitor(m.Children)
}

// ConnectAll spawns and connects every server config that passes the
// server-level policy, installing each server's tools into the catalog.
// It always bumps the catalog's revision once the attempt completes,
// even when some (or all) servers failed to connect.
func (m *Manager) ConnectAll(ctx context.Context, resolved []config.ResolvedServerConfig) map[string]error {
	errs := make(map[string]error)

	for _, rc := range resolved {
		if !m.policy.ServerAllowed(rc.Name) {
			continue
		}
		if err := m.connectOne(ctx, rc.Config); err != nil {
			errs[rc.Name] = err
		}
	}

	m.catalog.Bump()
	return errs
}

// connectOne spawns, starts, and performs the MCP handshake for a single
// server, installing its tools on success. On any failure the spawned
// child (if any) is terminated and removed.
func (m *Manager) connectOne(ctx context.Context, cfg config.ServerConfig) error {
	child := downstream.NewManagedChild(cfg)

	if err := child.Start(ctx); err != nil {
		return fmt.Errorf("connect %q: %w", cfg.Name, err)
	}

	infos, err := child.Connect(ctx, m.policy.MaxToolsPerServer)
	if err != nil {
		child.Terminate()
		return fmt.Errorf("connect %q: %w", cfg.Name, err)
	}

	m.mu.Lock()
	m.children[cfg.Name] = child
	m.mu.Unlock()

	for _, info := range infos {
		m.catalog.Put(info)
	}
	return nil
}

// DisconnectAll terminates every tracked child and clears the catalog,
// in preparation for a subsequent ConnectAll. Errors during termination
// are logged and swallowed: disconnect must make progress for every
// child.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	children := m.children
	m.children = make(map[string]*downstream.ManagedChild)
	m.mu.Unlock()

	for name, child := range children {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("gateway: panic terminating %q: %v", name, r)
				}
			}()
			child.Terminate()
		}()
	}
	m.catalog.Clear()
}

// Adopt wires an already-running, externally spawned process (the
// manifest/installer subsystem's job to produce — out of this core's
// scope) into the gateway under cfg.Name: it performs the same
// initialize/tools/list handshake Connect uses, validating before
// committing any shared state, and rolls back (terminating the process,
// touching neither the children map nor the catalog) on failure.
func (m *Manager) Adopt(ctx context.Context, cfg config.ServerConfig, proc downstream.AdoptedProcess) error {
	if !m.policy.ServerAllowed(cfg.Name) {
		return &ErrPolicyBlocked{ToolID: cfg.Name}
	}

	child := downstream.NewManagedChild(cfg)
	if err := child.Adopt(proc); err != nil {
		return fmt.Errorf("adopt %q: %w", cfg.Name, err)
	}

	infos, err := child.Connect(ctx, m.policy.MaxToolsPerServer)
	if err != nil {
		child.Terminate()
		return fmt.Errorf("adopt %q: %w", cfg.Name, err)
	}

	m.mu.Lock()
	if old, exists := m.children[cfg.Name]; exists {
		old.Terminate()
		m.catalog.RemoveServer(cfg.Name)
	}
	m.children[cfg.Name] = child
	m.mu.Unlock()

	for _, info := range infos {
		m.catalog.Put(info)
	}
	m.catalog.Bump()
	return nil
}

// childFor returns the managed child owning toolID's server, if any.
func (m *Manager) childFor(serverName string) (*downstream.ManagedChild, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.children[serverName]
	return c, ok
}
