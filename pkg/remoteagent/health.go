package remoteagent

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HealthMonitor periodically pings a set of remote agents and caches their
// last-known status, so the API health endpoint never blocks on a live
// network call. Grounded on pkg/mcp/health.go's background-loop-with-cache
// pattern, generalized from MCP servers to remote agent servers.
type HealthMonitor struct {
	mu       sync.RWMutex
	agents   map[string]*RemoteAgent
	statuses map[string]Status
	interval time.Duration

	stop chan struct{}
	once sync.Once
}

// Status is the cached health of one remote agent.
type Status struct {
	Healthy   bool
	Circuit   CircuitState
	CheckedAt time.Time
}

// NewHealthMonitor builds a monitor over the given agents, checking every
// interval.
func NewHealthMonitor(agents map[string]*RemoteAgent, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HealthMonitor{
		agents:   agents,
		statuses: make(map[string]Status, len(agents)),
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the background check loop. Call Stop to terminate it.
func (m *HealthMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.checkAll(ctx)
		for {
			select {
			case <-ticker.C:
				m.checkAll(ctx)
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *HealthMonitor) checkAll(ctx context.Context) {
	m.mu.RLock()
	agents := make(map[string]*RemoteAgent, len(m.agents))
	for k, v := range m.agents {
		agents[k] = v
	}
	m.mu.RUnlock()

	for tag, ra := range agents {
		healthy, circuit := ra.HealthCheck(ctx)
		if !healthy {
			slog.Warn("remote agent health check failed", "agent_type", tag, "circuit", circuit)
		}
		m.mu.Lock()
		m.statuses[tag] = Status{Healthy: healthy, Circuit: circuit, CheckedAt: time.Now()}
		m.mu.Unlock()
	}
}

// Statuses returns a snapshot of the last-known health per agent type.
func (m *HealthMonitor) Statuses() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Status, len(m.statuses))
	for k, v := range m.statuses {
		out[k] = v
	}
	return out
}

// IsHealthy reports whether every monitored remote agent last checked
// healthy.
func (m *HealthMonitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// Stop terminates the background loop.
func (m *HealthMonitor) Stop() {
	m.once.Do(func() { close(m.stop) })
}
