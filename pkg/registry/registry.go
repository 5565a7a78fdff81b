// Package registry maintains the mapping from agent type tag to agent
// constructor. Registration happens at process start (via Register calls
// in each agent package's init, or explicit wiring in main); lookup is
// read-mostly thereafter and requires no lock on the steady state.
package registry

import (
	"sync"

	"github.com/codeready-toolchain/ckdqa/pkg/agenterrors"
	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
)

// Constructor builds an Agent instance, optionally injecting dependencies
// (LLM client, retrieval engine, etc.) captured in a closure at
// registration time. Go has no decorator-based auto-registration, so
// unlike the Python AgentRegistry.register decorator, registration here is
// an explicit Register call — the registry stores constructors, not
// instances, to support per-request dependency injection just as the
// original does.
type Constructor func() contracts.Agent

// Registry is a read-mostly map from agent type tag to Constructor.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds (or replaces) a constructor for the given tag. Intended to
// be called during process start-up only.
func (r *Registry) Register(agentType string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[agentType] = ctor
}

// CreateAgent builds a fresh agent instance for the given tag.
func (r *Registry) CreateAgent(agentType string) (contracts.Agent, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[agentType]
	r.mu.RUnlock()
	if !ok {
		return nil, agenterrors.NewAgentNotFoundError(agentType)
	}
	return ctor(), nil
}

// ListAgents returns the currently registered agent type tags.
func (r *Registry) ListAgents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for tag := range r.ctors {
		out = append(out, tag)
	}
	return out
}

// AgentsInfo returns metadata for every registered agent, building one
// throwaway instance per tag (metadata is an instance property, not a
// class-level attribute, mirroring get_agents_info in the original
// registry — which notes the same limitation and falls back to class
// name when instantiation fails).
func (r *Registry) AgentsInfo() map[string]contracts.AgentMetadata {
	r.mu.RLock()
	ctors := make(map[string]Constructor, len(r.ctors))
	for k, v := range r.ctors {
		ctors[k] = v
	}
	r.mu.RUnlock()

	info := make(map[string]contracts.AgentMetadata, len(ctors))
	for tag, ctor := range ctors {
		info[tag] = ctor().Metadata()
	}
	return info
}
