package config

import (
	"fmt"
	"sync"
)

// LLMProviderConfig defines one reachable LLM completion backend. The
// backend itself is an external service (spec.md §1 scopes generation out
// of this core); this config only tells pkg/llmclient.NewHTTPClient where
// to dial and which model name to request.
type LLMProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout string        `yaml:"timeout,omitempty"`
}

// LLMProviderRegistry stores LLM provider configurations with thread-safe access.
type LLMProviderRegistry struct {
	providers map[string]*LLMProviderConfig
	mu        sync.RWMutex
}

func NewLLMProviderRegistry(providers map[string]*LLMProviderConfig) *LLMProviderRegistry {
	copied := make(map[string]*LLMProviderConfig, len(providers))
	for k, v := range providers {
		copied[k] = v
	}
	return &LLMProviderRegistry{providers: copied}
}

func (r *LLMProviderRegistry) Get(name string) (*LLMProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLLMProviderNotFound, name)
	}
	return p, nil
}

func (r *LLMProviderRegistry) GetAll() map[string]*LLMProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*LLMProviderConfig, len(r.providers))
	for k, v := range r.providers {
		out[k] = v
	}
	return out
}

func (r *LLMProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// AgentConfig holds per-domain-agent settings (collection name, system
// prompt, capability list, remote endpoint). Only RemoteBaseURL takes
// effect: the pkg/domainagents constructors use their own built-in
// collection, prompt and capabilities and do not read the other fields.
type AgentConfig struct {
	Collection   string   `yaml:"collection,omitempty"`
	SystemPrompt string   `yaml:"system_prompt,omitempty"`
	Capabilities []string `yaml:"capabilities,omitempty"`

	// RemoteBaseURL, when set, switches this agent tag from an in-process
	// domainagents implementation to a remoteagent.RemoteAgent fronting an
	// externally hosted agent server (spec.md §2/§4.3). Empty means local.
	RemoteBaseURL string `yaml:"remote_base_url,omitempty"`
}

// AgentRegistry stores per-agent overrides keyed by agent tag
// (nutrition, medical_welfare, quiz, trend_visualization, research_paper).
type AgentRegistry struct {
	agents map[string]*AgentConfig
	mu     sync.RWMutex
}

func NewAgentRegistry(agents map[string]*AgentConfig) *AgentRegistry {
	copied := make(map[string]*AgentConfig, len(agents))
	for k, v := range agents {
		copied[k] = v
	}
	return &AgentRegistry{agents: copied}
}

func (r *AgentRegistry) Get(tag string) (*AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, tag)
	}
	return a, nil
}

func (r *AgentRegistry) GetAll() map[string]*AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*AgentConfig, len(r.agents))
	for k, v := range r.agents {
		out[k] = v
	}
	return out
}

func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
