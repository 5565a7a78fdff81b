package config

import "fmt"

// Validator validates configuration comprehensively with clear error
// messages, mirroring the teacher's ordered-sub-validator Validator
// (pkg/config/validator.go) but scoped to this core's smaller config surface.
type Validator struct {
	cfg *Config
}

func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll validates in dependency order: server → session → retrieval →
// LLM providers, stopping at the first failure. The retention and agent
// sections are not validated.
func (v *Validator) ValidateAll() error {
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := v.validateSession(); err != nil {
		return fmt.Errorf("session validation failed: %w", err)
	}
	if err := v.validateRetrieval(); err != nil {
		return fmt.Errorf("retrieval validation failed: %w", err)
	}
	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateServer() error {
	if v.cfg.Server.Addr == "" {
		return NewValidationError("server", "server", "addr", ErrMissingRequiredField)
	}
	return nil
}

func (v *Validator) validateSession() error {
	s := v.cfg.Session
	if s.Timeout <= 0 {
		return NewValidationError("session", "session", "timeout", ErrInvalidValue)
	}
	if s.IdleTimeout <= 0 || s.IdleTimeout > s.Timeout {
		return NewValidationError("session", "session", "idle_timeout", ErrInvalidValue)
	}
	if s.MaxTokensPerSession <= 0 {
		return NewValidationError("session", "session", "max_tokens_per_session", ErrInvalidValue)
	}
	if s.MaxConcurrentAgents <= 0 {
		return NewValidationError("session", "session", "max_concurrent_agents", ErrInvalidValue)
	}
	return nil
}

func (v *Validator) validateRetrieval() error {
	r := v.cfg.Retrieval
	if r.Namespace == "" {
		return NewValidationError("retrieval", "retrieval", "namespace", ErrMissingRequiredField)
	}
	if r.SearchLimit <= 0 {
		return NewValidationError("retrieval", "retrieval", "search_limit", ErrInvalidValue)
	}
	return nil
}

func (v *Validator) validateLLMProviders() error {
	if v.cfg.LLMProviderRegistry.Len() == 0 {
		return NewValidationError("llm_providers", "llm_providers", "", ErrMissingRequiredField)
	}
	for name, p := range v.cfg.LLMProviderRegistry.GetAll() {
		if p.BaseURL == "" {
			return NewValidationError("llm_provider", name, "base_url", ErrMissingRequiredField)
		}
		if p.Model == "" {
			return NewValidationError("llm_provider", name, "model", ErrMissingRequiredField)
		}
	}
	return nil
}
