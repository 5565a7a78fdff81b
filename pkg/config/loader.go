package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ckdqaYAMLConfig mirrors the teacher's TarsyYAMLConfig shape: one YAML file
// whose top-level keys map onto Config's sections.
type ckdqaYAMLConfig struct {
	Server    *serverYAML                   `yaml:"server"`
	Session   *sessionYAML                  `yaml:"session"`
	Retrieval *retrievalYAML                `yaml:"retrieval"`
	Retention *retentionYAML                `yaml:"retention"`
	Infra     *InfraConfig                  `yaml:"infra"`
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
	Agents       map[string]AgentConfig       `yaml:"agents"`
}

type serverYAML struct {
	Addr             string   `yaml:"addr"`
	DashboardDir     string   `yaml:"dashboard_dir"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

type sessionYAML struct {
	Timeout             string `yaml:"timeout"`
	IdleTimeout         string `yaml:"idle_timeout"`
	SweepInterval       string `yaml:"sweep_interval"`
	MaxTokensPerSession int    `yaml:"max_tokens_per_session"`
	MaxConcurrentAgents int    `yaml:"max_concurrent_agents"`
	HistoryLimit        int    `yaml:"history_limit"`
}

type retrievalYAML struct {
	Namespace              string `yaml:"namespace"`
	EmbeddingCacheDir      string `yaml:"embedding_cache_dir"`
	EmbeddingCacheMaxItems int    `yaml:"embedding_cache_max_items"`
	QueryCacheMaxItems     int    `yaml:"query_cache_max_items"`
	QueryCacheTTL          string `yaml:"query_cache_ttl"`
	SearchLimit            int    `yaml:"search_limit"`
}

type retentionYAML struct {
	MaxSessionAge   string `yaml:"max_session_age"`
	CleanupInterval string `yaml:"cleanup_interval"`
}

// Initialize loads ckdqa.yaml from configDir (if present), expands
// environment variables, merges it over the built-in defaults, validates
// the result, and returns ready-to-use configuration. A missing file is not
// an error — the built-in defaults alone are a valid configuration for
// local development.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg := builtinDefaults()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "ckdqa.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no ckdqa.yaml found, using built-in defaults", "path", path)
			if err := NewValidator(cfg).ValidateAll(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	expanded := ExpandEnv(data)

	var parsed ckdqaYAMLConfig
	if err := yaml.Unmarshal(expanded, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
	}

	if err := applyOverrides(cfg, &parsed); err != nil {
		return nil, err
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyOverrides merges the parsed YAML onto the built-in defaults using
// mergo, the same merge library the teacher uses to layer built-in and
// user-defined agent/chain configuration (pkg/config/loader.go).
func applyOverrides(cfg *Config, parsed *ckdqaYAMLConfig) error {
	if parsed.Server != nil {
		var s ServerConfig
		if err := mergo.Merge(&s, ServerConfig(*parsed.Server), mergo.WithOverride); err != nil {
			return err
		}
		if err := mergo.Merge(&cfg.Server, s, mergo.WithOverride); err != nil {
			return err
		}
	}

	if parsed.Session != nil {
		if d, err := parseDurationField(parsed.Session.Timeout); err == nil && d > 0 {
			cfg.Session.Timeout = d
		}
		if d, err := parseDurationField(parsed.Session.IdleTimeout); err == nil && d > 0 {
			cfg.Session.IdleTimeout = d
		}
		if d, err := parseDurationField(parsed.Session.SweepInterval); err == nil && d > 0 {
			cfg.Session.SweepInterval = d
		}
		if parsed.Session.MaxTokensPerSession > 0 {
			cfg.Session.MaxTokensPerSession = parsed.Session.MaxTokensPerSession
		}
		if parsed.Session.MaxConcurrentAgents > 0 {
			cfg.Session.MaxConcurrentAgents = parsed.Session.MaxConcurrentAgents
		}
		if parsed.Session.HistoryLimit > 0 {
			cfg.Session.HistoryLimit = parsed.Session.HistoryLimit
		}
	}

	if parsed.Retrieval != nil {
		if parsed.Retrieval.Namespace != "" {
			cfg.Retrieval.Namespace = parsed.Retrieval.Namespace
		}
		if parsed.Retrieval.EmbeddingCacheDir != "" {
			cfg.Retrieval.EmbeddingCacheDir = parsed.Retrieval.EmbeddingCacheDir
		}
		if parsed.Retrieval.EmbeddingCacheMaxItems > 0 {
			cfg.Retrieval.EmbeddingCacheMaxItems = parsed.Retrieval.EmbeddingCacheMaxItems
		}
		if parsed.Retrieval.QueryCacheMaxItems > 0 {
			cfg.Retrieval.QueryCacheMaxItems = parsed.Retrieval.QueryCacheMaxItems
		}
		if d, err := parseDurationField(parsed.Retrieval.QueryCacheTTL); err == nil && d > 0 {
			cfg.Retrieval.QueryCacheTTL = d
		}
		if parsed.Retrieval.SearchLimit > 0 {
			cfg.Retrieval.SearchLimit = parsed.Retrieval.SearchLimit
		}
	}

	if parsed.Retention != nil {
		if d, err := parseDurationField(parsed.Retention.MaxSessionAge); err == nil && d > 0 {
			cfg.Retention.MaxSessionAge = d
		}
		if d, err := parseDurationField(parsed.Retention.CleanupInterval); err == nil && d > 0 {
			cfg.Retention.CleanupInterval = d
		}
	}

	if parsed.Infra != nil {
		if err := mergo.Merge(&cfg.Infra, *parsed.Infra, mergo.WithOverride); err != nil {
			return err
		}
	}

	if len(parsed.LLMProviders) > 0 {
		merged := cfg.LLMProviderRegistry.GetAll()
		for name, p := range parsed.LLMProviders {
			v := p
			merged[name] = &v
		}
		cfg.LLMProviderRegistry = NewLLMProviderRegistry(merged)
	}

	if len(parsed.Agents) > 0 {
		merged := cfg.AgentRegistry.GetAll()
		for tag, a := range parsed.Agents {
			base := merged[tag]
			v := a
			if base != nil {
				if v.Collection == "" {
					v.Collection = base.Collection
				}
				if len(v.Capabilities) == 0 {
					v.Capabilities = base.Capabilities
				}
			}
			merged[tag] = &v
		}
		cfg.AgentRegistry = NewAgentRegistry(merged)
	}

	return nil
}

func parseDurationField(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
