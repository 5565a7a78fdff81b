// Package config provides configuration management for the CKD
// question-answering core: server binding, database connection, session and
// token-budget policy, retrieval engine tuning, and per-agent overrides.
package config

import "time"

// Config is the umbrella configuration object returned by Initialize().
type Config struct {
	configDir string

	Server    ServerConfig
	Session   SessionConfig
	Retrieval RetrievalConfig
	Retention RetentionConfig
	Infra     InfraConfig

	LLMProviderRegistry *LLMProviderRegistry
	AgentRegistry       *AgentRegistry
}

// InfraConfig holds connection settings for the external document/vector/
// cache stores the retrieval engine fronts (spec.md §1 scopes the stores
// themselves out, but dialing them is this core's responsibility). The
// relational database connection is loaded separately, the teacher's way,
// via database.LoadConfigFromEnv. Credentials here are expected to arrive
// as `${VAR}` references expanded by envexpand.go, never written in
// plaintext to ckdqa.yaml.
type InfraConfig struct {
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	PineconeAPIKey    string `yaml:"pinecone_api_key"`
	PineconeIndexHost string `yaml:"pinecone_index_host"`

	RedisAddr string `yaml:"redis_addr,omitempty"`
}

// ServerConfig controls HTTP binding and static dashboard serving.
type ServerConfig struct {
	Addr             string   `yaml:"addr"`
	DashboardDir     string   `yaml:"dashboard_dir,omitempty"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins,omitempty"`
}

// SessionConfig tunes pkg/sessionpolicy's Manager, Ledger, and Sweeper.
type SessionConfig struct {
	Timeout             time.Duration `yaml:"timeout"`
	IdleTimeout         time.Duration `yaml:"idle_timeout"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	MaxTokensPerSession int           `yaml:"max_tokens_per_session"`
	MaxConcurrentAgents int           `yaml:"max_concurrent_agents"`
	HistoryLimit        int           `yaml:"history_limit"`
}

// RetrievalConfig tunes pkg/retrieval's Engine and its two caches.
type RetrievalConfig struct {
	Namespace              string        `yaml:"namespace"`
	EmbeddingCacheDir       string        `yaml:"embedding_cache_dir"`
	EmbeddingCacheMaxItems  int           `yaml:"embedding_cache_max_items"`
	QueryCacheMaxItems      int           `yaml:"query_cache_max_items"`
	QueryCacheTTL           time.Duration `yaml:"query_cache_ttl"`
	SearchLimit             int           `yaml:"search_limit"`
}

// RetentionConfig controls how long durable session/history rows survive in
// pkg/database's Store, mirroring the teacher's RetentionConfig concern but
// scoped to the sessions/conversation_history/token_usage tables instead of
// alert_sessions/events.
type RetentionConfig struct {
	MaxSessionAge   time.Duration `yaml:"max_session_age"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Stats reports configuration registry sizes for the health endpoint.
type Stats struct {
	LLMProviders int
	Agents       int
}

func (c *Config) Stats() Stats {
	return Stats{
		LLMProviders: c.LLMProviderRegistry.Len(),
		Agents:       c.AgentRegistry.Len(),
	}
}

// ConfigDir returns the directory Initialize loaded YAML from.
func (c *Config) ConfigDir() string { return c.configDir }

// GetLLMProvider retrieves an LLM provider configuration by name.
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}

// GetAgent retrieves a domain agent's configuration overrides by tag.
func (c *Config) GetAgent(tag string) (*AgentConfig, error) {
	return c.AgentRegistry.Get(tag)
}
