package config

import "time"

// builtinDefaults returns the configuration used when ckdqa.yaml omits a
// section entirely, mirroring the teacher's built-in-defaults-merged-with-
// user-YAML pattern (pkg/config/loader.go's Initialize) but with one file
// instead of three.
func builtinDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             ":8080",
			AllowedWSOrigins: []string{"*"},
		},
		Session: SessionConfig{
			Timeout:             2 * time.Hour,
			IdleTimeout:         20 * time.Minute,
			SweepInterval:       5 * time.Minute,
			MaxTokensPerSession: 100_000,
			MaxConcurrentAgents: 4,
			HistoryLimit:        50,
		},
		Retrieval: RetrievalConfig{
			Namespace:              "ckdqa",
			EmbeddingCacheDir:      "./data/embedding-cache",
			EmbeddingCacheMaxItems: 10_000,
			QueryCacheMaxItems:     1_000,
			QueryCacheTTL:          10 * time.Minute,
			SearchLimit:            5,
		},
		Retention: RetentionConfig{
			MaxSessionAge:   30 * 24 * time.Hour,
			CleanupInterval: 12 * time.Hour,
		},
		Infra: InfraConfig{
			MongoURI:          "mongodb://localhost:27017",
			MongoDatabase:     "ckdqa",
			PineconeIndexHost: "",
			RedisAddr:         "",
		},
		LLMProviderRegistry: NewLLMProviderRegistry(map[string]*LLMProviderConfig{
			"default": {
				BaseURL: "http://localhost:8090",
				Model:   "gpt-4o-mini",
				Timeout: "30s",
			},
		}),
		AgentRegistry: NewAgentRegistry(map[string]*AgentConfig{
			"nutrition":           {Collection: "nutrition"},
			"medical_welfare":     {Collection: "welfare_programs"},
			"quiz":                {Collection: "learning_material"},
			"trend_visualization": {Collection: "health_records"},
			"research_paper":      {Collection: "research_papers"},
		}),
	}
}
