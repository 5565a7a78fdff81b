// ckdqa-core serves the orchestration/retrieval API for the chronic kidney
// disease question-answering system: session lifecycle, intent routing,
// hybrid retrieval, and domain-agent dispatch over HTTP and websocket.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"

	"github.com/codeready-toolchain/ckdqa/pkg/api"
	"github.com/codeready-toolchain/ckdqa/pkg/config"
	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
	"github.com/codeready-toolchain/ckdqa/pkg/database"
	"github.com/codeready-toolchain/ckdqa/pkg/domainagents"
	"github.com/codeready-toolchain/ckdqa/pkg/llmclient"
	"github.com/codeready-toolchain/ckdqa/pkg/registry"
	"github.com/codeready-toolchain/ckdqa/pkg/remoteagent"
	"github.com/codeready-toolchain/ckdqa/pkg/retrieval"
	"github.com/codeready-toolchain/ckdqa/pkg/router"
	"github.com/codeready-toolchain/ckdqa/pkg/sessionpolicy"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbClient.DB().Close()
	store := database.NewStore(dbClient)
	slog.Info("connected to PostgreSQL")

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Infra.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			slog.Error("error disconnecting from MongoDB", "error", err)
		}
	}()
	docStore := retrieval.NewMongoDocStore(mongoClient.Database(cfg.Infra.MongoDatabase))
	slog.Info("connected to MongoDB", "database", cfg.Infra.MongoDatabase)

	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.Infra.PineconeAPIKey})
	if err != nil {
		log.Fatalf("Failed to create Pinecone client: %v", err)
	}
	idxConn, err := pc.Index(pinecone.NewIndexConnParams{Host: cfg.Infra.PineconeIndexHost})
	if err != nil {
		log.Fatalf("Failed to connect to Pinecone index: %v", err)
	}
	defer idxConn.Close()
	vectorStore := retrieval.NewPineconeVectorStore(idxConn)
	slog.Info("connected to Pinecone index")

	var rdb *redis.Client
	if cfg.Infra.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Infra.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis ping failed, query cache will run in-process only", "error", err)
			rdb = nil
		} else {
			slog.Info("connected to redis query cache", "addr", cfg.Infra.RedisAddr)
		}
	}

	defaultProvider, err := cfg.GetLLMProvider("default")
	if err != nil {
		log.Fatalf("Failed to load default LLM provider: %v", err)
	}
	llmTimeout, err := time.ParseDuration(defaultProvider.Timeout)
	if err != nil || llmTimeout <= 0 {
		llmTimeout = 30 * time.Second
	}
	llmClient := llmclient.NewHTTPClient(defaultProvider.BaseURL, llmTimeout)
	embedder := llmclient.NewHTTPEmbedder(defaultProvider.BaseURL, defaultProvider.Model, llmTimeout)

	embCache := retrieval.NewEmbeddingCache(cfg.Retrieval.EmbeddingCacheDir, cfg.Retrieval.EmbeddingCacheMaxItems)
	queryCache := retrieval.NewQueryCache(cfg.Retrieval.QueryCacheMaxItems, cfg.Retrieval.QueryCacheTTL, rdb)
	engine := retrieval.NewEngine(docStore, vectorStore, embedder, embCache, queryCache, cfg.Retrieval.Namespace)

	reg := registry.New()
	remoteAgents := registerDomainAgents(reg, cfg, engine, llmClient, defaultProvider.Model)

	sessions := sessionpolicy.NewManager(cfg.Session.Timeout, cfg.Session.IdleTimeout)
	ledgers := sessionpolicy.NewLedgerRegistry(cfg.Session.MaxTokensPerSession)
	streams := sessionpolicy.NewStreamRegistry()
	sweeper := sessionpolicy.NewSweeper(sessions, ledgers, streams, cfg.Session.SweepInterval)
	retentionSweeper := sessionpolicy.NewRetentionSweeper(store, cfg.Retention.MaxSessionAge, cfg.Retention.CleanupInterval)

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go sweeper.Run(sweepCtx)
	go retentionSweeper.Run(sweepCtx)

	classifier := router.NewClassifier(llmClient, defaultProvider.Model)
	synthesizer := router.NewSynthesizer(llmClient, defaultProvider.Model)
	rt := router.NewRouter(reg, classifier, synthesizer, sessions, ledgers, streams, cfg.Session.MaxConcurrentAgents)

	server := api.NewServer(cfg, dbClient, store, sessions, reg, rt)
	if cfg.Server.DashboardDir != "" {
		server.SetDashboardDir(cfg.Server.DashboardDir)
	}

	if len(remoteAgents) > 0 {
		healthMonitor := remoteagent.NewHealthMonitor(remoteAgents, 15*time.Second)
		healthMonitor.Start(sweepCtx)
		defer healthMonitor.Stop()
		server.SetRemoteHealthMonitor(healthMonitor)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := server.Start(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("server error: %v", err)
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
	}
}

// registerDomainAgents registers the five domain agents (spec.md §2's
// "black-box capabilities satisfying a uniform interface"), preferring a
// remoteagent.RemoteAgent over the in-process implementation whenever the
// agent's configuration names a remote_base_url. It returns the remote
// agents it created, keyed by tag, so main can build a background
// HealthMonitor (spec.md §4.3) over exactly the agents that need one.
func registerDomainAgents(reg *registry.Registry, cfg *config.Config, engine *retrieval.Engine, llm llmclient.Client, model string) map[string]*remoteagent.RemoteAgent {
	remoteAgents := make(map[string]*remoteagent.RemoteAgent)

	register := func(tag string, localCtor func(acfg *config.AgentConfig) contracts.Agent) {
		acfg, err := cfg.GetAgent(tag)
		if err != nil {
			slog.Warn("no configuration for agent, skipping registration", "agent", tag)
			return
		}
		if acfg.RemoteBaseURL != "" {
			remoteCfg := remoteagent.Config{AgentType: tag, BaseURL: acfg.RemoteBaseURL}
			ra := remoteagent.NewRemoteAgent(remoteCfg, http.DefaultClient)
			remoteAgents[tag] = ra
			reg.Register(tag, func() contracts.Agent { return ra })
			return
		}
		reg.Register(tag, func() contracts.Agent { return localCtor(acfg) })
	}

	register("nutrition", func(*config.AgentConfig) contracts.Agent {
		return domainagents.NewNutritionAgent(engine, llm, model)
	})
	register("medical_welfare", func(*config.AgentConfig) contracts.Agent {
		return domainagents.NewMedicalWelfareAgent(engine, llm, model)
	})
	register("quiz", func(*config.AgentConfig) contracts.Agent {
		return domainagents.NewQuizAgent(engine, llm, model)
	})
	register("trend_visualization", func(*config.AgentConfig) contracts.Agent {
		return domainagents.NewTrendVisualizationAgent(engine, llm, model)
	})
	register("research_paper", func(*config.AgentConfig) contracts.Agent {
		literature := domainagents.NewLiteratureClient(
			getEnv("LITERATURE_API_BASE_URL", "https://api.semanticscholar.org/graph/v1"),
			200*time.Millisecond, 10*time.Second)
		return domainagents.NewResearchPaperAgent(engine, llm, model, literature)
	})

	return remoteAgents
}
