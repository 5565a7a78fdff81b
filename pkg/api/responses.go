package api

import (
	"github.com/codeready-toolchain/ckdqa/pkg/database"
	"github.com/codeready-toolchain/ckdqa/pkg/remoteagent"
)

// SessionResponse is returned by session create/get endpoints.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	RoomID    string `json:"room_id"`
}

// ChatResponse is returned by POST /api/v1/sessions/:id/messages.
type ChatResponse struct {
	Answer     string           `json:"answer"`
	Sources    []map[string]any `json:"sources,omitempty"`
	Papers     []map[string]any `json:"papers,omitempty"`
	TokensUsed int              `json:"tokens_used"`
	Status     string           `json:"status"`
	AgentType  string           `json:"agent_type"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

// HistoryEntryResponse is one turn in GET /api/v1/sessions/:id/history.
type HistoryEntryResponse struct {
	AgentType     string `json:"agent_type"`
	UserInput     string `json:"user_input"`
	AgentResponse string `json:"agent_response"`
	Timestamp     string `json:"timestamp"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string                           `json:"status"`
	Version       string                           `json:"version"`
	Database      *database.HealthStatus          `json:"database,omitempty"`
	Configuration ConfigurationStats               `json:"configuration"`
	RemoteAgents  map[string]remoteagent.Status    `json:"remote_agents,omitempty"`
}

// ConfigurationStats summarizes loaded configuration for the health endpoint.
type ConfigurationStats struct {
	Agents       int `json:"agents"`
	LLMProviders int `json:"llm_providers"`
}
