// Package contracts defines the uniform request/response contract shared by
// every agent in the registry, local or remote.
package contracts

import (
	"context"
	"time"
)

// Profile controls verbosity and result caps for a request.
type Profile string

const (
	ProfileResearcher Profile = "researcher"
	ProfilePatient    Profile = "patient"
	ProfileGeneral    Profile = "general"
)

// Recognized keys inside AgentRequest.Context.
const (
	ContextKeyTargetAgent  = "target_agent"
	ContextKeyUserHistory  = "user_history"
	ContextKeyHasImage     = "has_image"
	ContextKeyImageData    = "image_data"
)

// AgentRequest is the uniform call made to any registered agent.
type AgentRequest struct {
	Query     string
	SessionID string
	UserID    string // empty means anonymous
	Context   map[string]any
	Profile   Profile
	Language  string // ISO language tag, default "ko"
	Timestamp time.Time
}

// ResponseStatus is the outcome of an agent call.
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success"
	StatusError   ResponseStatus = "error"
	StatusPartial ResponseStatus = "partial"
)

// AgentResponse is the uniform return value from any registered agent.
type AgentResponse struct {
	Answer     string
	Sources    []map[string]any
	Papers     []map[string]any
	TokensUsed int
	Status     ResponseStatus
	AgentType  string
	Metadata   map[string]any
	Timestamp  time.Time
}

// StreamChunkStatus enumerates the status values a streaming chunk can carry.
type StreamChunkStatus string

const (
	StreamStatusProcessing   StreamChunkStatus = "processing"
	StreamStatusStreaming    StreamChunkStatus = "streaming"
	StreamStatusNewMessage   StreamChunkStatus = "new_message"
	StreamStatusPartial      StreamChunkStatus = "partial"
	StreamStatusSynthesizing StreamChunkStatus = "synthesizing"
	StreamStatusComplete     StreamChunkStatus = "complete"
	StreamStatusCancelled    StreamChunkStatus = "cancelled"
	StreamStatusError        StreamChunkStatus = "error"
)

// StreamChunk is a partial unit of a streamed response. ProcessStream may
// also yield a terminal *AgentResponse instead of a StreamChunk; callers
// distinguish the two by type switch.
type StreamChunk struct {
	Content   string
	Status    StreamChunkStatus
	AgentType string
}

// ExecutionType distinguishes in-process agents from HTTP-fronted ones.
type ExecutionType string

const (
	ExecutionLocal  ExecutionType = "local"
	ExecutionRemote ExecutionType = "remote"
)

// AgentMetadata describes a registered agent for introspection endpoints.
type AgentMetadata struct {
	Name          string
	Description   string
	Version       string
	Capabilities  []string
	ExecutionType ExecutionType
}

// Agent is the capability every registered agent type must satisfy, whether
// it runs in-process (domainagents.BaseDomainAgent) or is fronted by an
// external HTTP server (remoteagent.RemoteAgent).
type Agent interface {
	// Process answers a single request synchronously.
	Process(ctx context.Context, req *AgentRequest) (*AgentResponse, error)

	// ProcessStream answers a request as a sequence of partial chunks,
	// terminated by either a final *AgentResponse or by the stream closing
	// on error. Implementations without native streaming support may wrap
	// Process and yield the single final response.
	ProcessStream(ctx context.Context, req *AgentRequest, yield func(any) bool)

	// Metadata describes this agent for registry introspection.
	Metadata() AgentMetadata

	// ExecutionType reports local vs remote.
	ExecutionType() ExecutionType

	// EstimateContextUsage estimates the token cost of processing text,
	// used by the policy layer for pre-dispatch admission control.
	EstimateContextUsage(text string) int
}
