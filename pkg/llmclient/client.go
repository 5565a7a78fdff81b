// Package llmclient is the Go-side client for the external LLM generation
// service. The generation endpoint itself is out of scope for this core
// (spec.md §1); this package only defines the uniform call surface the
// router's classifier and synthesizer (and the domain agents) use to reach
// it, plus a streaming chunk union mirroring the teacher's LLM client
// taxonomy.
package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Conversation message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage is one turn in a chat-completion call.
type ConversationMessage struct {
	Role    string
	Content string
}

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeUsage ChunkType = "usage"
	ChunkTypeError ChunkType = "error"
)

// Chunk is the interface for all streaming chunk types returned by Generate.
type Chunk interface {
	chunkType() ChunkType
}

// TextChunk is a fragment of the LLM's text response.
type TextChunk struct{ Content string }

// UsageChunk reports token consumption for a completed call.
type UsageChunk struct{ InputTokens, OutputTokens, TotalTokens int }

// ErrorChunk signals an error from the LLM provider.
type ErrorChunk struct {
	Message   string
	Retryable bool
}

func (c *TextChunk) chunkType() ChunkType  { return ChunkTypeText }
func (c *UsageChunk) chunkType() ChunkType { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType { return ChunkTypeError }

// CompletionRequest is a single non-streaming chat-completion call.
type CompletionRequest struct {
	Model       string
	Messages    []ConversationMessage
	Temperature float64
	MaxTokens   int
	// JSONMode forces the provider to emit a single JSON object, used by
	// the router's intent classifier.
	JSONMode bool
}

// CompletionResult is the outcome of a non-streaming completion call.
type CompletionResult struct {
	Content    string
	TokensUsed int
}

// Client is the interface the router and domain agents depend on. Keeping
// it an interface (rather than a concrete HTTP type) lets tests substitute
// a fake without a live LLM endpoint.
type Client interface {
	// Complete performs a single blocking chat-completion call.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// Generate streams a chat-completion call chunk by chunk. The returned
	// channel is closed when the stream completes; a trailing ErrorChunk
	// signals failure instead of a Go error so partial text already
	// delivered is not discarded.
	Generate(ctx context.Context, req *CompletionRequest) (<-chan Chunk, error)

	Close() error
}

// HTTPClient implements Client against an HTTP+NDJSON completion service.
// This is the concern the teacher's GRPCLLMClient (pkg/agent/llm_grpc.go)
// covers with a generated protobuf/gRPC stub; this core targets the same
// external LLM service over HTTP+NDJSON instead (see DESIGN.md for why
// grpc/protobuf were dropped for this specific component).
type HTTPClient struct {
	baseURL string
	hc      *http.Client
}

// NewHTTPClient builds a Client dialing baseURL (e.g. http://llm-service:8090).
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

type wireRequest struct {
	Model       string                 `json:"model"`
	Messages    []ConversationMessage  `json:"messages"`
	Temperature float64                `json:"temperature,omitempty"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	JSONMode    bool                   `json:"json_mode,omitempty"`
	Stream      bool                   `json:"stream"`
}

type wireChunk struct {
	Type       string `json:"type"` // "text" | "usage" | "error" | "done"
	Content    string `json:"content,omitempty"`
	InputTok   int    `json:"input_tokens,omitempty"`
	OutputTok  int    `json:"output_tokens,omitempty"`
	TotalTok   int    `json:"total_tokens,omitempty"`
	Message    string `json:"message,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
}

func (c *HTTPClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	body, err := json.Marshal(wireRequest{
		Model: req.Model, Messages: req.Messages, Temperature: req.Temperature,
		MaxTokens: req.MaxTokens, JSONMode: req.JSONMode, Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/complete", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion call returned status %d", resp.StatusCode)
	}

	var out struct {
		Content    string `json:"content"`
		TokensUsed int    `json:"tokens_used"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	return &CompletionResult{Content: out.Content, TokensUsed: out.TokensUsed}, nil
}

func (c *HTTPClient) Generate(ctx context.Context, req *CompletionRequest) (<-chan Chunk, error) {
	body, err := json.Marshal(wireRequest{
		Model: req.Model, Messages: req.Messages, Temperature: req.Temperature,
		MaxTokens: req.MaxTokens, JSONMode: req.JSONMode, Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate call failed: %w", err)
	}

	ch := make(chan Chunk, 32)
	go func() {
		defer resp.Body.Close()
		defer close(ch)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var wc wireChunk
			if err := json.Unmarshal(line, &wc); err != nil {
				select {
				case ch <- &ErrorChunk{Message: err.Error(), Retryable: false}:
				case <-ctx.Done():
				}
				return
			}
			switch wc.Type {
			case "text":
				select {
				case ch <- &TextChunk{Content: wc.Content}:
				case <-ctx.Done():
					return
				}
			case "usage":
				select {
				case ch <- &UsageChunk{InputTokens: wc.InputTok, OutputTokens: wc.OutputTok, TotalTokens: wc.TotalTok}:
				case <-ctx.Done():
					return
				}
			case "error":
				select {
				case ch <- &ErrorChunk{Message: wc.Message, Retryable: wc.Retryable}:
				case <-ctx.Done():
				}
				return
			case "done":
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case ch <- &ErrorChunk{Message: err.Error(), Retryable: true}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

func (c *HTTPClient) Close() error { return nil }
