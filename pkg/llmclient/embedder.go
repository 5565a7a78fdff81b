package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPEmbedder calls the same external LLM service's embeddings endpoint,
// satisfying pkg/retrieval.Embedder. Kept distinct from HTTPClient (rather
// than merged into the Client interface) because embedding is the vector
// store's collaborator, not the router/domain-agent completion path.
type HTTPEmbedder struct {
	baseURL string
	model   string
	hc      *http.Client
}

// NewHTTPEmbedder builds an Embedder dialing baseURL for the given model.
func NewHTTPEmbedder(baseURL, model string, timeout time.Duration) *HTTPEmbedder {
	return &HTTPEmbedder{baseURL: baseURL, model: model, hc: &http.Client{Timeout: timeout}}
}

type embedWireRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// Embed satisfies retrieval.Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedWireRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding call returned status %d", resp.StatusCode)
	}

	var out struct {
		Vector []float32 `json:"vector"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	return out.Vector, nil
}
