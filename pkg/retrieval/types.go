// Package retrieval implements the hybrid keyword+semantic search engine
// that powers the knowledge-backed domain agents.
package retrieval

import "context"

// SearchStatus reports the health of the semantic search leg of a hybrid
// query. Callers log the status but never fail the overall search if only
// semantic search degraded.
type SearchStatus string

const (
	StatusSuccess SearchStatus = "success"
	StatusPartial SearchStatus = "partial" // vector store matched, but all filtered out
	StatusFailed  SearchStatus = "failed"  // vector layer unreachable or misconfigured
)

// SearchResult is one merged document in a hybrid search response.
type SearchResult struct {
	DocID         string
	Payload       map[string]any
	KeywordScore  float64 // normalized into [0,1]
	SemanticScore float64 // normalized into [0,1]
	FallbackOrder *int    // nil unless only the fallback stream produced this doc
	HybridScore   float64
}

// Filters is a structured predicate set applied identically across the
// keyword, semantic-post-filter, and fallback-scan legs.
type Filters map[string]any

// DocStore is the document-store collaborator: full-text search, structured
// filter scan, and small CRUD per collection. Backed by MongoDB in this
// implementation (pkg/retrieval/mongo_docstore.go).
type DocStore interface {
	// TextSearch runs a full-text query over the collection's indexed
	// fields, returning up to limit hits ordered by relevance score.
	TextSearch(ctx context.Context, collection, query string, filters Filters, limit int) ([]ScoredDoc, error)

	// FilterScan returns up to limit documents matching filters, ordered
	// by a stable deterministic key (used for the structured fallback).
	FilterScan(ctx context.Context, collection string, filters Filters, limit int) ([]map[string]any, error)

	// Hydrate fetches full records for a set of ids (used to materialize
	// vector-store hits, which only carry id + metadata).
	Hydrate(ctx context.Context, collection string, ids []string) (map[string]map[string]any, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}

// ScoredDoc is a keyword-search hit before normalization.
type ScoredDoc struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorHit is a semantic-search hit before hydration.
type VectorHit struct {
	ID       string
	Score    float64 // cosine similarity
	Metadata map[string]any
}

// VectorStore is the embedding-similarity collaborator. Backed by Pinecone
// in this implementation (pkg/retrieval/pinecone_vectorstore.go).
type VectorStore interface {
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filters) ([]VectorHit, error)
	Upsert(ctx context.Context, namespace string, id string, vector []float32, metadata map[string]any) error
	Ping(ctx context.Context) error
}

// Embedder produces the query vector for semantic search. The model
// itself is out of scope (spec.md §1); this is the narrow interface the
// engine depends on, fronted by EmbeddingCache.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
