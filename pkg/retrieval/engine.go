package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Weights holds the hybrid-merge coefficients. Defaults per spec.md §4.4.
type Weights struct {
	Keyword  float64
	Semantic float64
}

func DefaultWeights() Weights { return Weights{Keyword: 0.4, Semantic: 0.6} }

// Engine runs hybrid keyword+semantic search over one logical collection.
// Grounded on the search_hospitals/search_programs algorithm shared by
// original_source/backend/app/db/hospital_manager.py and welfare_manager.py.
type Engine struct {
	docs     DocStore
	vectors  VectorStore
	embedder Embedder
	embCache *EmbeddingCache
	qCache   *QueryCache
	weights  Weights
	namespace string

	healthMu       sync.Mutex
	lastHealthCheck time.Time
	healthInterval  time.Duration
}

// NewEngine builds an Engine for a single collection/namespace pair.
func NewEngine(docs DocStore, vectors VectorStore, embedder Embedder, embCache *EmbeddingCache, qCache *QueryCache, namespace string) *Engine {
	return &Engine{
		docs: docs, vectors: vectors, embedder: embedder,
		embCache: embCache, qCache: qCache, weights: DefaultWeights(),
		namespace: namespace, healthInterval: 60 * time.Second,
	}
}

// Search implements spec.md §4.4's six-step algorithm: concurrent
// keyword+semantic search, structured fallback, post-filtering, per-stream
// normalization, weighted merge, and top-limit truncation.
func (e *Engine) Search(ctx context.Context, collection, query string, filters Filters, limit int) ([]SearchResult, SearchStatus, error) {
	if limit <= 0 {
		return nil, StatusSuccess, nil
	}

	if err := e.CheckHealth(ctx); err != nil {
		slog.Warn("document store health check failed, proceeding with search anyway", "collection", collection, "error", err)
	}

	cacheKey := CacheKeyFor("search:"+collection, map[string]any{"q": query, "f": filters, "limit": limit})
	if e.qCache != nil {
		if cached, ok := e.qCache.Get(ctx, cacheKey); ok {
			if results, status, ok := decodeCachedSearch(cached); ok {
				return results, status, nil
			}
		}
	}

	var (
		wg                        sync.WaitGroup
		keywordHits               []ScoredDoc
		keywordErr                error
		vectorHits                []VectorHit
		vectorErr                 error
		semanticStatus            = StatusSuccess
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		keywordHits, keywordErr = e.docs.TextSearch(ctx, collection, query, filters, limit)
	}()
	go func() {
		defer wg.Done()
		vectorHits, vectorErr = e.semanticSearch(ctx, query, limit)
	}()
	wg.Wait()

	if keywordErr != nil {
		slog.Warn("keyword search failed", "collection", collection, "error", keywordErr)
		keywordHits = nil
	}
	if vectorErr != nil {
		slog.Warn("semantic search unavailable", "collection", collection, "error", vectorErr)
		semanticStatus = StatusFailed
		vectorHits = nil
	}

	// Hydrate semantic hits (vector store only returns id + metadata).
	hydrated := e.hydrateVectorHits(ctx, collection, vectorHits)
	preFilterVectorCount := len(hydrated)
	filteredVectorDocs := postFilter(hydrated, filters)
	if semanticStatus == StatusSuccess && preFilterVectorCount > 0 && len(filteredVectorDocs) == 0 {
		semanticStatus = StatusPartial
		slog.Warn("semantic search partially filtered out by structured predicates",
			"collection", collection, "pre_filter", preFilterVectorCount)
	}

	merged := merge(keywordHits, filteredVectorDocs, e.weights)

	if len(merged) < limit {
		fallback, err := e.docs.FilterScan(ctx, collection, filters, 2*limit)
		if err != nil {
			slog.Warn("structured fallback scan failed", "collection", collection, "error", err)
		} else {
			merged = appendFallback(merged, fallback)
		}
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].HybridScore > merged[j].HybridScore })
	if len(merged) > limit {
		merged = merged[:limit]
	}

	if e.qCache != nil {
		if enc, ok := encodeCachedSearch(merged, semanticStatus); ok {
			e.qCache.Set(ctx, cacheKey, enc)
		}
	}

	return merged, semanticStatus, nil
}

func (e *Engine) semanticSearch(ctx context.Context, query string, limit int) ([]VectorHit, error) {
	if e.vectors == nil || e.embedder == nil {
		return nil, nil
	}

	var vec []float32
	if e.embCache != nil {
		if cached, ok := e.embCache.Get(query, "default"); ok {
			vec = cached
		}
	}
	if vec == nil {
		var err error
		vec, err = e.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		if e.embCache != nil {
			e.embCache.Set(query, "default", vec)
		}
	}

	return e.vectors.Query(ctx, e.namespace, vec, 3*limit, nil)
}

func (e *Engine) hydrateVectorHits(ctx context.Context, collection string, hits []VectorHit) []ScoredDoc {
	if len(hits) == 0 {
		return nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	records, err := e.docs.Hydrate(ctx, collection, ids)
	if err != nil {
		slog.Warn("failed to hydrate semantic hits", "collection", collection, "error", err)
		return nil
	}
	out := make([]ScoredDoc, 0, len(hits))
	for _, h := range hits {
		if payload, ok := records[h.ID]; ok {
			out = append(out, ScoredDoc{ID: h.ID, Score: h.Score, Payload: payload})
		}
	}
	return out
}

// postFilter re-applies structured predicates to semantic hits, because
// vector similarity cannot enforce them precisely.
func postFilter(docs []ScoredDoc, filters Filters) []ScoredDoc {
	if len(filters) == 0 {
		return docs
	}
	out := make([]ScoredDoc, 0, len(docs))
	for _, d := range docs {
		if matchesFilters(d.Payload, filters) {
			out = append(out, d)
		}
	}
	return out
}

func matchesFilters(payload map[string]any, filters Filters) bool {
	for k, want := range filters {
		got, ok := payload[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// merge implements step 4-5 of spec.md §4.4: per-stream max-normalization
// followed by a weighted sum, hybrid_score = alpha*keyword + beta*semantic.
func merge(keyword []ScoredDoc, semantic []ScoredDoc, w Weights) []SearchResult {
	acc := make(map[string]*SearchResult)

	maxKeyword := 0.0
	for _, d := range keyword {
		if d.Score > maxKeyword {
			maxKeyword = d.Score
		}
	}
	maxSemantic := 0.0
	for _, d := range semantic {
		if d.Score > maxSemantic {
			maxSemantic = d.Score
		}
	}

	for _, d := range keyword {
		r := ensure(acc, d.ID, d.Payload)
		if maxKeyword > 0 {
			r.KeywordScore = d.Score / maxKeyword
		}
	}
	for _, d := range semantic {
		r := ensure(acc, d.ID, d.Payload)
		if maxSemantic > 0 {
			r.SemanticScore = d.Score / maxSemantic
		}
	}

	out := make([]SearchResult, 0, len(acc))
	for _, r := range acc {
		r.HybridScore = r.KeywordScore*w.Keyword + r.SemanticScore*w.Semantic
		out = append(out, *r)
	}
	return out
}

func ensure(acc map[string]*SearchResult, id string, payload map[string]any) *SearchResult {
	if r, ok := acc[id]; ok {
		return r
	}
	r := &SearchResult{DocID: id, Payload: payload}
	acc[id] = r
	return r
}

// appendFallback adds fallback-only documents with a small order-based
// score so they rank after real hybrid hits but above nothing — docs
// already present from the hybrid merge are left untouched (their
// fallback_order is unset).
func appendFallback(merged []SearchResult, fallback []map[string]any) []SearchResult {
	present := make(map[string]bool, len(merged))
	for _, r := range merged {
		present[r.DocID] = true
	}

	n := len(fallback)
	for i, doc := range fallback {
		id, _ := doc["_id"].(string)
		if id == "" || present[id] {
			continue
		}
		order := i
		score := 1e-4 * float64(n-order)
		if score < 1e-4 {
			score = 1e-4
		}
		merged = append(merged, SearchResult{
			DocID:         id,
			Payload:       doc,
			FallbackOrder: &order,
			HybridScore:   score,
		})
		present[id] = true
	}
	return merged
}

// CheckHealth runs a mutex-guarded connectivity check at most once per
// healthInterval, grounded on pkg/database/health.go's pattern.
func (e *Engine) CheckHealth(ctx context.Context) error {
	e.healthMu.Lock()
	if time.Since(e.lastHealthCheck) < e.healthInterval {
		e.healthMu.Unlock()
		return nil
	}
	e.lastHealthCheck = time.Now()
	e.healthMu.Unlock()

	return e.reconnectWithBackoff(ctx)
}

func (e *Engine) reconnectWithBackoff(ctx context.Context) error {
	var lastErr error
	delay := 500 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if err := e.docs.Ping(ctx); err != nil {
			lastErr = err
			time.Sleep(delay)
			delay *= 2
			continue
		}
		return nil
	}
	return lastErr
}
