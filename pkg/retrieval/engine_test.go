package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNormalizesPerStreamAndWeightsHybridScore(t *testing.T) {
	keyword := []ScoredDoc{
		{ID: "a", Score: 10, Payload: map[string]any{"name": "a"}},
		{ID: "b", Score: 5, Payload: map[string]any{"name": "b"}},
	}
	semantic := []ScoredDoc{
		{ID: "b", Score: 0.8, Payload: map[string]any{"name": "b"}},
		{ID: "c", Score: 0.4, Payload: map[string]any{"name": "c"}},
	}
	w := Weights{Keyword: 0.4, Semantic: 0.6}

	merged := merge(keyword, semantic, w)
	byID := make(map[string]SearchResult, len(merged))
	for _, r := range merged {
		byID[r.DocID] = r
	}
	require.Len(t, merged, 3)

	// a: keyword-only hit, normalized against max keyword score (10) -> 1.0
	assert.InDelta(t, 1.0, byID["a"].KeywordScore, 1e-9)
	assert.InDelta(t, 0.0, byID["a"].SemanticScore, 1e-9)
	assert.InDelta(t, 0.4, byID["a"].HybridScore, 1e-9)

	// b: present in both streams, normalized against each stream's own max.
	assert.InDelta(t, 0.5, byID["b"].KeywordScore, 1e-9)  // 5/10
	assert.InDelta(t, 1.0, byID["b"].SemanticScore, 1e-9) // 0.8/0.8
	assert.InDelta(t, 0.5*0.4+1.0*0.6, byID["b"].HybridScore, 1e-9)

	// c: semantic-only hit, normalized against max semantic score (0.8) -> 0.5
	assert.InDelta(t, 0.0, byID["c"].KeywordScore, 1e-9)
	assert.InDelta(t, 0.5, byID["c"].SemanticScore, 1e-9)
	assert.InDelta(t, 0.5*0.6, byID["c"].HybridScore, 1e-9)
}

func TestMergeHandlesEmptyStreamsWithoutDivideByZero(t *testing.T) {
	merged := merge(nil, nil, DefaultWeights())
	assert.Empty(t, merged)

	merged = merge([]ScoredDoc{{ID: "a", Score: 0, Payload: nil}}, nil, DefaultWeights())
	require.Len(t, merged, 1)
	assert.Zero(t, merged[0].KeywordScore)
	assert.Zero(t, merged[0].HybridScore)
}

func TestAppendFallbackRanksFallbackOnlyDocsBelowHybridHitsAndSkipsDuplicates(t *testing.T) {
	merged := []SearchResult{
		{DocID: "a", HybridScore: 0.9},
	}
	fallback := []map[string]any{
		{"_id": "a", "name": "already present"}, // must be skipped, not duplicated
		{"_id": "b", "name": "first fallback"},
		{"_id": "c", "name": "second fallback"},
	}

	out := appendFallback(merged, fallback)
	require.Len(t, out, 3)

	byID := make(map[string]SearchResult, len(out))
	for _, r := range out {
		byID[r.DocID] = r
	}

	assert.Nil(t, byID["a"].FallbackOrder)

	require.NotNil(t, byID["b"].FallbackOrder)
	require.NotNil(t, byID["c"].FallbackOrder)
	// order is the doc's original index within the fallback slice, so the
	// skipped duplicate at index 0 leaves a gap.
	assert.Equal(t, 1, *byID["b"].FallbackOrder)
	assert.Equal(t, 2, *byID["c"].FallbackOrder)

	// Earlier fallback entries must outrank later ones, and both must stay
	// below the real hybrid hit.
	assert.Greater(t, byID["b"].HybridScore, byID["c"].HybridScore)
	assert.Greater(t, byID["a"].HybridScore, byID["b"].HybridScore)
}

func TestAppendFallbackScoreNeverGoesBelowFloor(t *testing.T) {
	fallback := make([]map[string]any, 50)
	for i := range fallback {
		fallback[i] = map[string]any{"_id": string(rune('a' + i))}
	}
	out := appendFallback(nil, fallback)
	for _, r := range out {
		assert.GreaterOrEqual(t, r.HybridScore, 1e-4)
	}
}

// --- fakes for Engine.Search integration scenarios ---

type fakeDocStore struct {
	textHits     []ScoredDoc
	textErr      error
	fallback     []map[string]any
	fallbackErr  error
	hydrated     map[string]map[string]any
	hydrateErr   error
	pingErr      error
	pingCalls    int
}

func (f *fakeDocStore) TextSearch(ctx context.Context, collection, query string, filters Filters, limit int) ([]ScoredDoc, error) {
	return f.textHits, f.textErr
}

func (f *fakeDocStore) FilterScan(ctx context.Context, collection string, filters Filters, limit int) ([]map[string]any, error) {
	return f.fallback, f.fallbackErr
}

func (f *fakeDocStore) Hydrate(ctx context.Context, collection string, ids []string) (map[string]map[string]any, error) {
	if f.hydrateErr != nil {
		return nil, f.hydrateErr
	}
	return f.hydrated, nil
}

func (f *fakeDocStore) Ping(ctx context.Context) error {
	f.pingCalls++
	return f.pingErr
}

type fakeVectorStore struct {
	hits []VectorHit
	err  error
}

func (f *fakeVectorStore) Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filters) ([]VectorHit, error) {
	return f.hits, f.err
}
func (f *fakeVectorStore) Upsert(ctx context.Context, namespace, id string, vector []float32, metadata map[string]any) error {
	return nil
}
func (f *fakeVectorStore) Ping(ctx context.Context) error { return nil }

type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestEngineSearchDegradesToKeywordOnlyWhenVectorStoreIsDown(t *testing.T) {
	docs := &fakeDocStore{
		textHits: []ScoredDoc{{ID: "kw-1", Score: 1, Payload: map[string]any{"title": "kidney diet"}}},
	}
	vectors := &fakeVectorStore{err: errors.New("pinecone unavailable")}
	engine := NewEngine(docs, vectors, &fakeEmbedder{}, nil, nil, "ns")

	results, status, err := engine.Search(t.Context(), "articles", "low sodium diet", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)
	require.Len(t, results, 1)
	assert.Equal(t, "kw-1", results[0].DocID)
	assert.InDelta(t, 1.0, results[0].KeywordScore, 1e-9)
	assert.Zero(t, results[0].SemanticScore)
}

func TestEngineSearchReportsPartialWhenSemanticHitsAreFilteredAway(t *testing.T) {
	docs := &fakeDocStore{
		hydrated: map[string]map[string]any{"v-1": {"stage": "4"}},
	}
	vectors := &fakeVectorStore{hits: []VectorHit{{ID: "v-1", Score: 0.9}}}
	engine := NewEngine(docs, vectors, &fakeEmbedder{}, nil, nil, "ns")

	results, status, err := engine.Search(t.Context(), "articles", "ckd stage 3", Filters{"stage": "3"}, 5)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, status)
	assert.Empty(t, results)
}

func TestEngineSearchFillsShortResultsFromFallbackScan(t *testing.T) {
	docs := &fakeDocStore{
		textHits: nil,
		fallback: []map[string]any{{"_id": "f-1"}, {"_id": "f-2"}},
	}
	vectors := &fakeVectorStore{}
	engine := NewEngine(docs, vectors, &fakeEmbedder{}, nil, nil, "ns")

	results, status, err := engine.Search(t.Context(), "articles", "anything", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	require.Len(t, results, 2)
}

func TestEngineSearchReturnsEmptyForNonPositiveLimit(t *testing.T) {
	engine := NewEngine(&fakeDocStore{}, &fakeVectorStore{}, &fakeEmbedder{}, nil, nil, "ns")
	results, status, err := engine.Search(t.Context(), "articles", "q", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Nil(t, results)
}

func TestCheckHealthSkipsPingWithinInterval(t *testing.T) {
	docs := &fakeDocStore{}
	engine := NewEngine(docs, &fakeVectorStore{}, &fakeEmbedder{}, nil, nil, "ns")

	require.NoError(t, engine.CheckHealth(t.Context()))
	assert.Equal(t, 1, docs.pingCalls)

	// Second call within healthInterval must not ping again.
	require.NoError(t, engine.CheckHealth(t.Context()))
	assert.Equal(t, 1, docs.pingCalls)
}
