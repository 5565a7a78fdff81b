package domainagents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
	"github.com/codeready-toolchain/ckdqa/pkg/llmclient"
	"github.com/codeready-toolchain/ckdqa/pkg/retrieval"
)

type fakeDocStore struct {
	docs []retrieval.ScoredDoc
}

func (f *fakeDocStore) TextSearch(ctx context.Context, collection, query string, filters retrieval.Filters, limit int) ([]retrieval.ScoredDoc, error) {
	return f.docs, nil
}
func (f *fakeDocStore) FilterScan(ctx context.Context, collection string, filters retrieval.Filters, limit int) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeDocStore) Hydrate(ctx context.Context, collection string, ids []string) (map[string]map[string]any, error) {
	return map[string]map[string]any{}, nil
}
func (f *fakeDocStore) Ping(ctx context.Context) error { return nil }

type fakeLLM struct {
	content string
	tokens  int
	err     error
}

func (f *fakeLLM) Complete(ctx context.Context, req *llmclient.CompletionRequest) (*llmclient.CompletionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llmclient.CompletionResult{Content: f.content, TokensUsed: f.tokens}, nil
}
func (f *fakeLLM) Generate(ctx context.Context, req *llmclient.CompletionRequest) (<-chan llmclient.Chunk, error) {
	ch := make(chan llmclient.Chunk)
	close(ch)
	return ch, nil
}
func (f *fakeLLM) Close() error { return nil }

type fakeLiterature struct {
	papers []Paper
	err    error
}

func (f *fakeLiterature) Search(ctx context.Context, query string, maxResults int) ([]Paper, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.papers, nil
}

func TestNutritionAgentProcessReturnsSourcesAndAnswer(t *testing.T) {
	docs := &fakeDocStore{docs: []retrieval.ScoredDoc{{ID: "1", Score: 1.0, Payload: map[string]any{"name": "low sodium soup"}}}}
	engine := retrieval.NewEngine(docs, nil, nil, nil, nil, "nutrition")
	llm := &fakeLLM{content: "eat low sodium foods", tokens: 42}

	agent := NewNutritionAgent(engine, llm, "test-model")
	resp, err := agent.Process(context.Background(), &contracts.AgentRequest{Query: "what should I eat"})

	require.NoError(t, err)
	assert.Equal(t, "eat low sodium foods", resp.Answer)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, "nutrition", resp.AgentType)
	assert.Len(t, resp.Sources, 1)
}

func TestQuizAgentLLMFailureReturnsError(t *testing.T) {
	engine := retrieval.NewEngine(&fakeDocStore{}, nil, nil, nil, nil, "quiz")
	llm := &fakeLLM{err: errors.New("boom")}

	agent := NewQuizAgent(engine, llm, "test-model")
	_, err := agent.Process(context.Background(), &contracts.AgentRequest{Query: "quiz me"})
	assert.Error(t, err)
}

func TestResearchPaperAgentFoldsLiteratureResults(t *testing.T) {
	engine := retrieval.NewEngine(&fakeDocStore{}, nil, nil, nil, nil, "research_papers")
	llm := &fakeLLM{content: "summary", tokens: 10}
	lit := &fakeLiterature{papers: []Paper{{Title: "CKD progression study", Year: 2024}}}

	agent := NewResearchPaperAgent(engine, llm, "test-model", lit)
	resp, err := agent.Process(context.Background(), &contracts.AgentRequest{Query: "ckd progression"})

	require.NoError(t, err)
	require.Len(t, resp.Papers, 1)
	assert.Equal(t, "CKD progression study", resp.Papers[0]["title"])
}

func TestResearchPaperAgentDegradesGracefullyWhenLiteratureFails(t *testing.T) {
	engine := retrieval.NewEngine(&fakeDocStore{}, nil, nil, nil, nil, "research_papers")
	llm := &fakeLLM{content: "summary", tokens: 10}
	lit := &fakeLiterature{err: errors.New("upstream down")}

	agent := NewResearchPaperAgent(engine, llm, "test-model", lit)
	resp, err := agent.Process(context.Background(), &contracts.AgentRequest{Query: "ckd progression"})

	require.NoError(t, err)
	assert.Equal(t, "summary", resp.Answer)
	assert.Empty(t, resp.Papers)
}

func TestTrendVisualizationAgentNilEngineUsesFallback(t *testing.T) {
	agent := NewTrendVisualizationAgent(nil, nil, "test-model")
	resp, err := agent.Process(context.Background(), &contracts.AgentRequest{Query: "show my egfr trend"})

	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "trend_visualization")
}
