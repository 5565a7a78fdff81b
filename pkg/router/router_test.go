package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
	"github.com/codeready-toolchain/ckdqa/pkg/llmclient"
	"github.com/codeready-toolchain/ckdqa/pkg/registry"
	"github.com/codeready-toolchain/ckdqa/pkg/sessionpolicy"
)

type fakeAgent struct {
	tag        string
	answer     string
	tokensUsed int
	err        error
	delay      time.Duration
}

func (f *fakeAgent) Process(ctx context.Context, req *contracts.AgentRequest) (*contracts.AgentResponse, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &contracts.AgentResponse{
		Answer:     f.answer,
		TokensUsed: f.tokensUsed,
		Status:     contracts.StatusSuccess,
		AgentType:  f.tag,
	}, nil
}

func (f *fakeAgent) ProcessStream(ctx context.Context, req *contracts.AgentRequest, yield func(any) bool) {
	resp, err := f.Process(ctx, req)
	if err != nil {
		yield(err)
		return
	}
	yield(resp)
}

func (f *fakeAgent) Metadata() contracts.AgentMetadata {
	return contracts.AgentMetadata{Name: f.tag, ExecutionType: contracts.ExecutionLocal}
}
func (f *fakeAgent) ExecutionType() contracts.ExecutionType { return contracts.ExecutionLocal }
func (f *fakeAgent) EstimateContextUsage(text string) int   { return len(text) / 4 }

type fakeLLM struct {
	completeFn func(ctx context.Context, req *llmclient.CompletionRequest) (*llmclient.CompletionResult, error)
}

func (f *fakeLLM) Complete(ctx context.Context, req *llmclient.CompletionRequest) (*llmclient.CompletionResult, error) {
	return f.completeFn(ctx, req)
}
func (f *fakeLLM) Generate(ctx context.Context, req *llmclient.CompletionRequest) (<-chan llmclient.Chunk, error) {
	ch := make(chan llmclient.Chunk)
	close(ch)
	return ch, nil
}
func (f *fakeLLM) Close() error { return nil }

func newTestRouter(t *testing.T, llm llmclient.Client, agents map[string]*fakeAgent) *Router {
	t.Helper()
	reg := registry.New()
	for tag, a := range agents {
		a := a
		reg.Register(tag, func() contracts.Agent { return a })
	}
	classifier := NewClassifier(llm, "test-model")
	synth := NewSynthesizer(llm, "test-model")
	sessions := sessionpolicy.NewManager(time.Hour, time.Hour)
	ledgers := sessionpolicy.NewLedgerRegistry(100000)
	streams := sessionpolicy.NewStreamRegistry()
	return NewRouter(reg, classifier, synth, sessions, ledgers, streams, 0)
}

func TestRouteSingleTargetViaExplicitContext(t *testing.T) {
	agents := map[string]*fakeAgent{
		"nutrition": {tag: "nutrition", answer: "eat less sodium", tokensUsed: 100},
	}
	r := newTestRouter(t, nil, agents)

	req := &contracts.AgentRequest{
		Query:     "what should I eat",
		SessionID: "s1",
		Context:   map[string]any{contracts.ContextKeyTargetAgent: "nutrition"},
	}
	resp, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "eat less sodium", resp.Answer)
	assert.Equal(t, []string{"nutrition"}, resp.Metadata["routed_to"])
}

func TestRouteEmergencyKeywordSetsEmergencyFlag(t *testing.T) {
	agents := map[string]*fakeAgent{
		"research_paper": {tag: "research_paper", answer: "seek emergency care", tokensUsed: 50},
	}
	r := newTestRouter(t, nil, agents)

	req := &contracts.AgentRequest{Query: "I have chest pain", SessionID: "s1"}
	resp, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, true, resp.Metadata["is_emergency"])
}

func TestRouteKeywordFallbackWhenLLMFails(t *testing.T) {
	llm := &fakeLLM{completeFn: func(ctx context.Context, req *llmclient.CompletionRequest) (*llmclient.CompletionResult, error) {
		return nil, errors.New("llm unavailable")
	}}
	agents := map[string]*fakeAgent{
		"nutrition": {tag: "nutrition", answer: "low potassium diet", tokensUsed: 80},
	}
	r := newTestRouter(t, llm, agents)

	req := &contracts.AgentRequest{Query: "what diet is best for me", SessionID: "s1"}
	resp, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "low potassium diet", resp.Answer)
}

func TestRouteMultiTargetSynthesizesConcurrently(t *testing.T) {
	llm := &fakeLLM{completeFn: func(ctx context.Context, req *llmclient.CompletionRequest) (*llmclient.CompletionResult, error) {
		if req.JSONMode {
			return &llmclient.CompletionResult{Content: `{"intents":["diet_info","welfare_info"],"confidence":0.9,"is_emergency":false,"reasoning":"multi"}`}, nil
		}
		return &llmclient.CompletionResult{Content: "combined answer"}, nil
	}}
	agents := map[string]*fakeAgent{
		"nutrition":       {tag: "nutrition", answer: "diet advice", tokensUsed: 100, delay: 10 * time.Millisecond},
		"medical_welfare": {tag: "medical_welfare", answer: "welfare advice", tokensUsed: 150, delay: 10 * time.Millisecond},
	}
	r := newTestRouter(t, llm, agents)

	start := time.Now()
	req := &contracts.AgentRequest{Query: "diet and welfare help", SessionID: "s1"}
	resp, err := r.Route(context.Background(), req)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "combined answer", resp.Answer)
	assert.Equal(t, synthesisOverheadTokens+250, resp.TokensUsed)
	assert.Less(t, elapsed, 40*time.Millisecond, "targets should dispatch concurrently, not sequentially")
}

func TestRouteAllAgentsFailReturnsError(t *testing.T) {
	agents := map[string]*fakeAgent{
		"nutrition": {tag: "nutrition", err: errors.New("boom")},
	}
	r := newTestRouter(t, nil, agents)

	req := &contracts.AgentRequest{
		Query:     "what should I eat",
		SessionID: "s1",
		Context:   map[string]any{contracts.ContextKeyTargetAgent: "nutrition"},
	}
	_, err := r.Route(context.Background(), req)
	assert.Error(t, err)
}

func TestRouteTokenLimitExceeded(t *testing.T) {
	agents := map[string]*fakeAgent{
		"nutrition": {tag: "nutrition", answer: "ok", tokensUsed: 10},
	}
	r := newTestRouter(t, nil, agents)
	r.ledgers = sessionpolicy.NewLedgerRegistry(10)
	// Session already at its 10-token budget; any further estimate is refused.
	r.ledgers.Get("s1").Record("nutrition", 10)

	req := &contracts.AgentRequest{
		Query:     "diet",
		SessionID: "s1",
		Context:   map[string]any{contracts.ContextKeyTargetAgent: "nutrition"},
	}
	_, err := r.Route(context.Background(), req)
	assert.Error(t, err)
}

func TestRouteStreamEmitsProgressThenComplete(t *testing.T) {
	agents := map[string]*fakeAgent{
		"nutrition": {tag: "nutrition", answer: "diet tip", tokensUsed: 20},
	}
	r := newTestRouter(t, nil, agents)

	req := &contracts.AgentRequest{
		Query:     "diet",
		SessionID: "s1",
		Context:   map[string]any{contracts.ContextKeyTargetAgent: "nutrition"},
	}

	var statuses []contracts.StreamChunkStatus
	r.RouteStream(context.Background(), req, func(c contracts.StreamChunk) bool {
		statuses = append(statuses, c.Status)
		return true
	})

	assert.Contains(t, statuses, contracts.StreamStatusProcessing)
	assert.Contains(t, statuses, contracts.StreamStatusSynthesizing)
	assert.Equal(t, contracts.StreamStatusComplete, statuses[len(statuses)-1])
}
