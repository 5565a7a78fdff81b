package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
	"github.com/codeready-toolchain/ckdqa/pkg/llmclient"
)

// synthesisOverheadTokens is the fixed accounting overhead added to the
// combined tokens_used to represent the synthesis LLM call itself
// (spec.md §4.2: "a fixed synthesis overhead, approx 500").
const synthesisOverheadTokens = 500

// Synthesizer consolidates multiple agent answers into one, per spec.md
// §4.2's synthesis step.
type Synthesizer struct {
	llm   llmclient.Client
	model string
}

func NewSynthesizer(llm llmclient.Client, model string) *Synthesizer {
	return &Synthesizer{llm: llm, model: model}
}

// Synthesize builds the final AgentResponse from a set of dispatch results.
// query is the original user query, targets is the full dispatched list
// (used to populate metadata.routed_to even for failed agents).
func (s *Synthesizer) Synthesize(ctx context.Context, query string, targets []string, results []AgentResult) (*contracts.AgentResponse, error) {
	ok := succeeded(results)
	if len(ok) == 0 {
		return nil, firstAgentError(results)
	}

	answer := s.consolidate(ctx, query, ok)

	tokens := synthesisOverheadTokens
	var sources, papers []map[string]any
	perAgentAnswers := make(map[string]string, len(ok))
	for _, r := range ok {
		tokens += r.Response.TokensUsed
		sources = append(sources, r.Response.Sources...)
		papers = append(papers, r.Response.Papers...)
		perAgentAnswers[r.AgentType] = r.Response.Answer
	}

	return &contracts.AgentResponse{
		Answer:     answer,
		Sources:    sources,
		Papers:     papers,
		TokensUsed: tokens,
		Status:     contracts.StatusSuccess,
		AgentType:  "router",
		Metadata: map[string]any{
			"routed_to":        targets,
			"synthesis":        true,
			"agent_answers":    perAgentAnswers,
			"succeeded_agents": agentTags(ok),
		},
	}, nil
}

// SynthesizeSingle is the exactly-one-target fast path: forward the
// response unchanged, annotated with routed_to.
func SynthesizeSingle(resp *contracts.AgentResponse, targets []string) *contracts.AgentResponse {
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	resp.Metadata["routed_to"] = targets
	return resp
}

func (s *Synthesizer) consolidate(ctx context.Context, query string, ok []AgentResult) string {
	if s.llm == nil || len(ok) == 1 {
		return concatenateAnswers(ok)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User question: %s\n\n", query)
	for i, r := range ok {
		fmt.Fprintf(&b, "Answer %d:\n%s\n\n", i+1, r.Response.Answer)
	}

	result, err := s.llm.Complete(ctx, &llmclient.CompletionRequest{
		Model: s.model,
		Messages: []llmclient.ConversationMessage{
			{Role: llmclient.RoleSystem, Content: synthesisSystemPrompt},
			{Role: llmclient.RoleUser, Content: b.String()},
		},
	})
	if err != nil {
		slog.Warn("synthesis LLM call failed, falling back to concatenation", "error", err)
		return concatenateAnswers(ok)
	}
	return result.Content
}

func concatenateAnswers(ok []AgentResult) string {
	parts := make([]string, 0, len(ok))
	for _, r := range ok {
		if r.Response.Answer != "" {
			parts = append(parts, r.Response.Answer)
		}
	}
	return strings.Join(parts, "\n\n")
}

func agentTags(results []AgentResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.AgentType)
	}
	return out
}

const synthesisSystemPrompt = `You are consolidating multiple draft answers about chronic kidney disease into a single, coherent response.
Produce one consolidated answer. Do not mention that multiple sources or agents contributed.`
