// Package domainagents implements the five thin domain agents registered
// against pkg/registry: nutrition, research_paper, medical_welfare, quiz,
// and trend_visualization. Their internal knowledge-retrieval prompts are
// out of scope (spec.md §1); each is a thin Agent wrapper composing a
// hybrid retrieval.Engine lookup with one llmclient.Client completion
// call, grounded on the structural shape (not the prompt content) of
// original_source/backend/Agent/{nutrition,research_paper,medical_welfare,
// quiz,trend_visualization}/agent.py.
package domainagents

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/ckdqa/pkg/agenterrors"
	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
	"github.com/codeready-toolchain/ckdqa/pkg/llmclient"
	"github.com/codeready-toolchain/ckdqa/pkg/retrieval"
)

// charsPerToken approximates the original's context.estimate_tokens
// heuristic (len(text)//4), used for pre-call accounting estimates.
const charsPerToken = 4

// searchLimit bounds how many retrieval hits feed the completion prompt.
const searchLimit = 5

// BaseDomainAgent is the common shape every domain agent specializes:
// search the domain's collection, fold the hits into a grounding prompt,
// ask the LLM for a completion, and report sources/tokens uniformly.
type BaseDomainAgent struct {
	tag          string
	description  string
	capabilities []string
	collection   string
	systemPrompt string

	engine *retrieval.Engine
	llm    llmclient.Client
	model  string
}

// NewBaseDomainAgent builds the shared wrapper; engine may be nil for
// agents that have no retrieval corpus of their own (none currently do,
// but the field stays optional for forward compatibility).
func NewBaseDomainAgent(tag, description, collection, systemPrompt string, capabilities []string, engine *retrieval.Engine, llm llmclient.Client, model string) *BaseDomainAgent {
	return &BaseDomainAgent{
		tag: tag, description: description, capabilities: capabilities,
		collection: collection, systemPrompt: systemPrompt,
		engine: engine, llm: llm, model: model,
	}
}

func (a *BaseDomainAgent) Metadata() contracts.AgentMetadata {
	return contracts.AgentMetadata{
		Name:          a.tag,
		Description:   a.description,
		Version:       "1.0.0",
		Capabilities:  a.capabilities,
		ExecutionType: contracts.ExecutionLocal,
	}
}

func (a *BaseDomainAgent) ExecutionType() contracts.ExecutionType { return contracts.ExecutionLocal }

func (a *BaseDomainAgent) EstimateContextUsage(text string) int {
	return len(text) / charsPerToken
}

// Process implements spec.md §4.2's per-agent contract: search the
// collection, build a grounded prompt, complete it, and report sources.
func (a *BaseDomainAgent) Process(ctx context.Context, req *contracts.AgentRequest) (*contracts.AgentResponse, error) {
	var results []retrieval.SearchResult
	if a.engine != nil {
		res, status, err := a.engine.Search(ctx, a.collection, req.Query, nil, searchLimit)
		if err != nil {
			return nil, agenterrors.NewAgentExecutionError(fmt.Sprintf("%s search failed: %v", a.tag, err))
		}
		results = res
		_ = status // partial/failed status is informational here; the agent still answers with what it has
	}

	sources := make([]map[string]any, 0, len(results))
	for _, r := range results {
		sources = append(sources, r.Payload)
	}

	if a.llm == nil {
		return &contracts.AgentResponse{
			Answer:     a.fallbackAnswer(req.Query),
			Sources:    sources,
			TokensUsed: a.EstimateContextUsage(req.Query),
			Status:     contracts.StatusSuccess,
			AgentType:  a.tag,
		}, nil
	}

	prompt := a.buildPrompt(req.Query, results)
	result, err := a.llm.Complete(ctx, &llmclient.CompletionRequest{
		Model: a.model,
		Messages: []llmclient.ConversationMessage{
			{Role: llmclient.RoleSystem, Content: a.systemPrompt},
			{Role: llmclient.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, agenterrors.NewAgentExecutionError(fmt.Sprintf("%s completion failed: %v", a.tag, err))
	}

	return &contracts.AgentResponse{
		Answer:     result.Content,
		Sources:    sources,
		TokensUsed: result.TokensUsed,
		Status:     contracts.StatusSuccess,
		AgentType:  a.tag,
	}, nil
}

// ProcessStream wraps Process and yields the single final response,
// mirroring local_agent.py's default streaming behavior for agents with
// no native incremental output.
func (a *BaseDomainAgent) ProcessStream(ctx context.Context, req *contracts.AgentRequest, yield func(any) bool) {
	resp, err := a.Process(ctx, req)
	if err != nil {
		yield(err)
		return
	}
	yield(resp)
}

func (a *BaseDomainAgent) buildPrompt(query string, results []retrieval.SearchResult) string {
	if len(results) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString("Relevant context:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "- %v\n", r.Payload)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

func (a *BaseDomainAgent) fallbackAnswer(query string) string {
	return fmt.Sprintf("[%s] no completion backend configured for: %s", a.tag, query)
}
