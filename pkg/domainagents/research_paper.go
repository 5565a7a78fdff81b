package domainagents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/ckdqa/pkg/agenterrors"
	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
	"github.com/codeready-toolchain/ckdqa/pkg/llmclient"
	"github.com/codeready-toolchain/ckdqa/pkg/retrieval"
)

const researchPaperSystemPrompt = `You summarize chronic kidney disease research literature for the user's
question, using the provided paper list and retrieved context.`

const researchPaperMaxResults = 5

// ResearchPaperAgent additionally wires a LiteratureClient external
// collaborator (spec.md §6), grounded on the structural shape of
// original_source/backend/Agent/research_paper/agent.py — literature
// search itself stays out of scope (spec.md §1 Non-goals), so a failed or
// nil client degrades gracefully to the retrieval-only answer.
type ResearchPaperAgent struct {
	*BaseDomainAgent
	literature LiteratureClient
}

// NewResearchPaperAgent wraps the "research_papers" collection plus an
// optional literature search backend.
func NewResearchPaperAgent(engine *retrieval.Engine, llm llmclient.Client, model string, literature LiteratureClient) *ResearchPaperAgent {
	return &ResearchPaperAgent{
		BaseDomainAgent: NewBaseDomainAgent(
			"research_paper",
			"CKD research literature search and summarization",
			"research_papers",
			researchPaperSystemPrompt,
			[]string{"literature_search"},
			engine, llm, model,
		),
		literature: literature,
	}
}

// Process extends the base flow with a literature lookup folded into the
// response's Papers collection.
func (a *ResearchPaperAgent) Process(ctx context.Context, req *contracts.AgentRequest) (*contracts.AgentResponse, error) {
	resp, err := a.BaseDomainAgent.Process(ctx, req)
	if err != nil {
		return nil, err
	}

	if a.literature == nil {
		return resp, nil
	}

	papers, err := a.literature.Search(ctx, req.Query, researchPaperMaxResults)
	if err != nil {
		slog.Warn("literature search failed, returning retrieval-only answer",
			"error", err)
		return resp, nil
	}

	resp.Papers = make([]map[string]any, 0, len(papers))
	for _, p := range papers {
		resp.Papers = append(resp.Papers, map[string]any{
			"title": p.Title, "authors": p.Authors,
			"journal": p.Journal, "year": p.Year, "url": p.URL,
		})
	}
	return resp, nil
}

func (a *ResearchPaperAgent) ProcessStream(ctx context.Context, req *contracts.AgentRequest, yield func(any) bool) {
	resp, err := a.Process(ctx, req)
	if err != nil {
		yield(agenterrors.NewAgentExecutionError(fmt.Sprintf("research_paper stream failed: %v", err)))
		return
	}
	yield(resp)
}
