package domainagents

import (
	"github.com/codeready-toolchain/ckdqa/pkg/llmclient"
	"github.com/codeready-toolchain/ckdqa/pkg/retrieval"
)

const trendVisualizationSystemPrompt = `You describe trends in a CKD patient's recorded lab values and explain what
a chart of those values would show. Ground your answer in the provided context when relevant.`

// NewTrendVisualizationAgent wraps the "health_records" collection,
// grounded on original_source/backend/Agent/trend_visualization/agent.py.
// Chart rendering itself is out of scope (spec.md §1); this agent produces
// the narrative description and the underlying data points as sources.
func NewTrendVisualizationAgent(engine *retrieval.Engine, llm llmclient.Client, model string) *BaseDomainAgent {
	return NewBaseDomainAgent(
		"trend_visualization",
		"Narrative description of CKD lab-value trends",
		"health_records",
		trendVisualizationSystemPrompt,
		[]string{"trend_description"},
		engine, llm, model,
	)
}
