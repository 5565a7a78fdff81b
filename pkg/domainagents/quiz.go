package domainagents

import (
	"github.com/codeready-toolchain/ckdqa/pkg/llmclient"
	"github.com/codeready-toolchain/ckdqa/pkg/retrieval"
)

const quizSystemPrompt = `You generate short educational quizzes and answer follow-up questions about
chronic kidney disease, using the provided context as source material when available.`

// NewQuizAgent wraps the "learning_material" collection, grounded on
// original_source/backend/Agent/quiz/agent.py.
func NewQuizAgent(engine *retrieval.Engine, llm llmclient.Client, model string) *BaseDomainAgent {
	return NewBaseDomainAgent(
		"quiz",
		"CKD patient-education quiz generation",
		"learning_material",
		quizSystemPrompt,
		[]string{"quiz_generation"},
		engine, llm, model,
	)
}
