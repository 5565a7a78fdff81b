package domainagents

import (
	"github.com/codeready-toolchain/ckdqa/pkg/llmclient"
	"github.com/codeready-toolchain/ckdqa/pkg/retrieval"
)

const nutritionSystemPrompt = `You answer chronic kidney disease diet and nutrition questions.
Ground your answer in the provided context when relevant. Be concise and practical.`

// NewNutritionAgent wraps the "nutrition" collection, grounded on the
// structural shape of original_source/backend/Agent/nutrition/agent.py
// (its image-analysis/recipe-generation features are out of scope here).
func NewNutritionAgent(engine *retrieval.Engine, llm llmclient.Client, model string) *BaseDomainAgent {
	return NewBaseDomainAgent(
		"nutrition",
		"CKD-tailored nutrition and diet guidance",
		"nutrition",
		nutritionSystemPrompt,
		[]string{"diet_advice", "nutrient_lookup"},
		engine, llm, model,
	)
}
