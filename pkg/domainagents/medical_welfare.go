package domainagents

import (
	"github.com/codeready-toolchain/ckdqa/pkg/llmclient"
	"github.com/codeready-toolchain/ckdqa/pkg/retrieval"
)

const medicalWelfareSystemPrompt = `You answer questions about hospitals, welfare programs, and benefits available
to chronic kidney disease patients. Ground your answer in the provided context when relevant.`

// NewMedicalWelfareAgent wraps the combined hospital+welfare collection,
// grounded on original_source/backend/Agent/medical_welfare/agent.py plus
// the search behavior of hospital_manager.py and welfare_manager.py.
func NewMedicalWelfareAgent(engine *retrieval.Engine, llm llmclient.Client, model string) *BaseDomainAgent {
	return NewBaseDomainAgent(
		"medical_welfare",
		"Hospital and welfare-program information for CKD patients",
		"welfare_programs",
		medicalWelfareSystemPrompt,
		[]string{"hospital_lookup", "welfare_lookup"},
		engine, llm, model,
	)
}
