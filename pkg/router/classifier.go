// Package router implements the synthesis core described in spec.md §4.2:
// intent classification, concurrent multi-agent dispatch, and answer
// synthesis.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
	"github.com/codeready-toolchain/ckdqa/pkg/llmclient"
)

// Intent tags from the classifier's fixed vocabulary (spec.md §4.2).
const (
	IntentMedicalInfo    = "medical_info"
	IntentDietInfo       = "diet_info"
	IntentHealthRecord   = "health_record"
	IntentWelfareInfo    = "welfare_info"
	IntentResearch       = "research"
	IntentLearning       = "learning"
	IntentPolicy         = "policy"
	IntentChitChat       = "chit_chat"
	IntentNonMedical     = "non_medical"
	IntentIllegalRequest = "illegal_request"
)

// DefaultAgent is the single fallback target used when classification
// cannot produce any tag at all.
const DefaultAgent = "research_paper"

// intentToAgent maps the classifier's fixed vocabulary onto concrete
// registered agent tags (spec.md §4.2, e.g. "medical_info -> research_paper").
var intentToAgent = map[string]string{
	IntentMedicalInfo:  "research_paper",
	IntentDietInfo:     "nutrition",
	IntentHealthRecord: "medical_welfare",
	IntentWelfareInfo:  "medical_welfare",
	IntentResearch:     "research_paper",
	IntentLearning:     "quiz",
	IntentPolicy:       "medical_welfare",
	// chit_chat, non_medical, illegal_request have no agent mapping; the
	// router falls back to the default agent for these.
}

// emergencyKeywords trigger the fixed emergency route to the
// medical-information agent regardless of other signals.
var emergencyKeywords = []string{
	"chest pain", "can't breathe", "cannot breathe", "difficulty breathing",
	"severe bleeding", "unconscious", "suicidal", "suicide",
	"overdose", "seizure", "stroke", "heart attack", "anaphylaxis",
	"emergency", "dying", "not breathing",
}

// keywordRules is the deterministic fallback rule table consulted when the
// LLM classifier fails (invalid JSON, empty intents, LLM error).
var keywordRules = []struct {
	keyword string
	agent   string
}{
	{"diet", "nutrition"},
	{"food", "nutrition"},
	{"eat", "nutrition"},
	{"meal", "nutrition"},
	{"nutrition", "nutrition"},
	{"welfare", "medical_welfare"},
	{"benefit", "medical_welfare"},
	{"subsidy", "medical_welfare"},
	{"program", "medical_welfare"},
	{"quiz", "quiz"},
	{"test me", "quiz"},
	{"learn", "quiz"},
	{"chart", "trend_visualization"},
	{"graph", "trend_visualization"},
	{"trend", "trend_visualization"},
	{"visualize", "trend_visualization"},
	{"paper", "research_paper"},
	{"study", "research_paper"},
	{"research", "research_paper"},
}

// Classification is the outcome of routing a single request.
type Classification struct {
	Targets     []string
	IsEmergency bool
	Reasoning   string
}

// classifierLLMResponse mirrors the JSON object the classifier prompt asks
// the LLM to emit (spec.md §4.2 step 3).
type classifierLLMResponse struct {
	Intents     []string `json:"intents"`
	Confidence  float64  `json:"confidence"`
	IsEmergency bool     `json:"is_emergency"`
	Reasoning   string   `json:"reasoning"`
}

// Classifier resolves an AgentRequest to 1..N target agent tags.
type Classifier struct {
	llm   llmclient.Client
	model string
}

// NewClassifier builds a Classifier calling the given LLM client/model for
// step 3 of the classification cascade.
func NewClassifier(llm llmclient.Client, model string) *Classifier {
	return &Classifier{llm: llm, model: model}
}

// Classify implements spec.md §4.2's four-step cascade.
func (c *Classifier) Classify(ctx context.Context, req *contracts.AgentRequest) Classification {
	// Step 1: explicit target_agent in context short-circuits everything.
	if v, ok := req.Context[contracts.ContextKeyTargetAgent]; ok {
		if tag, ok := v.(string); ok && tag != "" {
			return Classification{Targets: []string{tag}, Reasoning: "explicit target_agent"}
		}
	}

	// Step 2: emergency keyword scan.
	if isEmergency(req.Query) {
		return Classification{
			Targets:     []string{"research_paper"},
			IsEmergency: true,
			Reasoning:   "emergency keyword match",
		}
	}

	// Step 3: LLM classification.
	if c.llm != nil {
		if cl, ok := c.classifyWithLLM(ctx, req.Query); ok {
			return cl
		}
	}

	// Step 4: deterministic keyword fallback, then default agent.
	if agent, ok := keywordFallback(req.Query); ok {
		return Classification{Targets: []string{agent}, Reasoning: "keyword fallback"}
	}
	return Classification{Targets: []string{DefaultAgent}, Reasoning: "default agent"}
}

func isEmergency(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range emergencyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func keywordFallback(query string) (string, bool) {
	lower := strings.ToLower(query)
	for _, rule := range keywordRules {
		if strings.Contains(lower, rule.keyword) {
			return rule.agent, true
		}
	}
	return "", false
}

func (c *Classifier) classifyWithLLM(ctx context.Context, query string) (Classification, bool) {
	result, err := c.llm.Complete(ctx, &llmclient.CompletionRequest{
		Model: c.model,
		Messages: []llmclient.ConversationMessage{
			{Role: llmclient.RoleSystem, Content: classifierSystemPrompt},
			{Role: llmclient.RoleUser, Content: query},
		},
		JSONMode: true,
	})
	if err != nil {
		slog.Warn("intent classifier LLM call failed", "error", err)
		return Classification{}, false
	}

	var parsed classifierLLMResponse
	if err := json.Unmarshal([]byte(result.Content), &parsed); err != nil {
		slog.Warn("intent classifier returned invalid JSON", "error", err)
		return Classification{}, false
	}
	if len(parsed.Intents) == 0 {
		slog.Warn("intent classifier returned empty intents")
		return Classification{}, false
	}

	seen := make(map[string]struct{}, len(parsed.Intents))
	var targets []string
	for _, intent := range parsed.Intents {
		agent, ok := intentToAgent[intent]
		if !ok {
			continue
		}
		if _, dup := seen[agent]; dup {
			continue
		}
		seen[agent] = struct{}{}
		targets = append(targets, agent)
	}
	if len(targets) == 0 {
		return Classification{}, false
	}

	return Classification{
		Targets:     targets,
		IsEmergency: parsed.IsEmergency,
		Reasoning:   parsed.Reasoning,
	}, true
}

const classifierSystemPrompt = `You are an intent classifier for a chronic kidney disease question-answering assistant.
Given the user's message, respond with a single JSON object of the form:
{"intents": [tag, ...], "confidence": 0..1, "is_emergency": bool, "reasoning": "..."}
Valid tags: medical_info, diet_info, health_record, welfare_info, research, learning, policy, chit_chat, non_medical, illegal_request.
Respond with JSON only, no other text.`
