package router

import (
	"context"
	"log/slog"

	"github.com/codeready-toolchain/ckdqa/pkg/agenterrors"
	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
	"github.com/codeready-toolchain/ckdqa/pkg/registry"
	"github.com/codeready-toolchain/ckdqa/pkg/sessionpolicy"
)

// Router is the synthesis core of spec.md §4.2: it classifies a request,
// dispatches to 1..N agents, and synthesizes their outputs into one
// AgentResponse, while enforcing the session token budget.
type Router struct {
	classifier  *Classifier
	dispatcher  *Dispatcher
	synthesizer *Synthesizer
	sessions    *sessionpolicy.Manager
	ledgers     *sessionpolicy.LedgerRegistry
	streams     *sessionpolicy.StreamRegistry
}

// NewRouter wires the classifier, dispatcher, synthesizer, and
// session/policy layer into one entry point.
func NewRouter(reg *registry.Registry, classifier *Classifier, synthesizer *Synthesizer, sessions *sessionpolicy.Manager, ledgers *sessionpolicy.LedgerRegistry, streams *sessionpolicy.StreamRegistry, maxConcurrent int) *Router {
	return &Router{
		classifier:  classifier,
		dispatcher:  NewDispatcher(reg, maxConcurrent),
		synthesizer: synthesizer,
		sessions:    sessions,
		ledgers:     ledgers,
		streams:     streams,
	}
}

// CancelStream requests cancellation of sessionID's in-flight stream, if
// any (spec.md §4.5's control endpoint: "a separate control endpoint sets
// cancel_requested=true"). Reports whether a stream was found.
func (r *Router) CancelStream(sessionID string) bool {
	return r.streams.RequestCancel(sessionID)
}

// Route implements the full request lifecycle: admission control,
// classification, dispatch, synthesis, history/ledger recording.
func (r *Router) Route(ctx context.Context, req *contracts.AgentRequest) (*contracts.AgentResponse, error) {
	classification := r.classifier.Classify(ctx, req)

	ledger := r.ledgers.Get(req.SessionID)
	estimate := r.dispatcher.EstimateTokens(classification.Targets, req.Query)
	check := ledger.CheckLimit(estimate)
	if !check.WithinLimit {
		return nil, agenterrors.NewTokenLimitExceededError(check.CurrentUsage, check.MaxLimit, estimate, check.Remaining)
	}

	var resp *contracts.AgentResponse
	if len(classification.Targets) == 1 {
		result := r.dispatcher.DispatchAll(ctx, classification.Targets, req)[0]
		if result.Err != nil {
			return nil, result.Err
		}
		resp = SynthesizeSingle(result.Response, classification.Targets)
	} else {
		results := r.dispatcher.DispatchAll(ctx, classification.Targets, req)
		if allFailed(results) {
			return nil, firstAgentError(results)
		}
		var err error
		resp, err = r.synthesizer.Synthesize(ctx, req.Query, classification.Targets, results)
		if err != nil {
			return nil, err
		}
	}

	if classification.IsEmergency {
		if resp.Metadata == nil {
			resp.Metadata = map[string]any{}
		}
		resp.Metadata["is_emergency"] = true
	}

	ledger.Record(resp.AgentType, resp.TokensUsed)
	if r.sessions != nil && req.SessionID != "" {
		if err := r.sessions.AddToHistory(req.SessionID, resp.AgentType, req.Query, resp.Answer); err != nil {
			slog.Warn("failed to append conversation history", "session_id", req.SessionID, "error", err)
		}
	}

	return resp, nil
}

// RouteStream implements the streaming variant of spec.md §4.2: progress
// events, partial results per agent, a synthesizing notice, then the final
// complete chunk. When exactly one agent is chosen and it supports
// streaming itself, callers should prefer calling that agent's
// ProcessStream directly; RouteStream here always dispatches then
// synthesizes, which is correct for N>1 and acceptable (if less granular)
// for N=1.
func (r *Router) RouteStream(ctx context.Context, req *contracts.AgentRequest, yield func(contracts.StreamChunk) bool) {
	r.streams.Start(req.SessionID)
	defer r.streams.Finish(req.SessionID)

	classification := r.classifier.Classify(ctx, req)

	ledger := r.ledgers.Get(req.SessionID)
	estimate := r.dispatcher.EstimateTokens(classification.Targets, req.Query)
	check := ledger.CheckLimit(estimate)
	if !check.WithinLimit {
		yield(contracts.StreamChunk{Status: contracts.StreamStatusError, Content: "token limit exceeded"})
		return
	}

	var results []AgentResult
	cont := r.dispatcher.DispatchStream(ctx, classification.Targets, req, func(p StreamProgress) bool {
		if r.streams.IsCancelled(req.SessionID) {
			return false
		}
		if p.Status == contracts.StreamStatusProcessing {
			return yield(contracts.StreamChunk{Status: contracts.StreamStatusProcessing, Content: p.Message})
		}
		if p.Partial != nil {
			r.streams.AppendPartial(req.SessionID, p.Partial.Answer)
			return yield(contracts.StreamChunk{Status: contracts.StreamStatusPartial, AgentType: p.AgentType, Content: p.Partial.Answer})
		}
		return true
	})
	results = cont

	if r.streams.IsCancelled(req.SessionID) {
		partial, _ := r.streams.Snapshot(req.SessionID)
		yield(contracts.StreamChunk{Status: contracts.StreamStatusCancelled, Content: partial.PartialResponse})
		return
	}

	if allFailed(results) {
		yield(contracts.StreamChunk{Status: contracts.StreamStatusError, Content: firstAgentError(results).Error()})
		return
	}

	yield(contracts.StreamChunk{Status: contracts.StreamStatusSynthesizing})

	var resp *contracts.AgentResponse
	var err error
	if len(classification.Targets) == 1 {
		resp = SynthesizeSingle(succeeded(results)[0].Response, classification.Targets)
	} else {
		resp, err = r.synthesizer.Synthesize(ctx, req.Query, classification.Targets, results)
	}
	if err != nil {
		yield(contracts.StreamChunk{Status: contracts.StreamStatusError, Content: err.Error()})
		return
	}

	ledger.Record(resp.AgentType, resp.TokensUsed)
	if r.sessions != nil && req.SessionID != "" {
		if err := r.sessions.AddToHistory(req.SessionID, resp.AgentType, req.Query, resp.Answer); err != nil {
			slog.Warn("failed to append conversation history", "session_id", req.SessionID, "error", err)
		}
	}

	yield(contracts.StreamChunk{Status: contracts.StreamStatusComplete, Content: resp.Answer, AgentType: resp.AgentType})
}
