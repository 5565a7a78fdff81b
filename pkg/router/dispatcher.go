package router

import (
	"context"
	"sync"
	"time"

	"github.com/codeready-toolchain/ckdqa/pkg/agenterrors"
	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
	"github.com/codeready-toolchain/ckdqa/pkg/registry"
)

// AgentResult pairs one target agent's outcome with its tag, so callers can
// tell which contributions succeeded.
type AgentResult struct {
	AgentType string
	Response  *contracts.AgentResponse
	Err       error
}

// Dispatcher fans a single request out to N target agents concurrently and
// collects every result, tolerating individual failures. Grounded on the
// concurrency shape of pkg/agent/orchestrator/runner.go's SubAgentRunner,
// simplified: this core dispatches a bounded, caller-supplied target list
// rather than a dynamically growing sub-agent tree, so no slot-reservation
// bookkeeping is needed — a single WaitGroup plus a pre-sized channel
// suffices.
type Dispatcher struct {
	reg            *registry.Registry
	maxConcurrent  int
}

// NewDispatcher builds a Dispatcher reading agent constructors from reg.
// maxConcurrent bounds how many agent calls run at once; 0 means unbounded
// (all targets run simultaneously, which is safe since the spec's target
// lists come from a handful of domain tags).
func NewDispatcher(reg *registry.Registry, maxConcurrent int) *Dispatcher {
	return &Dispatcher{reg: reg, maxConcurrent: maxConcurrent}
}

// DispatchAll runs req against every target concurrently and returns one
// AgentResult per target, in the same order as targets.
func (d *Dispatcher) DispatchAll(ctx context.Context, targets []string, req *contracts.AgentRequest) []AgentResult {
	results := make([]AgentResult, len(targets))

	var sem chan struct{}
	if d.maxConcurrent > 0 {
		sem = make(chan struct{}, d.maxConcurrent)
	}

	var wg sync.WaitGroup
	for i, tag := range targets {
		wg.Add(1)
		go func(i int, tag string) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = d.dispatchOne(ctx, tag, req)
		}(i, tag)
	}
	wg.Wait()

	return results
}

// EstimateTokens estimates the token cost of text for admission control
// (spec.md §4.5's check_limit(session_id, estimator(query))), using the
// first target's own EstimateContextUsage so the estimate reflects the
// agent actually about to run. Falls back to a char/4 heuristic (mirroring
// ContextTracker.estimate_tokens in the original implementation) when no
// target agent can be instantiated yet, e.g. before classification narrows
// the target list to a known tag.
func (d *Dispatcher) EstimateTokens(targets []string, text string) int {
	for _, tag := range targets {
		if ag, err := d.reg.CreateAgent(tag); err == nil {
			return ag.EstimateContextUsage(text)
		}
	}
	return len(text) / 4
}

func (d *Dispatcher) dispatchOne(ctx context.Context, tag string, req *contracts.AgentRequest) AgentResult {
	ag, err := d.reg.CreateAgent(tag)
	if err != nil {
		return AgentResult{AgentType: tag, Err: err}
	}
	resp, err := ag.Process(ctx, req)
	if err != nil {
		return AgentResult{AgentType: tag, Err: err}
	}
	return AgentResult{AgentType: tag, Response: resp}
}

// StreamProgress is one progress notice emitted during streaming dispatch
// (spec.md §4.2's streaming dispatch paragraph).
type StreamProgress struct {
	Status    contracts.StreamChunkStatus
	AgentType string
	Message   string
	Partial   *contracts.AgentResponse
}

// DispatchStream runs the streaming variant: a pre-dispatch notice listing
// targets, then each agent's result as a partial chunk as it completes,
// then a synthesizing notice (emitted by the caller once all partials have
// arrived; see Router.RouteStream). When there is exactly one target and
// that agent itself supports streaming, callers should prefer calling the
// agent's ProcessStream directly and forward its chunks verbatim instead of
// using this path.
func (d *Dispatcher) DispatchStream(ctx context.Context, targets []string, req *contracts.AgentRequest, yield func(StreamProgress) bool) []AgentResult {
	if !yield(StreamProgress{Status: contracts.StreamStatusProcessing, Message: "dispatching"}) {
		return nil
	}

	results := make([]AgentResult, len(targets))
	resultCh := make(chan int, len(targets))

	var sem chan struct{}
	if d.maxConcurrent > 0 {
		sem = make(chan struct{}, d.maxConcurrent)
	}

	var wg sync.WaitGroup
	for i, tag := range targets {
		wg.Add(1)
		go func(i int, tag string) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = d.dispatchOne(ctx, tag, req)
			resultCh <- i
		}(i, tag)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for i := range resultCh {
		r := results[i]
		if r.Err == nil {
			if !yield(StreamProgress{Status: contracts.StreamStatusPartial, AgentType: r.AgentType, Partial: r.Response}) {
				return results
			}
		}
	}

	return results
}

// DeadlineOrDefault returns a context bound to timeout if no deadline is
// already set, used by callers dispatching against agents with unknown
// latency characteristics (e.g. remote agents).
func DeadlineOrDefault(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// succeeded filters AgentResults to those without an error.
func succeeded(results []AgentResult) []AgentResult {
	out := make([]AgentResult, 0, len(results))
	for _, r := range results {
		if r.Err == nil && r.Response != nil {
			out = append(out, r)
		}
	}
	return out
}

// allFailed reports whether every dispatch attempt failed.
func allFailed(results []AgentResult) bool {
	return len(succeeded(results)) == 0
}

// firstAgentError returns a representative error for an all-failed
// dispatch, used to build the router's error response.
func firstAgentError(results []AgentResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return agenterrors.NewResponseAggregationError("all target agents failed", len(results), nil)
}
