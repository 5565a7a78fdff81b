package remoteagent

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/codeready-toolchain/ckdqa/pkg/agenterrors"
	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
)

// pollConfig bundles the tunables for the response-assembly loop.
type pollConfig struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	growAfter       time.Duration
	maxDuration     time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initialInterval: 500 * time.Millisecond,
		maxInterval:     2 * time.Second,
		growAfter:       10 * time.Second,
		maxDuration:     120 * time.Second,
	}
}

// pollEventsUntilReady is the response-assembly algorithm from spec.md
// §4.3: it long-polls fetch-events, tracking the set of active
// correlation traces, until a status=ready event arrives with no traces
// still active. It is bounded by maxDuration overall.
//
// Grounded on _poll_events_until_ready in
// original_source/backend/Agent/core/remote_agent.py.
func pollEventsUntilReady(ctx context.Context, proto *Protocol, sessionID string, cfg pollConfig) ([]Event, error) {
	start := time.Now()
	activeTraces := make(map[string]struct{})
	offset := 0
	interval := cfg.initialInterval
	var collected []Event

	for {
		if time.Since(start) > cfg.maxDuration {
			return nil, agenterrors.NewAgentTimeoutError(
				"timed out waiting for remote agent response", cfg.maxDuration.Seconds(), nil)
		}

		waitFor := interval
		events, err := proto.FetchEvents(ctx, sessionID, offset, waitFor)
		if err != nil {
			return nil, err
		}

		if len(events) == 0 {
			if err := sleep(ctx, interval); err != nil {
				return nil, err
			}
			interval = growInterval(interval, cfg, time.Since(start))
			continue
		}

		maxOffset := offset - 1
		readySeen := false

		for _, ev := range events {
			collected = append(collected, ev)
			if ev.Offset > maxOffset {
				maxOffset = ev.Offset
			}

			trace := baseTrace(ev.CorrelationID)

			switch ev.Kind {
			case "status":
				status, _ := ev.Data["status"].(string)
				switch status {
				case "error":
					msg, _ := ev.Data["message"].(string)
					if msg == "" {
						msg = "remote agent reported an execution error"
					}
					return nil, agenterrors.NewAgentExecutionError(msg)
				case "ready":
					delete(activeTraces, trace)
					readySeen = true
				}
			case "message":
				if ev.Source == "agent" {
					activeTraces[trace] = struct{}{}
				}
			}
		}

		offset = maxOffset + 1

		if readySeen && len(activeTraces) == 0 {
			return collected, nil
		}

		interval = growInterval(interval, cfg, time.Since(start))
	}
}

// growInterval adapts the polling interval upward toward maxInterval once
// elapsed wall-clock time passes growAfter, reducing poll pressure on
// slow-to-answer remote agents.
func growInterval(current time.Duration, cfg pollConfig, elapsed time.Duration) time.Duration {
	if elapsed <= cfg.growAfter {
		return current
	}
	grown := time.Duration(float64(current) * 1.2)
	if grown > cfg.maxInterval {
		return cfg.maxInterval
	}
	return grown
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// convertEventsToResponse collapses the collected events of a completed
// response into the uniform AgentResponse contract: agent message text
// joined by newlines, tool outputs as papers, zero reported tokens (the
// remote protocol does not report token usage), and a metadata summary.
//
// Grounded on _convert_events_to_response in remote_agent.py.
func convertEventsToResponse(agentType string, events []Event) (*contracts.AgentResponse, error) {
	var messages []string
	var papers []map[string]any
	messageCount, toolCount := 0, 0

	for _, ev := range events {
		switch ev.Kind {
		case "message":
			if ev.Source == "agent" {
				if text, ok := ev.Data["message"].(string); ok {
					messages = append(messages, text)
					messageCount++
				}
			}
		case "tool":
			papers = append(papers, ev.Data)
			toolCount++
		}
	}

	if messageCount == 0 {
		return nil, agenterrors.NewAgentResponseParseError(
			"remote agent produced no message events", len(events), nil)
	}

	return &contracts.AgentResponse{
		Answer:     strings.Join(messages, "\n"),
		Papers:     papers,
		TokensUsed: 0,
		Status:     contracts.StatusSuccess,
		AgentType:  agentType,
		Metadata: map[string]any{
			"event_count":   len(events),
			"message_count": messageCount,
			"tool_count":    toolCount,
		},
		Timestamp: time.Now(),
	}, nil
}

// backoffDelay computes exponential backoff with ~25% jitter, per the
// design note in spec.md §9 against thundering-herd restarts.
func backoffDelay(base time.Duration, attempt int, jitter func() float64) time.Duration {
	mult := math.Pow(2, float64(attempt))
	d := time.Duration(float64(base) * mult)
	j := 1.0 + (jitter()-0.5)*0.5 // +/- 25%
	return time.Duration(float64(d) * j)
}
