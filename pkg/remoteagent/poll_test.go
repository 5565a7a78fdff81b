package remoteagent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventsServer(t *testing.T, pages func(call int) []Event) *httptest.Server {
	var call int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&call, 1)) - 1
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"events": pages(n)}))
	}))
}

func TestPollEventsUntilReadyAssemblesSingleRoundTrip(t *testing.T) {
	srv := eventsServer(t, func(call int) []Event {
		return []Event{
			{Kind: "message", Source: "agent", Offset: 0, CorrelationID: "trace-1::1", Data: map[string]any{"message": "hello"}},
			{Kind: "status", Source: "agent", Offset: 1, CorrelationID: "trace-1::2", Data: map[string]any{"status": "ready"}},
		}
	})
	defer srv.Close()

	proto := NewProtocol(srv.URL, srv.Client())
	events, err := pollEventsUntilReady(t.Context(), proto, "remote-1", defaultPollConfig())
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestPollEventsUntilReadyRetriesThroughEmptyPolls(t *testing.T) {
	srv := eventsServer(t, func(call int) []Event {
		if call < 2 {
			return nil
		}
		return []Event{
			{Kind: "message", Source: "agent", Offset: 0, CorrelationID: "trace-1::1", Data: map[string]any{"message": "hi"}},
			{Kind: "status", Source: "agent", Offset: 1, CorrelationID: "trace-1::2", Data: map[string]any{"status": "ready"}},
		}
	})
	defer srv.Close()

	proto := NewProtocol(srv.URL, srv.Client())
	cfg := defaultPollConfig()
	cfg.initialInterval = 5 * time.Millisecond
	cfg.maxInterval = 10 * time.Millisecond

	events, err := pollEventsUntilReady(t.Context(), proto, "remote-1", cfg)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestPollEventsUntilReadyWaitsForAllActiveTraces(t *testing.T) {
	srv := eventsServer(t, func(call int) []Event {
		switch call {
		case 0:
			return []Event{
				{Kind: "message", Source: "agent", Offset: 0, CorrelationID: "trace-1::1", Data: map[string]any{"message": "part one"}},
				{Kind: "message", Source: "agent", Offset: 1, CorrelationID: "trace-2::1", Data: map[string]any{"message": "part two"}},
				{Kind: "status", Source: "agent", Offset: 2, CorrelationID: "trace-1::2", Data: map[string]any{"status": "ready"}},
			}
		default:
			return []Event{
				{Kind: "status", Source: "agent", Offset: 3, CorrelationID: "trace-2::2", Data: map[string]any{"status": "ready"}},
			}
		}
	})
	defer srv.Close()

	proto := NewProtocol(srv.URL, srv.Client())
	cfg := defaultPollConfig()
	cfg.initialInterval = 5 * time.Millisecond

	events, err := pollEventsUntilReady(t.Context(), proto, "remote-1", cfg)
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestPollEventsUntilReadyPropagatesServerReportedError(t *testing.T) {
	srv := eventsServer(t, func(call int) []Event {
		return []Event{
			{Kind: "status", Source: "agent", Offset: 0, CorrelationID: "trace-1::1", Data: map[string]any{"status": "error", "message": "blew up"}},
		}
	})
	defer srv.Close()

	proto := NewProtocol(srv.URL, srv.Client())
	_, err := pollEventsUntilReady(t.Context(), proto, "remote-1", defaultPollConfig())
	assert.ErrorContains(t, err, "blew up")
}

func TestPollEventsUntilReadyTimesOutWhenNeverReady(t *testing.T) {
	srv := eventsServer(t, func(call int) []Event { return nil })
	defer srv.Close()

	proto := NewProtocol(srv.URL, srv.Client())
	cfg := defaultPollConfig()
	cfg.initialInterval = 2 * time.Millisecond
	cfg.maxInterval = 2 * time.Millisecond
	cfg.maxDuration = 15 * time.Millisecond

	_, err := pollEventsUntilReady(t.Context(), proto, "remote-1", cfg)
	assert.Error(t, err)
}

func TestConvertEventsToResponseJoinsMessagesAndCountsTools(t *testing.T) {
	events := []Event{
		{Kind: "message", Source: "agent", Data: map[string]any{"message": "first"}},
		{Kind: "tool", Data: map[string]any{"title": "paper one"}},
		{Kind: "message", Source: "agent", Data: map[string]any{"message": "second"}},
		{Kind: "message", Source: "user", Data: map[string]any{"message": "ignored"}},
	}
	resp, err := convertEventsToResponse("nutrition", events)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", resp.Answer)
	assert.Len(t, resp.Papers, 1)
	assert.Equal(t, 2, resp.Metadata["message_count"])
	assert.Equal(t, 1, resp.Metadata["tool_count"])
}

func TestConvertEventsToResponseErrorsOnNoMessages(t *testing.T) {
	_, err := convertEventsToResponse("nutrition", []Event{{Kind: "tool", Data: map[string]any{}}})
	assert.Error(t, err)
}

func TestGrowIntervalOnlyGrowsAfterThreshold(t *testing.T) {
	cfg := defaultPollConfig()
	assert.Equal(t, cfg.initialInterval, growInterval(cfg.initialInterval, cfg, cfg.growAfter-time.Millisecond))
	grown := growInterval(cfg.initialInterval, cfg, cfg.growAfter+time.Millisecond)
	assert.Greater(t, grown, cfg.initialInterval)
}

func TestBackoffDelayDoublesPerAttempt(t *testing.T) {
	noJitter := func() float64 { return 0.5 } // jitter term becomes zero
	base := 100 * time.Millisecond
	assert.Equal(t, base, backoffDelay(base, 0, noJitter))
	assert.Equal(t, 2*base, backoffDelay(base, 1, noJitter))
	assert.Equal(t, 4*base, backoffDelay(base, 2, noJitter))
}
