package remoteagent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
)

// fakeRemoteServer implements just enough of the event-polling protocol
// (sessions/messages/events/health) to drive RemoteAgent end to end.
// sendMessageFailures controls how many POST .../messages calls return 500
// before the call starts succeeding, simulating scenario 2's intermittent
// remote failures.
type fakeRemoteServer struct {
	sendMessageFailures int32
	calls               int32
}

func (f *fakeRemoteServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/sessions":
			json.NewEncoder(w).Encode(map[string]string{"session_id": "remote-sess"})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
			n := atomic.AddInt32(&f.calls, 1)
			if n <= f.sendMessageFailures {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/events"):
			json.NewEncoder(w).Encode(map[string]any{"events": []Event{
				{Kind: "message", Source: "agent", Offset: 0, CorrelationID: "t::1", Data: map[string]any{"message": "answer"}},
				{Kind: "status", Source: "agent", Offset: 1, CorrelationID: "t::2", Data: map[string]any{"status": "ready"}},
			}})
		case r.Method == http.MethodGet && r.URL.Path == "/health":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestRemoteAgentProcessRetriesThroughIntermittentFailures(t *testing.T) {
	srv := &fakeRemoteServer{sendMessageFailures: 2}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	agent := NewRemoteAgent(Config{
		AgentType:   "nutrition",
		BaseURL:     ts.URL,
		BackoffBase: time.Millisecond,
		MaxRetries:  4,
	}, ts.Client())

	resp, err := agent.Process(t.Context(), &contracts.AgentRequest{Query: "what can I eat", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Answer)
	assert.Equal(t, int32(3), atomic.LoadInt32(&srv.calls))
}

func TestRemoteAgentDefaultMaxRetriesIsFour(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 4, cfg.MaxRetries)
}

func TestRemoteAgentCircuitTripsAfterRepeatedFailuresAndRecovers(t *testing.T) {
	srv := &fakeRemoteServer{sendMessageFailures: 1000}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	agent := NewRemoteAgent(Config{
		AgentType:        "nutrition",
		BaseURL:          ts.URL,
		BackoffBase:      time.Millisecond,
		MaxRetries:       0,
		FailureThreshold: 2,
		RecoveryTimeout:  10 * time.Millisecond,
	}, ts.Client())

	for i := 0; i < 2; i++ {
		_, err := agent.Process(t.Context(), &contracts.AgentRequest{Query: "q", SessionID: "sess-1"})
		assert.Error(t, err)
	}
	assert.Equal(t, CircuitOpen, agent.breaker.State())

	// Circuit is open: the next call must fail fast without reaching the
	// server again.
	before := atomic.LoadInt32(&srv.calls)
	_, err := agent.Process(t.Context(), &contracts.AgentRequest{Query: "q", SessionID: "sess-1"})
	assert.Error(t, err)
	assert.Equal(t, before, atomic.LoadInt32(&srv.calls))

	// Let the server start succeeding and wait out the recovery timeout;
	// the half-open probe should succeed and close the circuit.
	atomic.StoreInt32(&srv.sendMessageFailures, 0)
	time.Sleep(20 * time.Millisecond)

	healthy, _ := agent.HealthCheck(t.Context())
	assert.True(t, healthy)

	resp, err := agent.Process(t.Context(), &contracts.AgentRequest{Query: "q", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Answer)
	assert.Equal(t, CircuitClosed, agent.breaker.State())
}

func TestRemoteAgentSessionInvalidatedOn404IsRecreatedOnNextCall(t *testing.T) {
	var sessionCalls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/sessions":
			n := atomic.AddInt32(&sessionCalls, 1)
			_ = n
			json.NewEncoder(w).Encode(map[string]string{"session_id": "remote-sess"})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
			if atomic.LoadInt32(&sessionCalls) == 1 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/events"):
			json.NewEncoder(w).Encode(map[string]any{"events": []Event{
				{Kind: "message", Source: "agent", Offset: 0, CorrelationID: "t::1", Data: map[string]any{"message": "ok"}},
				{Kind: "status", Source: "agent", Offset: 1, CorrelationID: "t::2", Data: map[string]any{"status": "ready"}},
			}})
		}
	}))
	defer ts.Close()

	agent := NewRemoteAgent(Config{
		AgentType:        "nutrition",
		BaseURL:          ts.URL,
		BackoffBase:      time.Millisecond,
		MaxRetries:       0,
		FailureThreshold: 10,
	}, ts.Client())

	// First call: the cached (nonexistent) session 404s on send-message,
	// which is not a retryable transport error, so it fails outright but
	// invalidates the cached remote session.
	_, err := agent.Process(t.Context(), &contracts.AgentRequest{Query: "q", SessionID: "sess-1"})
	assert.Error(t, err)

	// Second call: getOrCreateSession rebuilds the session since it was
	// cleared, and the retry now succeeds.
	resp, err := agent.Process(t.Context(), &contracts.AgentRequest{Query: "q", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Answer)
	assert.Equal(t, int32(2), atomic.LoadInt32(&sessionCalls))
}
