package remoteagent

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/codeready-toolchain/ckdqa/pkg/agenterrors"
	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
)

// Config tunes a single RemoteAgent instance.
type Config struct {
	AgentType          string
	BaseURL            string
	Timeout            time.Duration
	MaxRetries         int
	BackoffBase        time.Duration
	MaxPollingDuration time.Duration
	FailureThreshold   int
	RecoveryTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		// 4 retries (delays b, 2b, 4b, 8b) matches spec.md §8 scenario 2's
		// intermittent-remote-agent recovery window.
		c.MaxRetries = 4
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 250 * time.Millisecond
	}
	if c.MaxPollingDuration <= 0 {
		c.MaxPollingDuration = 120 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	return c
}

// RemoteAgent lets a registry entry wrap an externally hosted agent server
// that implements the event-polling protocol. It owns a lazily acquired
// remote session, a circuit breaker, and a retry envelope.
//
// Grounded on RemoteAgent in original_source/backend/Agent/core/remote_agent.py,
// with the lazy-session-acquisition idiom adapted from the per-server
// sessions map in the teacher's pkg/mcp/client.go.
type RemoteAgent struct {
	cfg     Config
	proto   *Protocol
	breaker *CircuitBreaker

	mu            sync.Mutex
	remoteSession string // empty until first use
}

// NewRemoteAgent builds a RemoteAgent fronting cfg.BaseURL.
func NewRemoteAgent(cfg Config, hc *http.Client) *RemoteAgent {
	cfg = cfg.withDefaults()
	return &RemoteAgent{
		cfg:     cfg,
		proto:   NewProtocol(cfg.BaseURL, hc),
		breaker: NewCircuitBreaker(cfg.FailureThreshold, cfg.RecoveryTimeout),
	}
}

func (a *RemoteAgent) Metadata() contracts.AgentMetadata {
	return contracts.AgentMetadata{
		Name:          a.cfg.AgentType,
		Description:   fmt.Sprintf("remote agent fronting %s", a.cfg.BaseURL),
		Version:       "1",
		ExecutionType: contracts.ExecutionRemote,
	}
}

func (a *RemoteAgent) ExecutionType() contracts.ExecutionType { return contracts.ExecutionRemote }

// EstimateContextUsage is a cheap heuristic: ~4 characters per token, the
// same order-of-magnitude estimator local agents use for admission control.
func (a *RemoteAgent) EstimateContextUsage(text string) int {
	return len(text)/4 + 1
}

// Process executes the full circuit-checked retry envelope around a single
// remote-agent call.
func (a *RemoteAgent) Process(ctx context.Context, req *contracts.AgentRequest) (*contracts.AgentResponse, error) {
	if !a.breaker.Allow() {
		return nil, agenterrors.NewAgentCircuitOpenError(
			fmt.Sprintf("circuit open for %s", a.cfg.AgentType), a.cfg.AgentType)
	}

	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		resp, err := a.executeWithTimeout(ctx, req)
		if err == nil {
			a.breaker.RecordSuccess()
			return resp, nil
		}

		lastErr = err

		if isParseError(err) {
			// Server defect — never retried.
			a.breaker.RecordFailure()
			return nil, err
		}

		a.breaker.RecordFailure()

		if !isRetryableTransport(err) || attempt == a.cfg.MaxRetries {
			return nil, err
		}

		delay := backoffDelay(a.cfg.BackoffBase, attempt, rand.Float64)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
	}
	return nil, lastErr
}

// ProcessStream has no native remote-streaming support in this protocol;
// it wraps Process and yields the single final response, matching the
// default LocalAgent.ProcessStream behavior in local_agent.py.
func (a *RemoteAgent) ProcessStream(ctx context.Context, req *contracts.AgentRequest, yield func(any) bool) {
	resp, err := a.Process(ctx, req)
	if err != nil {
		yield(&contracts.AgentResponse{
			Status:    contracts.StatusError,
			AgentType: a.cfg.AgentType,
			Answer:    err.Error(),
			Timestamp: time.Now(),
		})
		return
	}
	yield(resp)
}

func (a *RemoteAgent) executeWithTimeout(ctx context.Context, req *contracts.AgentRequest) (*contracts.AgentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.MaxPollingDuration)
	defer cancel()

	session, err := a.getOrCreateSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if err := a.proto.SendMessage(ctx, session, req.Query); err != nil {
		if isSessionNotFound(err) {
			a.mu.Lock()
			a.remoteSession = ""
			a.mu.Unlock()
		}
		return nil, err
	}

	events, err := pollEventsUntilReady(ctx, a.proto, session, defaultPollConfig())
	if err != nil {
		return nil, err
	}

	return convertEventsToResponse(a.cfg.AgentType, events)
}

// getOrCreateSession acquires the remote session under an instance-level
// lock, reusing it across calls; a 404 on send invalidates the cache so
// the next call rebuilds it.
func (a *RemoteAgent) getOrCreateSession(ctx context.Context, localSessionID string) (string, error) {
	a.mu.Lock()
	if a.remoteSession != "" {
		s := a.remoteSession
		a.mu.Unlock()
		return s, nil
	}
	a.mu.Unlock()

	session, err := a.proto.CreateOrGetSession(ctx, localSessionID)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.remoteSession = session
	a.mu.Unlock()
	return session, nil
}

// HealthCheck reports liveness and circuit state for the health endpoint.
func (a *RemoteAgent) HealthCheck(ctx context.Context) (healthy bool, state CircuitState) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := a.proto.HealthCheck(ctx)
	return err == nil, a.breaker.State()
}

func isParseError(err error) bool {
	var ae *agenterrors.AgentError
	if ok := asAgentError(err, &ae); ok {
		return ae.Code == agenterrors.CodeAgentResponseParse
	}
	return false
}

func isSessionNotFound(err error) bool {
	var ae *agenterrors.AgentError
	if ok := asAgentError(err, &ae); ok {
		return ae.Code == agenterrors.CodeAgentSessionNotFound
	}
	return false
}

// isRetryableTransport mirrors ClassifyError in the teacher's
// pkg/mcp/recovery.go: net.Error values (connect, timeout), server-error
// and server-unavailable AgentErrors, and any other unclassified error are
// retried; every other AgentError code (session-not-found, HTTP 4xx,
// parse errors, ...) is not.
func isRetryableTransport(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if asNetError(err, &netErr) {
		return true
	}
	var ae *agenterrors.AgentError
	if asAgentError(err, &ae) {
		switch ae.Code {
		case agenterrors.CodeAgentServerError, agenterrors.CodeAgentServerUnavail:
			return true
		default:
			return false
		}
	}
	// Plain network errors (connection refused, DNS failure) not wrapped
	// in an AgentError are transport-level and retryable.
	return true
}
