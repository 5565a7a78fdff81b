package remoteagent

import (
	"sync"
	"time"
)

// CircuitState is one of the three states a CircuitBreaker can occupy.
// Transitions are strictly closed -> open -> half_open -> (closed | open);
// no direct closed -> half_open jump is allowed.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreaker gates calls to a single remote agent server. State
// mutations are atomic under a mutex; at most one half_open probe may be
// in flight at a time. Grounded on the CircuitBreaker class in
// original_source/backend/Agent/core/remote_agent.py, translated from
// threshold/timeout counters into the same shape guarded by a sync.Mutex.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	failureThreshold int
	recoveryTimeout time.Duration
	lastFailureTime time.Time
	probeInFlight   bool
}

// NewCircuitBreaker constructs a breaker starting in the closed state.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// State returns the current state without mutating it.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call may proceed right now. If the breaker is
// open and the recovery timeout has elapsed, it transitions to half_open
// and admits exactly one probe; subsequent calls are rejected until that
// probe resolves via RecordSuccess/RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		// Only the probe that already flipped us into half_open may pass;
		// any further caller that observes half_open here is racing the
		// probe and must wait for it to resolve.
		return false
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) > cb.recoveryTimeout {
			cb.state = CircuitHalfOpen
			cb.probeInFlight = true
			return true
		}
		return false
	}
	return false
}

// RecordSuccess resets the breaker to closed.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failureCount = 0
	cb.probeInFlight = false
}

// RecordFailure increments the failure count and opens the circuit once
// the threshold is reached (or immediately, if the failure was the
// half_open probe).
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		cb.lastFailureTime = time.Now()
		cb.probeInFlight = false
		return
	}

	cb.failureCount++
	if cb.failureCount >= cb.failureThreshold {
		cb.state = CircuitOpen
		cb.lastFailureTime = time.Now()
	}
}

// FailureCount exposes the current consecutive-failure count, for tests
// and health reporting.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}
