package remoteagent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerStartsClosedAndAllows(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerOpensAtFailureThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreakerRejectsWhileOpenBeforeRecoveryTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	cb.RecordFailure()
	require := assert.New(t)
	require.Equal(CircuitOpen, cb.State())
	require.False(cb.Allow())
}

func TestCircuitBreakerHalfOpensAfterRecoveryTimeoutAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	assert.True(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require := assert.New(t)
	require.True(cb.Allow())
	require.Equal(CircuitHalfOpen, cb.State())

	cb.RecordFailure()
	require.Equal(CircuitOpen, cb.State())
}

func TestCircuitBreakerOnlyOneProbeAdmittedWhileHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	assert.True(t, cb.Allow())
	// A second caller racing the first probe must not also be admitted.
	assert.False(t, cb.Allow())
}

func TestNewCircuitBreakerAppliesDefaults(t *testing.T) {
	cb := NewCircuitBreaker(0, 0)
	assert.Equal(t, 5, cb.failureThreshold)
	assert.Equal(t, 60*time.Second, cb.recoveryTimeout)
}
