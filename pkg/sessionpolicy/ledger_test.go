package sessionpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerCheckLimitWithinBudget(t *testing.T) {
	l := NewLedger(1000)
	check := l.CheckLimit(400)
	assert.True(t, check.WithinLimit)
	assert.False(t, check.WouldExceed)
	assert.Equal(t, 0, check.CurrentUsage)
	assert.Equal(t, 1000, check.Remaining)
}

func TestLedgerCheckLimitExceeding(t *testing.T) {
	l := NewLedger(1000)
	l.Record("nutrition", 900)

	check := l.CheckLimit(200)
	assert.False(t, check.WithinLimit)
	assert.True(t, check.WouldExceed)
	assert.Equal(t, 900, check.CurrentUsage)
	assert.Equal(t, 100, check.Remaining)
}

func TestLedgerRecordAccumulatesPerAgentAndTotal(t *testing.T) {
	l := NewLedger(1000)
	l.Record("nutrition", 100)
	l.Record("quiz", 50)
	l.Record("nutrition", 25)

	total, perAgent := l.Usage()
	assert.Equal(t, 175, total)
	assert.Equal(t, 125, perAgent["nutrition"])
	assert.Equal(t, 50, perAgent["quiz"])
}

func TestLedgerCancelledCallContributesZero(t *testing.T) {
	l := NewLedger(1000)
	l.Record("quiz", 0)

	total, perAgent := l.Usage()
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, perAgent["quiz"])
}

func TestLedgerReset(t *testing.T) {
	l := NewLedger(1000)
	l.Record("nutrition", 500)
	l.Reset()

	total, perAgent := l.Usage()
	assert.Equal(t, 0, total)
	assert.Empty(t, perAgent)
}

func TestLedgerRegistryGetIsStableAndIsolated(t *testing.T) {
	r := NewLedgerRegistry(1000)
	a := r.Get("session-a")
	a.Record("nutrition", 100)

	again := r.Get("session-a")
	total, _ := again.Usage()
	assert.Equal(t, 100, total)

	b := r.Get("session-b")
	bTotal, _ := b.Usage()
	assert.Equal(t, 0, bTotal)

	r.Delete("session-a")
	fresh := r.Get("session-a")
	freshTotal, _ := fresh.Usage()
	assert.Equal(t, 0, freshTotal)
}
