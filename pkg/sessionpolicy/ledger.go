package sessionpolicy

import (
	"sync"
)

// LimitCheck is the admission-control verdict returned before dispatch,
// per spec.md §4.5: "within_limit, current_usage, max_limit, remaining,
// would_exceed".
type LimitCheck struct {
	WithinLimit  bool
	CurrentUsage int
	MaxLimit     int
	Remaining    int
	WouldExceed  bool
}

// Ledger is the consolidated token-accounting policy for a single session,
// merging what the original system split across a PolicyEngine (admission
// control against a fixed budget) and a ContextTracker (per-agent running
// totals) — see SPEC_FULL.md §9 Open Question decision #1. One Ledger per
// session, held in a LedgerRegistry keyed by session ID.
type Ledger struct {
	mu          sync.Mutex
	maxTokens   int
	perAgent    map[string]int
	totalUsage  int
}

// NewLedger builds a Ledger with the given absolute session token budget.
func NewLedger(maxTokens int) *Ledger {
	if maxTokens <= 0 {
		maxTokens = 100000
	}
	return &Ledger{maxTokens: maxTokens, perAgent: make(map[string]int)}
}

// CheckLimit answers whether requested additional tokens may be spent
// without exceeding the session budget. It does not reserve anything;
// callers must call Record after the call actually completes.
func (l *Ledger) CheckLimit(requested int) LimitCheck {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.maxTokens - l.totalUsage
	if remaining < 0 {
		remaining = 0
	}
	wouldExceed := l.totalUsage+requested > l.maxTokens

	return LimitCheck{
		WithinLimit:  !wouldExceed,
		CurrentUsage: l.totalUsage,
		MaxLimit:     l.maxTokens,
		Remaining:    remaining,
		WouldExceed:  wouldExceed,
	}
}

// Record attributes tokensUsed to agentType and the session total. A
// cancelled sub-agent call must pass tokensUsed=0, per SPEC_FULL.md §9
// Open Question decision #2 — cancellation contributes nothing to usage.
func (l *Ledger) Record(agentType string, tokensUsed int) {
	if tokensUsed <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.perAgent[agentType] += tokensUsed
	l.totalUsage += tokensUsed
}

// Usage returns the current total and per-agent breakdown.
func (l *Ledger) Usage() (total int, perAgent map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make(map[string]int, len(l.perAgent))
	for k, v := range l.perAgent {
		cp[k] = v
	}
	return l.totalUsage, cp
}

// Reset clears accumulated usage. The idle-timeout history purge in
// Manager.GetSession does not call it, so a session's budget survives an
// idle purge (spec.md §4.5: idle timeout purges history, not budget).
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalUsage = 0
	l.perAgent = make(map[string]int)
}

// LedgerRegistry maps session IDs to their Ledger, created lazily.
// Kept separate from the Session struct so sessionpolicy.Manager can
// evict sessions and ledgers on independent schedules if ever needed,
// though in practice they are created and destroyed together.
type LedgerRegistry struct {
	mu       sync.Mutex
	ledgers  map[string]*Ledger
	maxTokens int
}

// NewLedgerRegistry builds a registry whose ledgers all share maxTokens.
func NewLedgerRegistry(maxTokens int) *LedgerRegistry {
	return &LedgerRegistry{ledgers: make(map[string]*Ledger), maxTokens: maxTokens}
}

// Get returns (creating if necessary) the Ledger for a session.
func (r *LedgerRegistry) Get(sessionID string) *Ledger {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[sessionID]
	if !ok {
		l = NewLedger(r.maxTokens)
		r.ledgers[sessionID] = l
	}
	return l
}

// Delete drops a session's ledger, e.g. on explicit session deletion or
// absolute-timeout eviction.
func (r *LedgerRegistry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ledgers, sessionID)
}
