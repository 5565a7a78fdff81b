// Package sessionpolicy implements session lifecycle, conversation
// history, and the consolidated token-accounting policy described in
// spec.md §4.5 and §9 (Open Question: PolicyEngine/ContextTracker merge).
package sessionpolicy

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/ckdqa/pkg/agenterrors"
)

// ConversationEntry is one append-only turn in a session's history.
type ConversationEntry struct {
	Timestamp     time.Time
	AgentType     string
	UserInput     string
	AgentResponse string
}

// Session is the client-scoped context within which history and token
// usage accrue. Invariants (spec.md §3): CreatedAt <= LastActivity;
// absolute lifetime <= session timeout; idle timeout purges History only.
type Session struct {
	SessionID         string
	UserID            string
	RoomID            string
	CreatedAt         time.Time
	LastActivity      time.Time
	ActiveAgent       string
	ConversationHistory []ConversationEntry
}

// Clone returns a deep-enough copy safe to hand to callers outside the
// manager's lock.
func (s *Session) Clone() Session {
	cp := *s
	cp.ConversationHistory = append([]ConversationEntry(nil), s.ConversationHistory...)
	return cp
}

// Manager owns the in-memory session map, sharded by hash of session_id
// per spec.md §9's design note to avoid a single global mutex bottleneck
// under many concurrent sessions. Grounded on the RWMutex-map shape of
// pkg/session/manager.go, generalized into shards.
type Manager struct {
	shards          []*shard
	sessionTimeout  time.Duration
	idleTimeout     time.Duration
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	userRooms map[string][]string
}

const shardCount = 16

// NewManager builds a Manager with the given absolute and idle timeouts.
func NewManager(sessionTimeout, idleTimeout time.Duration) *Manager {
	if sessionTimeout <= 0 {
		sessionTimeout = 30 * time.Minute
	}
	if idleTimeout <= 0 {
		idleTimeout = 10 * time.Minute
	}
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{sessions: make(map[string]*Session), userRooms: make(map[string][]string)}
	}
	return &Manager{shards: shards, sessionTimeout: sessionTimeout, idleTimeout: idleTimeout}
}

func (m *Manager) shardFor(sessionID string) *shard {
	h := fnv32(sessionID)
	return m.shards[h%uint32(len(m.shards))]
}

func fnv32(s string) uint32 {
	const prime = 16777619
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= prime
	}
	return hash
}

// CreateSession generates a session_id and registers the room under the
// user, auto-generating a room id when none is supplied.
func (m *Manager) CreateSession(userID, roomID string) *Session {
	if roomID == "" {
		roomID = "room_" + uuid.New().String()
	}
	now := time.Now()
	s := &Session{
		SessionID:    uuid.New().String(),
		UserID:       userID,
		RoomID:       roomID,
		CreatedAt:    now,
		LastActivity: now,
	}

	sh := m.shardFor(s.SessionID)
	sh.mu.Lock()
	sh.sessions[s.SessionID] = s
	sh.userRooms[userID] = append(sh.userRooms[userID], roomID)
	sh.mu.Unlock()

	return s
}

// GetSession returns the session, applying absolute and (if checkIdle)
// idle eviction first. Absolute timeout deletes the session entirely;
// idle timeout purges history only and resets LastActivity.
func (m *Manager) GetSession(sessionID string, checkIdle bool) (*Session, error) {
	sh := m.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[sessionID]
	if !ok {
		return nil, agenterrors.NewSessionNotFoundError("session not found: " + sessionID)
	}

	now := time.Now()
	if now.Sub(s.CreatedAt) > m.sessionTimeout {
		delete(sh.sessions, sessionID)
		return nil, agenterrors.NewSessionNotFoundError("session expired: " + sessionID)
	}

	if checkIdle && now.Sub(s.LastActivity) > m.idleTimeout {
		s.ConversationHistory = nil
		s.LastActivity = now
	}

	clone := s.Clone()
	return &clone, nil
}

// UpdateActivity bumps LastActivity and (if non-empty) ActiveAgent.
func (m *Manager) UpdateActivity(sessionID, agentType string) error {
	sh := m.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[sessionID]
	if !ok {
		return agenterrors.NewSessionNotFoundError("session not found: " + sessionID)
	}
	s.LastActivity = time.Now()
	if agentType != "" {
		s.ActiveAgent = agentType
	}
	return nil
}

// AddToHistory appends a new entry. Entries are never mutated afterward.
func (m *Manager) AddToHistory(sessionID, agentType, userInput, agentResponse string) error {
	sh := m.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[sessionID]
	if !ok {
		return agenterrors.NewSessionNotFoundError("session not found: " + sessionID)
	}
	s.ConversationHistory = append(s.ConversationHistory, ConversationEntry{
		Timestamp:     time.Now(),
		AgentType:     agentType,
		UserInput:     userInput,
		AgentResponse: agentResponse,
	})
	return nil
}

// ConversationHistory returns up to limit most-recent entries (0 = all).
func (m *Manager) ConversationHistory(sessionID string, limit int) ([]ConversationEntry, error) {
	sh := m.shardFor(sessionID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	s, ok := sh.sessions[sessionID]
	if !ok {
		return nil, agenterrors.NewSessionNotFoundError("session not found: " + sessionID)
	}
	hist := s.ConversationHistory
	if limit > 0 && len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	return append([]ConversationEntry(nil), hist...), nil
}

// ConversationHistoryByAgent filters ConversationHistory by agent type.
func (m *Manager) ConversationHistoryByAgent(sessionID, agentType string, limit int) ([]ConversationEntry, error) {
	full, err := m.ConversationHistory(sessionID, 0)
	if err != nil {
		return nil, err
	}
	var out []ConversationEntry
	for _, e := range full {
		if e.AgentType == agentType {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// DeleteSession removes a session explicitly.
func (m *Manager) DeleteSession(sessionID string) error {
	sh := m.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.sessions[sessionID]; !ok {
		return agenterrors.NewSessionNotFoundError("session not found: " + sessionID)
	}
	delete(sh.sessions, sessionID)
	return nil
}

// ResetHistory clears a session's conversation history in place, keeping
// the session (and its token ledger in LedgerRegistry) alive. This backs
// the "reset session context" operation (spec.md §4.5), which is distinct
// from DeleteSession.
func (m *Manager) ResetHistory(sessionID string) error {
	sh := m.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.sessions[sessionID]
	if !ok {
		return agenterrors.NewSessionNotFoundError("session not found: " + sessionID)
	}
	s.ConversationHistory = nil
	s.LastActivity = time.Now()
	return nil
}

// UserRooms lists rooms registered under a user.
func (m *Manager) UserRooms(userID string) []string {
	var out []string
	for _, sh := range m.shards {
		sh.mu.RLock()
		out = append(out, sh.userRooms[userID]...)
		sh.mu.RUnlock()
	}
	return out
}

// CleanupExpired sweeps every shard, deleting sessions past their absolute
// timeout, and returns their session IDs so callers can also evict any
// associated ledgers/streams. Intended to be called periodically by a
// background worker (see sweeper.go), grounded on the teacher's
// orphan-detection goroutine shape in pkg/queue/pool.go.
func (m *Manager) CleanupExpired() []string {
	var removed []string
	now := time.Now()
	for _, sh := range m.shards {
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if now.Sub(s.CreatedAt) > m.sessionTimeout {
				delete(sh.sessions, id)
				removed = append(removed, id)
			}
		}
		sh.mu.Unlock()
	}
	return removed
}
