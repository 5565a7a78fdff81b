package sessionpolicy

import (
	"sync"
	"time"
)

// StreamState tracks an in-flight streaming response so a client
// disconnect or explicit stop request can be honored mid-dispatch,
// per spec.md §4.5's active_streams map: session_id -> {cancel_requested,
// partial_response, started_at}.
type StreamState struct {
	CancelRequested bool
	PartialResponse string
	StartedAt       time.Time
}

// StreamRegistry is the active-streams table shared by the router's
// streaming dispatch path and any API handler that needs to request
// cancellation (e.g. a client-closed websocket).
type StreamRegistry struct {
	mu      sync.Mutex
	streams map[string]*StreamState
}

func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{streams: make(map[string]*StreamState)}
}

// Start registers a new in-flight stream for sessionID, replacing any
// prior entry (a session may only stream one response at a time).
func (r *StreamRegistry) Start(sessionID string) *StreamState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &StreamState{StartedAt: time.Now()}
	r.streams[sessionID] = s
	return s
}

// AppendPartial accumulates streamed text so a cancelled request still
// has something to return to the caller.
func (r *StreamRegistry) AppendPartial(sessionID, chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.streams[sessionID]; ok {
		s.PartialResponse += chunk
	}
}

// RequestCancel marks a stream cancelled; the dispatcher observes this
// on its next check and winds down gracefully.
func (r *StreamRegistry) RequestCancel(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[sessionID]
	if !ok {
		return false
	}
	s.CancelRequested = true
	return true
}

// IsCancelled reports whether cancellation has been requested.
func (r *StreamRegistry) IsCancelled(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[sessionID]
	return ok && s.CancelRequested
}

// Finish removes the stream entry once the response completes or is
// fully cancelled and handed back to the caller.
func (r *StreamRegistry) Finish(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, sessionID)
}

// Snapshot returns a copy of the current state, or ok=false if none.
func (r *StreamRegistry) Snapshot(sessionID string) (StreamState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[sessionID]
	if !ok {
		return StreamState{}, false
	}
	return *s, true
}
