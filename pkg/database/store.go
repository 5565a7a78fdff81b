package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is the persisted row for a session.
type SessionRecord struct {
	SessionID    string
	UserID       string
	RoomID       string
	ActiveAgent  string
	CreatedAt    time.Time
	LastActivity time.Time
}

// HistoryRecord is one persisted conversation turn.
type HistoryRecord struct {
	SessionID     string
	AgentType     string
	UserInput     string
	AgentResponse string
	CreatedAt     time.Time
}

// Store is the SQL-backed durable persistence for sessions, conversation
// history, and token usage, alongside pkg/sessionpolicy's in-memory
// Manager/Ledger (spec.md §9 notes the in-memory layer as the source of
// truth for request-path latency). Outside tests, only the API's
// session-create handler writes here (UpsertSession) and the retention
// sweeper deletes expired sessions; the request path does not call
// AppendHistory or RecordTokenUsage, so persisted history and token usage
// hold only what a caller writes explicitly.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database connection.
func NewStore(c *Client) *Store {
	return &Store{db: c.db}
}

// UpsertSession inserts a session or refreshes its activity/agent fields.
func (s *Store) UpsertSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, room_id, active_agent, created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			active_agent = EXCLUDED.active_agent,
			last_activity = EXCLUDED.last_activity`,
		rec.SessionID, rec.UserID, rec.RoomID, rec.ActiveAgent, rec.CreatedAt, rec.LastActivity)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", rec.SessionID, err)
	}
	return nil
}

// GetSession loads a session row, or sql.ErrNoRows if absent.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	var rec SessionRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, room_id, active_agent, created_at, last_activity
		FROM sessions WHERE session_id = $1`, sessionID).
		Scan(&rec.SessionID, &rec.UserID, &rec.RoomID, &rec.ActiveAgent, &rec.CreatedAt, &rec.LastActivity)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteSession removes a session and (via ON DELETE CASCADE) its history
// and token-usage rows.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions whose absolute lifetime has
// elapsed, returning the count removed. Called by
// sessionpolicy.RetentionSweeper on its own interval.
func (s *Store) DeleteExpiredSessions(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE created_at < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// AppendHistory persists one conversation turn.
func (s *Store) AppendHistory(ctx context.Context, rec HistoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_history (session_id, agent_type, user_input, agent_response, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.SessionID, rec.AgentType, rec.UserInput, rec.AgentResponse, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("append history for session %s: %w", rec.SessionID, err)
	}
	return nil
}

// History returns up to limit most-recent turns for a session, oldest first.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, agent_type, user_input, agent_response, created_at
		FROM conversation_history
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.SessionID, &rec.AgentType, &rec.UserInput, &rec.AgentResponse, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, rec)
	}

	// Reverse to oldest-first, matching the in-memory append order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// SearchHistory runs a full-text search over past agent responses,
// exercising the GIN index created by migration 0002, mirroring the
// teacher's CreateGINIndexes pattern but over conversation_history instead
// of alert_sessions.
func (s *Store) SearchHistory(ctx context.Context, query string, limit int) ([]HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, agent_type, user_input, agent_response, created_at
		FROM conversation_history
		WHERE to_tsvector('english', agent_response) @@ plainto_tsquery('english', $1)
		ORDER BY created_at DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.SessionID, &rec.AgentType, &rec.UserInput, &rec.AgentResponse, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RoomSummary is one entry in the rooms?user_id=… listing (spec.md §6).
type RoomSummary struct {
	RoomID       string
	SessionID    string
	LastMessage  string
	LastActivity time.Time
}

// RoomsForUser lists the rooms a user has sessions in, each annotated with
// its most recent conversation turn, newest room first.
func (s *Store) RoomsForUser(ctx context.Context, userID string) ([]RoomSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.room_id, s.session_id, s.last_activity,
		       COALESCE((SELECT ch.agent_response FROM conversation_history ch
		                 WHERE ch.session_id = s.session_id
		                 ORDER BY ch.created_at DESC LIMIT 1), '')
		FROM sessions s
		WHERE s.user_id = $1
		ORDER BY s.last_activity DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []RoomSummary
	for rows.Next() {
		var r RoomSummary
		if err := rows.Scan(&r.RoomID, &r.SessionID, &r.LastActivity, &r.LastMessage); err != nil {
			return nil, fmt.Errorf("scan room row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SessionByRoom finds the session currently associated with a room. Rooms
// map one-to-one to a session for its lifetime in this model.
func (s *Store) SessionByRoom(ctx context.Context, roomID string) (*SessionRecord, error) {
	var rec SessionRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, room_id, active_agent, created_at, last_activity
		FROM sessions WHERE room_id = $1
		ORDER BY last_activity DESC LIMIT 1`, roomID).
		Scan(&rec.SessionID, &rec.UserID, &rec.RoomID, &rec.ActiveAgent, &rec.CreatedAt, &rec.LastActivity)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordTokenUsage accumulates tokensUsed for (sessionID, agentType).
func (s *Store) RecordTokenUsage(ctx context.Context, sessionID, agentType string, tokensUsed int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_usage (session_id, agent_type, tokens_used, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id, agent_type) DO UPDATE SET
			tokens_used = token_usage.tokens_used + EXCLUDED.tokens_used,
			updated_at = now()`,
		sessionID, agentType, tokensUsed)
	if err != nil {
		return fmt.Errorf("record token usage for session %s: %w", sessionID, err)
	}
	return nil
}

// TotalTokenUsage sums tokens_used across every agent for a session.
func (s *Store) TotalTokenUsage(ctx context.Context, sessionID string) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(tokens_used) FROM token_usage WHERE session_id = $1`, sessionID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total token usage for session %s: %w", sessionID, err)
	}
	return int(total.Int64), nil
}
