package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
)

// wsRequest is the first frame a client sends after connecting.
type wsRequest struct {
	Query     string         `json:"query"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Profile   string         `json:"profile,omitempty"`
	Language  string         `json:"language,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// wsEvent mirrors the streaming chat contract (spec.md §6): every event
// carries at least content/status/agent_type.
type wsEvent struct {
	Content   string `json:"content"`
	Status    string `json:"status"`
	AgentType string `json:"agent_type,omitempty"`
}

// wsHandler upgrades the connection and serves one request-response
// streaming cycle per inbound frame, grounded on the teacher's
// pkg/events connection-manager shape but using coder/websocket directly
// since this core has no fan-out broadcast hub to share connections with.
func (s *Server) wsHandler(c *echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	ctx := c.Request().Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return nil
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			writeWSEvent(ctx, conn, wsEvent{Status: string(contracts.StreamStatusError), Content: "invalid request"})
			continue
		}
		if req.Query == "" || req.SessionID == "" {
			writeWSEvent(ctx, conn, wsEvent{Status: string(contracts.StreamStatusError), Content: "query and session_id are required"})
			continue
		}

		agentReq := &contracts.AgentRequest{
			Query:     req.Query,
			SessionID: req.SessionID,
			UserID:    req.UserID,
			Context:   req.Context,
			Profile:   contracts.Profile(req.Profile),
			Language:  req.Language,
			Timestamp: time.Now(),
		}
		if agentReq.Language == "" {
			agentReq.Language = "ko"
		}

		s.router.RouteStream(ctx, agentReq, func(chunk contracts.StreamChunk) bool {
			return writeWSEvent(ctx, conn, wsEvent{
				Content: chunk.Content, Status: string(chunk.Status), AgentType: chunk.AgentType,
			})
		})
	}
}

// writeWSEvent marshals and writes one event, returning false (to stop a
// RouteStream yield loop) if the connection has gone away.
func writeWSEvent(ctx context.Context, conn *websocket.Conn, ev wsEvent) bool {
	b, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, b) == nil
}
