package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// RoomResponse is one entry in GET /api/v1/rooms?user_id=….
type RoomResponse struct {
	RoomID       string `json:"room_id"`
	SessionID    string `json:"session_id"`
	LastMessage  string `json:"last_message"`
	LastActivity string `json:"last_activity"`
}

// listRoomsHandler handles GET /api/v1/rooms?user_id=….
func (s *Server) listRoomsHandler(c *echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	if s.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "durable history is not available")
	}

	rooms, err := s.store.RoomsForUser(c.Request().Context(), userID)
	if err != nil {
		return mapAgentError(err)
	}

	out := make([]RoomResponse, len(rooms))
	for i, r := range rooms {
		out[i] = RoomResponse{
			RoomID: r.RoomID, SessionID: r.SessionID,
			LastMessage:  r.LastMessage,
			LastActivity: r.LastActivity.Format(time.RFC3339Nano),
		}
	}
	return c.JSON(http.StatusOK, out)
}

// roomHistoryHandler handles GET /api/v1/rooms/:room_id/history?limit=.
func (s *Server) roomHistoryHandler(c *echo.Context) error {
	roomID := c.Param("room_id")
	limit := intQueryParam(c, "limit", 50)
	if s.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "durable history is not available")
	}

	sess, err := s.store.SessionByRoom(c.Request().Context(), roomID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "room not found")
	}

	hist, err := s.store.History(c.Request().Context(), sess.SessionID, limit)
	if err != nil {
		return mapAgentError(err)
	}

	out := make([]HistoryEntryResponse, len(hist))
	for i, h := range hist {
		out[i] = HistoryEntryResponse{
			AgentType: h.AgentType, UserInput: h.UserInput, AgentResponse: h.AgentResponse,
			Timestamp: h.CreatedAt.Format(time.RFC3339Nano),
		}
	}
	return c.JSON(http.StatusOK, out)
}

// historyByAgentHandler handles GET /api/v1/history/:agent_type?session_id=.
// session_id is required; lookup by user_id is not supported.
func (s *Server) historyByAgentHandler(c *echo.Context) error {
	agentType := c.Param("agent_type")
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	entries, err := s.sessions.ConversationHistoryByAgent(sessionID, agentType, intQueryParam(c, "limit", 50))
	if err != nil {
		return mapAgentError(err)
	}
	return c.JSON(http.StatusOK, entriesToResponses(entries))
}

