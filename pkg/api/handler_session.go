package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/ckdqa/pkg/database"
	"github.com/codeready-toolchain/ckdqa/pkg/sessionpolicy"
)

// createSessionHandler handles POST /api/v1/sessions.
func (s *Server) createSessionHandler(c *echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	session := s.sessions.CreateSession(req.UserID, req.RoomID)

	if s.store != nil {
		if err := s.store.UpsertSession(c.Request().Context(), database.SessionRecord{
			SessionID: session.SessionID, UserID: session.UserID, RoomID: session.RoomID,
			CreatedAt: session.CreatedAt, LastActivity: session.LastActivity,
		}); err != nil {
			return mapAgentError(err)
		}
	}

	return c.JSON(http.StatusCreated, &SessionResponse{
		SessionID: session.SessionID, UserID: session.UserID, RoomID: session.RoomID,
	})
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	id := c.Param("id")
	session, err := s.sessions.GetSession(id, true)
	if err != nil {
		return mapAgentError(err)
	}
	return c.JSON(http.StatusOK, &SessionResponse{
		SessionID: session.SessionID, UserID: session.UserID, RoomID: session.RoomID,
	})
}

// resetSessionHandler handles POST /api/v1/sessions/:id/reset, clearing
// conversation history while keeping the session and its token ledger.
func (s *Server) resetSessionHandler(c *echo.Context) error {
	id := c.Param("id")
	if err := s.sessions.ResetHistory(id); err != nil {
		return mapAgentError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// cancelSessionHandler handles POST /api/v1/sessions/:id/cancel, the only
// supported form of cancellation per spec.md §4.5: it sets
// cancel_requested on the session's active stream, if any, so the
// dispatcher winds down gracefully and yields a terminal cancelled chunk.
func (s *Server) cancelSessionHandler(c *echo.Context) error {
	id := c.Param("id")
	if !s.router.CancelStream(id) {
		return echo.NewHTTPError(http.StatusNotFound, "no active stream for session")
	}
	return c.NoContent(http.StatusNoContent)
}

// sessionHistoryHandler handles GET /api/v1/sessions/:id/history?limit=.
func (s *Server) sessionHistoryHandler(c *echo.Context) error {
	id := c.Param("id")
	limit := intQueryParam(c, "limit", 50)

	entries, err := s.sessions.ConversationHistory(id, limit)
	if err != nil {
		return mapAgentError(err)
	}
	return c.JSON(http.StatusOK, entriesToResponses(entries))
}

func entriesToResponses(entries []sessionpolicy.ConversationEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntryResponse{
			AgentType:     e.AgentType,
			UserInput:     e.UserInput,
			AgentResponse: e.AgentResponse,
			Timestamp:     e.Timestamp.Format(time.RFC3339Nano),
		}
	}
	return out
}

func intQueryParam(c *echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
