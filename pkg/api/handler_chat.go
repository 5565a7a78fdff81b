package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/ckdqa/pkg/contracts"
)

// sendMessageHandler handles POST /api/v1/sessions/:id/messages, the
// non-streaming form of the inbound chat contract (spec.md §6). Streaming
// delivery is served over /api/v1/ws instead.
func (s *Server) sendMessageHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if _, err := s.sessions.GetSession(sessionID, true); err != nil {
		return mapAgentError(err)
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	agentReq := &contracts.AgentRequest{
		Query:     req.Query,
		SessionID: sessionID,
		UserID:    req.UserID,
		Context:   req.Context,
		Profile:   contracts.Profile(req.Profile),
		Language:  req.Language,
		Timestamp: time.Now(),
	}
	if agentReq.Language == "" {
		agentReq.Language = "ko"
	}

	resp, err := s.router.Route(c.Request().Context(), agentReq)
	if err != nil {
		return mapAgentError(err)
	}

	return c.JSON(http.StatusOK, &ChatResponse{
		Answer:     resp.Answer,
		Sources:    resp.Sources,
		Papers:     resp.Papers,
		TokensUsed: resp.TokensUsed,
		Status:     string(resp.Status),
		AgentType:  resp.AgentType,
		Metadata:   resp.Metadata,
	})
}
