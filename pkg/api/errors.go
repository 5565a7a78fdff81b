package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/ckdqa/pkg/agenterrors"
)

// mapAgentError maps the core's agenterrors.AgentError code hierarchy onto
// HTTP status codes, mirroring the teacher's mapServiceError (pkg/api/errors.go).
func mapAgentError(err error) *echo.HTTPError {
	var tokenErr *agenterrors.TokenLimitError
	if errors.As(err, &tokenErr) {
		return echo.NewHTTPError(http.StatusTooManyRequests, tokenErr.ToMap())
	}

	var agentErr *agenterrors.AgentError
	if errors.As(err, &agentErr) {
		switch agentErr.Code {
		case agenterrors.CodeSessionNotFound, agenterrors.CodeAgentSessionNotFound, agenterrors.CodeAgentNotFound:
			return echo.NewHTTPError(http.StatusNotFound, agentErr.Message)
		case agenterrors.CodeSessionCreationBlocked:
			return echo.NewHTTPError(http.StatusConflict, agentErr.Message)
		case agenterrors.CodeAgentTimeout:
			return echo.NewHTTPError(http.StatusGatewayTimeout, agentErr.Message)
		case agenterrors.CodeAgentServerUnavail, agenterrors.CodeAgentCircuitOpen:
			return echo.NewHTTPError(http.StatusServiceUnavailable, agentErr.Message)
		case agenterrors.CodeIntentClassification, agenterrors.CodeAgentResponseParse:
			return echo.NewHTTPError(http.StatusBadGateway, agentErr.Message)
		default:
			slog.Error("unhandled agent error", "code", agentErr.Code, "error", agentErr)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	slog.Error("unexpected error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
