// Package agenterrors defines the stable error-code hierarchy shared across
// the registry, router, remote-agent adapter, retrieval engine, and session
// layer. Every error carries a stable code, a human message, and an optional
// wrapped cause for chaining with errors.Is/errors.As.
package agenterrors

import "fmt"

// Code is a stable, loggable error identifier independent of message text.
type Code string

const (
	CodeDatabaseConnection    Code = "DB_CONNECTION_ERROR"
	CodeExternalService       Code = "EXTERNAL_SERVICE_ERROR"
	CodeAgentNotFound         Code = "AGENT_NOT_FOUND"
	CodeAgentServerUnavail    Code = "AGENT_SERVER_UNAVAILABLE"
	CodeAgentTimeout          Code = "AGENT_TIMEOUT"
	CodeAgentResponseParse    Code = "AGENT_RESPONSE_PARSE_ERROR"
	CodeAgentCircuitOpen      Code = "AGENT_CIRCUIT_OPEN"
	CodeAgentServerError      Code = "AGENT_SERVER_ERROR"
	CodeAgentSessionNotFound  Code = "AGENT_SESSION_NOT_FOUND"
	CodeAgentHTTPError        Code = "AGENT_HTTP_ERROR"
	CodeAgentExecutionError   Code = "AGENT_EXECUTION_ERROR"
	CodeIntentClassification  Code = "INTENT_CLASSIFICATION_ERROR"
	CodeResponseAggregation   Code = "RESPONSE_AGGREGATION_ERROR"
	CodeSessionNotFound       Code = "SESSION_NOT_FOUND"
	CodeSessionCreationBlocked Code = "SESSION_CREATION_NOT_ALLOWED"
	CodeTokenLimitExceeded    Code = "TOKEN_LIMIT_EXCEEDED"
)

// AgentError is the base error type for the entire core. Every subkind
// below is constructed via a helper that sets Code and Metadata; callers
// should match on Code (via errors.As + (*AgentError).Code) rather than on
// concrete Go type, mirroring the original class hierarchy's single
// `error_code` discriminant.
type AgentError struct {
	Message  string
	Code     Code
	Original error
	Metadata map[string]any
}

func (e *AgentError) Error() string {
	if e.Original != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Original)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AgentError) Unwrap() error { return e.Original }

// ToMap renders the error for logging or an API error payload.
func (e *AgentError) ToMap() map[string]any {
	m := map[string]any{
		"error_code": string(e.Code),
		"message":    e.Message,
		"metadata":   e.Metadata,
	}
	if e.Original != nil {
		m["original_error"] = e.Original.Error()
	}
	return m
}

func newErr(code Code, msg string, original error, meta map[string]any) *AgentError {
	if meta == nil {
		meta = map[string]any{}
	}
	return &AgentError{Message: msg, Code: code, Original: original, Metadata: meta}
}

// Infrastructure layer.

func NewDatabaseConnectionError(msg, dbType string, original error) *AgentError {
	return newErr(CodeDatabaseConnection, msg, original, map[string]any{"db_type": dbType})
}

func NewExternalServiceError(msg, service string, original error) *AgentError {
	return newErr(CodeExternalService, msg, original, map[string]any{"service": service})
}

// Registry/agent layer.

func NewAgentNotFoundError(agentType string) *AgentError {
	return newErr(CodeAgentNotFound, fmt.Sprintf("agent %q not found", agentType), nil,
		map[string]any{"agent_type": agentType})
}

// Remote layer.

func NewAgentServerUnavailableError(msg, agentType string, original error) *AgentError {
	return newErr(CodeAgentServerUnavail, msg, original, map[string]any{"agent_type": agentType})
}

func NewAgentTimeoutError(msg string, timeoutSeconds float64, original error) *AgentError {
	return newErr(CodeAgentTimeout, msg, original, map[string]any{"timeout_seconds": timeoutSeconds})
}

func NewAgentResponseParseError(msg string, eventCount int, original error) *AgentError {
	return newErr(CodeAgentResponseParse, msg, original, map[string]any{"event_count": eventCount})
}

func NewAgentCircuitOpenError(msg, agentType string) *AgentError {
	return newErr(CodeAgentCircuitOpen, msg, nil, map[string]any{"agent_type": agentType})
}

func NewAgentServerError(msg string) *AgentError {
	return newErr(CodeAgentServerError, msg, nil, nil)
}

func NewAgentSessionNotFoundError(msg string) *AgentError {
	return newErr(CodeAgentSessionNotFound, msg, nil, nil)
}

func NewAgentHTTPError(msg string) *AgentError {
	return newErr(CodeAgentHTTPError, msg, nil, nil)
}

func NewAgentExecutionError(msg string) *AgentError {
	return newErr(CodeAgentExecutionError, msg, nil, nil)
}

// Business layer.

func NewIntentClassificationError(msg, userInput string, original error) *AgentError {
	return newErr(CodeIntentClassification, msg, original, map[string]any{"input_length": len(userInput)})
}

func NewResponseAggregationError(msg string, numResults int, original error) *AgentError {
	return newErr(CodeResponseAggregation, msg, original, map[string]any{"num_results": numResults})
}

// Session/policy layer.

func NewSessionNotFoundError(msg string) *AgentError {
	return newErr(CodeSessionNotFound, msg, nil, nil)
}

func NewSessionCreationNotAllowedError(msg string) *AgentError {
	return newErr(CodeSessionCreationBlocked, msg, nil, nil)
}

// TokenLimitError carries the structured admission-control payload spec.md
// §7 requires: current/max/requested counts, surfaced to callers before any
// agent is invoked.
type TokenLimitError struct {
	*AgentError
	Current   int
	Max       int
	Requested int
	Remaining int
}

func NewTokenLimitExceededError(current, max, requested, remaining int) *TokenLimitError {
	base := newErr(CodeTokenLimitExceeded, "token limit would be exceeded", nil, map[string]any{
		"current": current, "max": max, "requested": requested, "remaining": remaining,
	})
	return &TokenLimitError{AgentError: base, Current: current, Max: max, Requested: requested, Remaining: remaining}
}
