package remoteagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeready-toolchain/ckdqa/pkg/agenterrors"
)

// Event is one unit emitted by a remote agent server's event-polling
// endpoint. Kinds of interest: "message" (agent text), "status" (with
// Data["status"] in {typing, ready, error}), "tool" (tool-call output).
type Event struct {
	Kind          string         `json:"kind"`
	Source        string         `json:"source"`
	Offset        int            `json:"offset"`
	CorrelationID string         `json:"correlation_id"`
	Data          map[string]any `json:"data"`
}

// baseTrace returns the portion of a correlation id before "::", the
// shared identifier linking every event produced by one remote-agent
// response.
func baseTrace(correlationID string) string {
	if idx := strings.Index(correlationID, "::"); idx >= 0 {
		return correlationID[:idx]
	}
	return correlationID
}

// Protocol is the wire client for a single remote agent server implementing
// the event-polling protocol in spec.md §4.3/§6: create-or-get-session,
// send-message, fetch-events, health.
type Protocol struct {
	baseURL string
	hc      *http.Client
}

// NewProtocol builds a Protocol client dialing baseURL, e.g.
// "http://nutrition-agent:8080".
func NewProtocol(baseURL string, hc *http.Client) *Protocol {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Protocol{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

// CreateOrGetSession is idempotent: it returns a server-side session handle,
// creating one on first use.
func (p *Protocol) CreateOrGetSession(ctx context.Context, sessionID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/sessions", bytes.NewReader(
		mustJSON(map[string]string{"session_id": sessionID})))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", agenterrors.NewAgentServerError(fmt.Sprintf("session create returned %d", resp.StatusCode))
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", agenterrors.NewAgentSessionNotFoundError("remote session not found")
	}
	if resp.StatusCode >= 400 {
		return "", agenterrors.NewAgentHTTPError(fmt.Sprintf("session create returned %d", resp.StatusCode))
	}

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", agenterrors.NewAgentResponseParseError("invalid session create response", 0, err)
	}
	return out.SessionID, nil
}

// SendMessage appends the next user message to a remote session. Returns
// promptly; the server processes asynchronously and reports progress via
// fetch-events.
func (p *Protocol) SendMessage(ctx context.Context, sessionID, text string) error {
	url := fmt.Sprintf("%s/sessions/%s/messages", p.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(
		mustJSON(map[string]string{"text": text})))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return agenterrors.NewAgentServerError(fmt.Sprintf("send-message returned %d", resp.StatusCode))
	}
	if resp.StatusCode == http.StatusNotFound {
		return agenterrors.NewAgentSessionNotFoundError("remote session not found")
	}
	if resp.StatusCode >= 400 {
		return agenterrors.NewAgentHTTPError(fmt.Sprintf("send-message returned %d", resp.StatusCode))
	}
	return nil
}

// FetchEvents long-polls for events with offset >= minOffset, blocking up
// to waitForData for new data to arrive.
func (p *Protocol) FetchEvents(ctx context.Context, sessionID string, minOffset int, waitForData time.Duration) ([]Event, error) {
	u := fmt.Sprintf("%s/sessions/%s/events", p.baseURL, sessionID)
	q := url.Values{}
	q.Set("min_offset", strconv.Itoa(minOffset))
	q.Set("wait_for_data", strconv.FormatFloat(waitForData.Seconds(), 'f', 3, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, agenterrors.NewAgentServerError(fmt.Sprintf("fetch-events returned %d", resp.StatusCode))
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, agenterrors.NewAgentSessionNotFoundError("remote session not found")
	}
	if resp.StatusCode >= 400 {
		return nil, agenterrors.NewAgentHTTPError(fmt.Sprintf("fetch-events returned %d", resp.StatusCode))
	}

	var out struct {
		Events []Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, agenterrors.NewAgentResponseParseError("invalid fetch-events response", 0, err)
	}
	return out.Events, nil
}

// HealthCheck pings the server's /health endpoint.
func (p *Protocol) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return agenterrors.NewAgentServerUnavailableError(
			fmt.Sprintf("health check returned %d", resp.StatusCode), "", nil)
	}
	return nil
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
