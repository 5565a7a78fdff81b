package domainagents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Paper is one literature search hit.
type Paper struct {
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Journal string `json:"journal"`
	Year    int    `json:"year"`
	URL     string `json:"url"`
}

// LiteratureClient is the external collaborator spec.md §6 names for the
// research_paper agent. Grounded on the PubMedClient wrapper shape in
// original_source/backend/Agent/api/pubmed_client.py (a thin async wrapper
// over an HTTP search service), generalized to any literature-search
// backend reachable over HTTP.
type LiteratureClient interface {
	Search(ctx context.Context, query string, maxResults int) ([]Paper, error)
}

// rateLimitedHTTPClient implements LiteratureClient against an HTTP
// endpoint, pacing requests with a simple token-bucket interval, mirroring
// the rate-limiting concern the original news_scraper.py module layers
// over its scraping HTTP calls.
type rateLimitedHTTPClient struct {
	baseURL string
	hc      *http.Client
	limiter <-chan time.Time
}

// NewLiteratureClient builds a LiteratureClient against baseURL, issuing
// at most one request per minInterval.
func NewLiteratureClient(baseURL string, minInterval time.Duration, timeout time.Duration) LiteratureClient {
	if minInterval <= 0 {
		minInterval = 200 * time.Millisecond
	}
	return &rateLimitedHTTPClient{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
		limiter: time.Tick(minInterval),
	}
}

func (c *rateLimitedHTTPClient) Search(ctx context.Context, query string, maxResults int) ([]Paper, error) {
	select {
	case <-c.limiter:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	u := fmt.Sprintf("%s/search?q=%s&max=%d", c.baseURL, url.QueryEscape(query), maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build literature search request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("literature search call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("literature search returned status %d", resp.StatusCode)
	}

	var papers []Paper
	if err := json.NewDecoder(resp.Body).Decode(&papers); err != nil {
		return nil, fmt.Errorf("decode literature search response: %w", err)
	}
	return papers, nil
}
