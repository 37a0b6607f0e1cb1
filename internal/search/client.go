// Package search wraps a third-party web-search HTTP API behind a small
// client interface. Results come back in provider order; ranking is the
// pipeline's concern.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// defaultTimeout bounds a single search API call.
const defaultTimeout = 30 * time.Second

// Hit is one search result as returned by the provider.
type Hit struct {
	Title   string
	URL     string
	Snippet string
}

// Client performs a web search. Implementations return transport errors;
// the pipeline absorbs them per sub-query rather than aborting the run.
type Client interface {
	Search(ctx context.Context, query string, maxResults int) ([]Hit, error)
}

// HTTPClient talks to a Jina-style search endpoint: GET ?q=<query> with
// an optional bearer token, responding with {"data": [{title, url,
// description}, ...]}.
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPClient builds a search client for the given endpoint. The API
// key may be empty; the provider then applies its anonymous rate limits.
func NewHTTPClient(endpoint, apiKey string, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: defaultTimeout},
		logger:   logger.Named("search"),
	}
}

// searchResponse is the provider's wire format.
type searchResponse struct {
	Data []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
	} `json:"data"`
}

// Search runs one query and returns up to maxResults hits.
func (c *HTTPClient) Search(ctx context.Context, query string, maxResults int) ([]Hit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	q := req.URL.Query()
	q.Set("q", query)
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Data))
	for _, r := range parsed.Data {
		if r.URL == "" {
			continue
		}
		hits = append(hits, Hit{Title: r.Title, URL: r.URL, Snippet: r.Description})
		if len(hits) >= maxResults {
			break
		}
	}

	c.logger.Debug("search completed", zap.String("query", query), zap.Int("hits", len(hits)))
	return hits, nil
}
