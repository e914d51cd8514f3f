// Package research wraps the Tavily search API, returning an answer plus
// source citations for a query.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/models"
)

// ErrNotConfigured is returned when no Tavily credential is present.
var ErrNotConfigured = errors.New("tavily API key not configured")

const defaultBaseURL = "https://api.tavily.com/search"

type Client struct {
	apiKey string
	// BaseURL may be overridden in tests.
	BaseURL string
	http    *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		BaseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
	IncludeRaw    bool   `json:"include_raw_content"`
	SearchDepth   string `json:"search_depth"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Source  string `json:"source"`
		Content string `json:"content"`
	} `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string, limit int) (string, []models.Citation, error) {
	if c.apiKey == "" {
		return "", nil, ErrNotConfigured
	}

	body, err := json.Marshal(searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		MaxResults:    limit,
		IncludeAnswer: true,
		SearchDepth:   "basic",
	})
	if err != nil {
		return "", nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("tavily search: status %d", resp.StatusCode)
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", nil, fmt.Errorf("decode search response: %w", err)
	}

	citations := make([]models.Citation, 0, limit)
	for i, item := range data.Results {
		if i >= limit {
			break
		}
		source := item.Source
		if source == "" {
			source = "web"
		}
		snippet := item.Content
		if len(snippet) > 240 {
			snippet = snippet[:240]
		}
		citations = append(citations, models.Citation{
			Title:   item.Title,
			URL:     item.URL,
			Source:  source,
			Snippet: snippet,
		})
	}

	return data.Answer, citations, nil
}

var _ core.Researcher = (*Client)(nil)
