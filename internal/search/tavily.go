// Package search fetches web research used to ground generated chapters.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jorge-barreto/syllabot/internal/retry"
)

const tavilyURL = "https://api.tavily.com/search"

// Tavily queries the Tavily search API. A zero-value key turns every search
// into a no-op.
type Tavily struct {
	apiKey     string
	endpoint   string
	maxResults int
	client     *http.Client
	retry      *retry.Policy
	logger     *zap.Logger
}

type Option func(*Tavily)

// WithEndpoint overrides the API URL.
func WithEndpoint(u string) Option { return func(t *Tavily) { t.endpoint = u } }

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(t *Tavily) { t.client = c } }

func NewTavily(apiKey string, maxResults int, policy *retry.Policy, logger *zap.Logger, opts ...Option) *Tavily {
	if maxResults <= 0 {
		maxResults = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = retry.New(retry.DefaultOptions(), logger)
	}
	t := &Tavily{
		apiKey:     apiKey,
		endpoint:   tavilyURL,
		maxResults: maxResults,
		client:     http.DefaultClient,
		retry:      policy,
		logger:     logger,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Enabled reports whether an API key is configured.
func (t *Tavily) Enabled() bool { return t != nil && t.apiKey != "" }

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeImages     bool   `json:"include_images"`
	IncludeRawContent bool   `json:"include_raw_content"`
	MaxResults        int    `json:"max_results"`
}

type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Research returns search results formatted as prompt context. Failures
// are logged and produce an empty string; research never blocks generation.
func (t *Tavily) Research(ctx context.Context, query string) string {
	if !t.Enabled() {
		return ""
	}
	results, err := retry.Do(ctx, t.retry, "tavily", func(ctx context.Context) ([]Result, error) {
		return t.search(ctx, query)
	})
	if err != nil {
		t.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return ""
	}
	return Format(query, results)
}

func (t *Tavily) search(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:      t.apiKey,
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  t.maxResults,
	})
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("tavily: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tavily: decoding response: %w", err)
	}
	return out.Results, nil
}

// Format renders results as a numbered source list, or "" when empty.
func Format(query string, results []Result) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[Source %d]: %s (%s)\n%s", i+1, r.Title, r.URL, r.Content)
	}
	return fmt.Sprintf("\nSEARCH RESULTS FOR %q:\n\n%s\n", query, strings.Join(parts, "\n\n"))
}
