package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WikiClient reads article summaries from Wikipedia's public APIs,
// preferring Russian and falling back to English.
type WikiClient struct {
	ruBaseURL string
	enBaseURL string
	client    *http.Client
}

func NewWikiClient(timeout time.Duration) *WikiClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WikiClient{
		ruBaseURL: "https://ru.wikipedia.org",
		enBaseURL: "https://en.wikipedia.org",
		client:    &http.Client{Timeout: timeout},
	}
}

// SetBaseURLs overrides both language hosts, used by tests.
func (c *WikiClient) SetBaseURLs(ru, en string) {
	c.ruBaseURL = strings.TrimRight(ru, "/")
	c.enBaseURL = strings.TrimRight(en, "/")
}

// Summary searches for the query and returns the lead extract of the best
// matching article.
func (c *WikiClient) Summary(ctx context.Context, query string) (string, error) {
	if text, err := c.summaryFrom(ctx, c.ruBaseURL, query); err == nil {
		return text, nil
	}
	return c.summaryFrom(ctx, c.enBaseURL, query)
}

func (c *WikiClient) summaryFrom(ctx context.Context, baseURL, query string) (string, error) {
	title, err := c.searchTitle(ctx, baseURL, query)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL+"/api/rest_v1/page/summary/"+url.PathEscape(title), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("summary request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summary status %d", res.StatusCode)
	}

	var body struct {
		Extract string `json:"extract"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode summary: %w", err)
	}
	extract := strings.TrimSpace(body.Extract)
	if extract == "" {
		return "", fmt.Errorf("empty summary for %q", title)
	}
	return extract, nil
}

func (c *WikiClient) searchTitle(ctx context.Context, baseURL, query string) (string, error) {
	params := url.Values{
		"action": {"opensearch"},
		"search": {query},
		"limit":  {"5"},
		"format": {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL+"/w/api.php?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search status %d", res.StatusCode)
	}

	// opensearch replies with [query, [titles], [descriptions], [urls]].
	var body []json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode search: %w", err)
	}
	if len(body) < 2 {
		return "", fmt.Errorf("malformed opensearch reply")
	}
	var titles []string
	if err := json.Unmarshal(body[1], &titles); err != nil {
		return "", fmt.Errorf("decode titles: %w", err)
	}
	if len(titles) == 0 {
		return "", fmt.Errorf("no wiki match for %q", query)
	}
	return titles[0], nil
}
