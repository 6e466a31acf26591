package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Article is one normalized news item.
type Article struct {
	Title       string
	Source      string
	Description string
	URL         string
}

// NewsClient fetches headlines from the NewsAPI v2 endpoints.
type NewsClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewNewsClient(apiKey string, timeout time.Duration) *NewsClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NewsClient{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: "https://newsapi.org",
		client:  &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the API host, used by tests.
func (c *NewsClient) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// Configured reports whether an API key is present.
func (c *NewsClient) Configured() bool { return c.apiKey != "" }

type newsAPIResponse struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Headlines queries top-headlines first and tops the list up from the
// everything endpoint when the headline feed is thin. Results are
// deduplicated by title and capped at limit.
func (c *NewsClient) Headlines(ctx context.Context, query string, limit int) ([]Article, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("news lookup is not configured")
	}
	if limit <= 0 {
		limit = 10
	}

	top, err := c.fetch(ctx, "/v2/top-headlines", url.Values{
		"q":        {query},
		"language": {"ru"},
		"country":  {"ru"},
		// top-headlines caps page size at 20.
		"pageSize": {strconv.Itoa(min(limit, 20))},
	})
	if err != nil {
		return nil, err
	}

	articles := top
	if len(articles) < limit {
		everything, err := c.fetch(ctx, "/v2/everything", url.Values{
			"q":        {query},
			"language": {"ru"},
			"sortBy":   {"publishedAt"},
			"pageSize": {strconv.Itoa(limit)},
		})
		if err == nil {
			articles = append(articles, everything...)
		}
	}

	seen := make(map[string]bool, len(articles))
	out := make([]Article, 0, limit)
	for _, a := range articles {
		if a.Title == "" || seen[a.Title] {
			continue
		}
		seen[a.Title] = true
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no articles for %q", query)
	}
	return out, nil
}

func (c *NewsClient) fetch(ctx context.Context, path string, params url.Values) ([]Article, error) {
	params.Set("apiKey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news api status %d", res.StatusCode)
	}

	var body newsAPIResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode news response: %w", err)
	}

	out := make([]Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		out = append(out, Article{
			Title:       strings.TrimSpace(strings.ReplaceAll(a.Title, "\n", " ")),
			Source:      a.Source.Name,
			Description: strings.TrimSpace(strings.ReplaceAll(a.Description, "\n", " ")),
			URL:         a.URL,
		})
	}
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
