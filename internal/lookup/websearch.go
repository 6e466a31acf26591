package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// SearchClient scrapes the HTML DuckDuckGo endpoint (it has no JSON API).
type SearchClient struct {
	baseURL    string
	client     *http.Client
	maxResults int
}

func NewSearchClient(timeout time.Duration) *SearchClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SearchClient{
		baseURL:    "https://html.duckduckgo.com",
		client:     &http.Client{Timeout: timeout},
		maxResults: 3,
	}
}

// SetBaseURL overrides the search host, used by tests.
func (c *SearchClient) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// Search returns the top result titles and snippets joined into one line.
func (c *SearchClient) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"q":  {query},
		"kl": {"ru-ru"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/html/?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	// Without a browser UA the endpoint answers with a block page.
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search status %d", res.StatusCode)
	}

	doc, err := html.Parse(res.Body)
	if err != nil {
		return "", fmt.Errorf("parse search page: %w", err)
	}

	snippets := extractResults(doc, c.maxResults)
	if len(snippets) == 0 {
		return "", fmt.Errorf("no search results for %q", query)
	}
	return strings.Join(snippets, "; "), nil
}

// extractResults walks the parsed page collecting text of result title and
// snippet anchors, identified by DuckDuckGo's stable CSS classes.
func extractResults(doc *html.Node, limit int) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(out) >= limit*2 {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if cls := attr(n, "class"); strings.Contains(cls, "result__a") || strings.Contains(cls, "result__snippet") {
				if text := strings.TrimSpace(nodeText(n)); len(text) > 10 {
					out = append(out, text)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(nodeText(child))
	}
	return b.String()
}
