package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CurrencyClient fetches spot exchange rates from exchangerate-api.com.
type CurrencyClient struct {
	baseURL string
	client  *http.Client
}

func NewCurrencyClient(timeout time.Duration) *CurrencyClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CurrencyClient{
		baseURL: "https://api.exchangerate-api.com",
		client:  &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the API host, used by tests.
func (c *CurrencyClient) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

type ratesResponse struct {
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// Rate returns how many units of `to` one unit of `from` buys, plus the
// provider's as-of date.
func (c *CurrencyClient) Rate(ctx context.Context, from, to string) (float64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v4/latest/"+from, nil)
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("rates request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("rates api status %d", res.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, "", fmt.Errorf("decode rates response: %w", err)
	}

	rate, ok := body.Rates[to]
	if !ok {
		return 0, "", fmt.Errorf("no %s rate in %s response", to, from)
	}
	return rate, body.Date, nil
}
