package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/gembot/internal/reliability"
)

// Part is one content fragment of a model request. Text parts carry prompt
// text, inline-data parts carry base64 media such as photos.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

type InlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// TextPart is a convenience constructor for plain prompt text.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart wraps base64-encoded image bytes as an inline-data part.
func ImagePart(mimeType, base64Data string) Part {
	return Part{InlineData: &InlineData{MIMEType: mimeType, Data: base64Data}}
}

// Generator produces one model reply for a composed set of parts.
type Generator interface {
	Generate(ctx context.Context, parts []Part) (string, error)
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []Part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ErrEmptyReply reports a well-formed provider response with no usable text.
var ErrEmptyReply = errors.New("gemini: empty reply")

// Client forwards composed prompts to the Gemini generateContent endpoint.
type Client struct {
	url    string
	apiKey string
	client *http.Client
}

func NewClient(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:    strings.TrimSpace(url),
		apiKey: strings.TrimSpace(apiKey),
		client: &http.Client{Timeout: timeout},
	}
}

// SetURL overrides the endpoint, primarily for tests.
func (c *Client) SetURL(url string) { c.url = url }

// Generate sends one request and returns the first candidate's text. A
// retryable provider status is retried once after a short backoff.
func (c *Client) Generate(ctx context.Context, parts []Part) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 2048,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	text, retryable, err := c.post(ctx, payload)
	if err != nil && retryable {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(reliability.ExponentialBackoff(1, 250*time.Millisecond, 2*time.Second)):
		}
		text, _, err = c.post(ctx, payload)
	}
	return text, err
}

func (c *Client) post(ctx context.Context, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	res, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", reliability.IsRetryableHTTPStatus(res.StatusCode),
			fmt.Errorf("gemini http status %d: %s", res.StatusCode, truncateBody(body))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", reliability.IsRetryableHTTPStatus(parsed.Error.Code),
			fmt.Errorf("gemini error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text, false, nil
			}
		}
	}
	return "", false, ErrEmptyReply
}

func truncateBody(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max]
	}
	return s
}
