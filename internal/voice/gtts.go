package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// The unofficial translate endpoint rejects long inputs; replies are
// clipped at the limit the service accepts.
const gttsCharLimit = 1000

// GoogleTTS synthesizes speech through the Google Translate TTS endpoint.
// It needs no API key, returns MP3, and can break without notice, so it is
// always paired with a fallback engine.
type GoogleTTS struct {
	baseURL string
	client  *http.Client
}

func NewGoogleTTS(timeout time.Duration) *GoogleTTS {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleTTS{
		baseURL: "https://translate.google.com/translate_tts",
		client:  &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the endpoint, primarily for tests.
func (g *GoogleTTS) SetBaseURL(u string) { g.baseURL = u }

func (g *GoogleTTS) Synthesize(ctx context.Context, text, lang string) ([]byte, string, error) {
	text = clipRunes(strings.TrimSpace(text), gttsCharLimit)
	if text == "" {
		return nil, "", fmt.Errorf("gtts: empty text")
	}
	if lang == "" {
		lang = "ru"
	}

	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("client", "tw-ob")
	params.Set("tl", lang)
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("gtts: create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	res, err := g.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gtts: request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("gtts: status %d", res.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return nil, "", fmt.Errorf("gtts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("gtts: empty audio")
	}
	return audio, "mp3", nil
}

func clipRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
