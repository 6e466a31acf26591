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

// WeatherClient fetches current conditions from OpenWeatherMap.
type WeatherClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewWeatherClient(apiKey string, timeout time.Duration) *WeatherClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WeatherClient{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: "https://api.openweathermap.org",
		client:  &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the API host, used by tests.
func (c *WeatherClient) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// Configured reports whether an API key is present.
func (c *WeatherClient) Configured() bool { return c.apiKey != "" }

type weatherResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
}

// Current returns a one-line Russian summary of current weather in city
// (an English city name as OpenWeatherMap expects).
func (c *WeatherClient) Current(ctx context.Context, city string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("weather lookup is not configured")
	}

	params := url.Values{
		"q":     {city},
		"units": {"metric"},
		"lang":  {"ru"},
		"appid": {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/data/2.5/weather?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather api status %d", res.StatusCode)
	}

	var body weatherResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode weather response: %w", err)
	}

	description := "н/д"
	if len(body.Weather) > 0 && body.Weather[0].Description != "" {
		description = body.Weather[0].Description
	}

	// Hectopascal to millimeters of mercury, as Russian forecasts report it.
	pressureMM := int(body.Main.Pressure * 0.75)

	return fmt.Sprintf(
		"Температура: %.0f°C, ощущается как %.0f°C. %s. Влажность: %d%%, давление: %d мм рт.ст., ветер %.1f м/с (%s).",
		body.Main.Temp, body.Main.FeelsLike, capitalize(description),
		body.Main.Humidity, pressureMM, body.Wind.Speed, windDirection(body.Wind.Deg),
	), nil
}

func windDirection(deg float64) string {
	switch {
	case deg > 337.5 || deg <= 22.5:
		return "северный"
	case deg <= 67.5:
		return "северо-восточный"
	case deg <= 112.5:
		return "восточный"
	case deg <= 157.5:
		return "юго-восточный"
	case deg <= 202.5:
		return "южный"
	case deg <= 247.5:
		return "юго-западный"
	case deg <= 292.5:
		return "западный"
	default:
		return "северо-западный"
	}
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}
