package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the assistant bot.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	TelegramToken   string
	TelegramAPIBase string
	PollTimeout     int

	GeminiAPIKey  string
	GeminiAPIURL  string
	GeminiTimeout time.Duration

	NewsAPIKey        string
	OpenWeatherAPIKey string
	LookupTimeout     time.Duration

	MinuteLimit int
	DayLimit    int

	HistoryStore   string
	RedisURL       string
	DatabaseURL    string
	HistoryTurnCap int
	ContextTurns   int
	HistoryIdleTTL time.Duration

	TTSEngine           string
	PiperCLI            string
	PiperModelPath      string
	VoiceRepliesDefault bool
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "gembot"),
		TelegramToken:    trimmedEnv("TELEGRAM_TOKEN"),
		TelegramAPIBase:  envOrDefault("TELEGRAM_API_BASE", "https://api.telegram.org"),
		GeminiAPIKey:     trimmedEnv("GEMINI_API_KEY"),
		GeminiAPIURL: envOrDefault("GEMINI_API_URL",
			"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"),
		NewsAPIKey:        trimmedEnv("NEWS_API_KEY"),
		OpenWeatherAPIKey: trimmedEnv("OPENWEATHER_API_KEY"),
		HistoryStore:      envOrDefault("HISTORY_STORE", "memory"),
		RedisURL:          trimmedEnv("REDIS_URL"),
		DatabaseURL:       trimmedEnv("DATABASE_URL"),
		TTSEngine:         envOrDefault("TTS_ENGINE", "auto"),
		PiperCLI:          envOrDefault("PIPER_CLI", "piper"),
		PiperModelPath:    envOrDefault("PIPER_MODEL_PATH", ".models/piper/ru_RU-dmitri-medium.onnx"),

		ShutdownTimeout: 15 * time.Second,
		GeminiTimeout:   30 * time.Second,
		LookupTimeout:   10 * time.Second,
		// Long-poll wait in seconds, passed straight to the Bot API.
		PollTimeout: 30,

		// Free-tier Gemini flash quotas.
		MinuteLimit: 10,
		DayLimit:    250,

		HistoryTurnCap: 50,
		ContextTurns:   10,
		HistoryIdleTTL: 24 * time.Hour,

		VoiceRepliesDefault: true,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GeminiTimeout, err = durationFromEnv("GEMINI_TIMEOUT", cfg.GeminiTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.LookupTimeout, err = durationFromEnv("LOOKUP_TIMEOUT", cfg.LookupTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryIdleTTL, err = durationFromEnv("HISTORY_IDLE_TTL", cfg.HistoryIdleTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.PollTimeout, err = intFromEnv("TELEGRAM_POLL_TIMEOUT", cfg.PollTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MinuteLimit, err = intFromEnv("RATE_MINUTE_LIMIT", cfg.MinuteLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.DayLimit, err = intFromEnv("RATE_DAY_LIMIT", cfg.DayLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryTurnCap, err = intFromEnv("HISTORY_TURN_CAP", cfg.HistoryTurnCap)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextTurns, err = intFromEnv("HISTORY_CONTEXT_TURNS", cfg.ContextTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.VoiceRepliesDefault, err = boolFromEnv("VOICE_REPLIES_DEFAULT", cfg.VoiceRepliesDefault)
	if err != nil {
		return Config{}, err
	}

	if cfg.TelegramToken == "" {
		return Config{}, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.MinuteLimit <= 0 {
		return Config{}, fmt.Errorf("RATE_MINUTE_LIMIT must be positive")
	}
	if cfg.DayLimit <= 0 {
		return Config{}, fmt.Errorf("RATE_DAY_LIMIT must be positive")
	}
	if cfg.HistoryTurnCap <= 0 {
		return Config{}, fmt.Errorf("HISTORY_TURN_CAP must be positive")
	}
	if cfg.ContextTurns <= 0 || cfg.ContextTurns > cfg.HistoryTurnCap {
		return Config{}, fmt.Errorf("HISTORY_CONTEXT_TURNS must be in 1..HISTORY_TURN_CAP")
	}
	if cfg.PollTimeout < 0 {
		return Config{}, fmt.Errorf("TELEGRAM_POLL_TIMEOUT must be >= 0")
	}
	if cfg.HistoryIdleTTL < time.Minute {
		return Config{}, fmt.Errorf("HISTORY_IDLE_TTL must be at least 1m")
	}
	switch cfg.HistoryStore {
	case "memory", "redis", "postgres":
	default:
		return Config{}, fmt.Errorf("invalid HISTORY_STORE: %q (expected memory|redis|postgres)", cfg.HistoryStore)
	}
	switch cfg.TTSEngine {
	case "auto", "gtts", "piper", "mock":
	default:
		return Config{}, fmt.Errorf("invalid TTS_ENGINE: %q (expected auto|gtts|piper|mock)", cfg.TTSEngine)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
