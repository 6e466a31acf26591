package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/antoniostano/gembot/internal/augment"
	"github.com/antoniostano/gembot/internal/bot"
	"github.com/antoniostano/gembot/internal/config"
	"github.com/antoniostano/gembot/internal/gemini"
	"github.com/antoniostano/gembot/internal/history"
	"github.com/antoniostano/gembot/internal/httpapi"
	"github.com/antoniostano/gembot/internal/lookup"
	"github.com/antoniostano/gembot/internal/observability"
	"github.com/antoniostano/gembot/internal/prompt"
	"github.com/antoniostano/gembot/internal/ratelimit"
	"github.com/antoniostano/gembot/internal/telegram"
	"github.com/antoniostano/gembot/internal/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := history.NewStore(ctx, history.Options{
		Driver:      cfg.HistoryStore,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		TurnCap:     cfg.HistoryTurnCap,
		IdleTTL:     cfg.HistoryIdleTTL,
	})
	if err != nil {
		log.Fatalf("history store init failed: %v", err)
	}
	defer store.Close()
	log.Printf("history store: %s", cfg.HistoryStore)

	limits := ratelimit.NewRegistry(ratelimit.Quota{
		Minute: cfg.MinuteLimit,
		Day:    cfg.DayLimit,
	})

	news := lookup.NewNewsClient(cfg.NewsAPIKey, cfg.LookupTimeout)
	currency := lookup.NewCurrencyClient(cfg.LookupTimeout)
	weather := lookup.NewWeatherClient(cfg.OpenWeatherAPIKey, cfg.LookupTimeout)
	search := lookup.NewSearchClient(cfg.LookupTimeout)
	wiki := lookup.NewWikiClient(cfg.LookupTimeout)
	aggregator := augment.NewAggregator(news, currency, weather, search, wiki, cfg.LookupTimeout, metrics)

	var brain gemini.Generator
	if cfg.GeminiAPIKey != "" {
		brain = gemini.NewClient(cfg.GeminiAPIURL, cfg.GeminiAPIKey, cfg.GeminiTimeout)
		log.Printf("model backend: gemini")
	} else {
		brain = gemini.NewMockGenerator()
		log.Printf("model backend: mock (GEMINI_API_KEY is not set)")
	}

	voices, defaultVoice := buildVoices(cfg)

	var transcriber voice.Transcriber
	if stt, err := voice.NewGoogleSTT(cfg.LookupTimeout); err == nil {
		transcriber = stt
		log.Printf("stt backend: google")
	} else {
		transcriber = voice.NewMockTranscriber()
		log.Printf("stt backend: mock (%v)", err)
	}

	tg := telegram.NewClient(
		strings.TrimRight(cfg.TelegramAPIBase, "/")+"/bot"+cfg.TelegramToken,
		time.Duration(cfg.PollTimeout+15)*time.Second,
	)

	handler := bot.NewHandler(bot.HandlerOptions{
		API:          tg,
		Brain:        brain,
		Store:        store,
		Limits:       limits,
		Augment:      aggregator,
		Composer:     prompt.NewComposer(cfg.ContextTurns),
		Metrics:      metrics,
		Transcriber:  transcriber,
		Voices:       voices,
		DefaultVoice: defaultVoice,
		Prefs:        bot.NewVoicePrefs(cfg.VoiceRepliesDefault, defaultVoice),
	})

	api := httpapi.New(cfg, limits, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	history.StartJanitor(runCtx, store, time.Hour, cfg.HistoryIdleTTL)

	poller := bot.NewPoller(tg, handler, time.Duration(cfg.PollTimeout)*time.Second)
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		log.Printf("polling telegram updates")
		poller.Run(runCtx)
	}()

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	select {
	case <-pollerDone:
	case <-shutdownCtx.Done():
		log.Printf("poller did not drain in time")
	}

	log.Printf("shutdown complete")
}

// buildVoices assembles the synthesis engines for voice replies. The gtts
// engine needs only network access; piper needs a local CLI and model. In
// auto mode gtts fronts piper as its fallback when both are present.
func buildVoices(cfg config.Config) (map[string]voice.Synthesizer, string) {
	voices := make(map[string]voice.Synthesizer)
	mode := strings.ToLower(strings.TrimSpace(cfg.TTSEngine))
	if mode == "" {
		mode = "auto"
	}

	tryPiper := func(fatal bool) bool {
		p, err := voice.NewPiperTTS(cfg.PiperCLI, cfg.PiperModelPath)
		if err != nil {
			if fatal {
				log.Fatalf("piper init failed: %v", err)
			}
			log.Printf("piper unavailable: %v", err)
			return false
		}
		voices["piper"] = p
		return true
	}

	switch mode {
	case "gtts":
		voices["gtts"] = voice.NewGoogleTTS(cfg.LookupTimeout)
		log.Printf("tts engine: gtts")
		return voices, "gtts"
	case "piper":
		tryPiper(true)
		log.Printf("tts engine: piper")
		return voices, "piper"
	case "mock":
		voices["mock"] = voice.NewMockSynthesizer()
		log.Printf("tts engine: mock")
		return voices, "mock"
	case "auto":
		gtts := voice.NewGoogleTTS(cfg.LookupTimeout)
		voices["gtts"] = gtts
		if tryPiper(false) {
			voices["gtts"] = voice.NewFailoverSynthesizer(gtts, voices["piper"])
			log.Printf("tts engine: gtts with piper fallback")
		} else {
			log.Printf("tts engine: gtts")
		}
		return voices, "gtts"
	default:
		log.Fatalf("invalid TTS_ENGINE: %q (expected auto|gtts|piper|mock)", cfg.TTSEngine)
		return nil, ""
	}
}
