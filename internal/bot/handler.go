package bot

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/antoniostano/gembot/internal/classify"
	"github.com/antoniostano/gembot/internal/gemini"
	"github.com/antoniostano/gembot/internal/history"
	"github.com/antoniostano/gembot/internal/observability"
	"github.com/antoniostano/gembot/internal/prompt"
	"github.com/antoniostano/gembot/internal/ratelimit"
	"github.com/antoniostano/gembot/internal/telegram"
	"github.com/antoniostano/gembot/internal/voice"
)

// API is the subset of the Telegram client the handler needs.
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	SendVoice(ctx context.Context, chatID int64, audio []byte, filename string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Augmenter supplies fetched current data for a classified message.
type Augmenter interface {
	Fetch(ctx context.Context, category classify.Category, message string) string
}

const (
	helpText = "Я бот с доступом к Gemini.\n\n" +
		"Просто напиши сообщение, пришли фото или голосовое.\n\n" +
		"Команды:\n" +
		"/clear — очистить историю диалога\n" +
		"/limits — остаток запросов\n" +
		"/voice on|off — голосовые ответы на голосовые сообщения\n" +
		"/voice_select <engine> — выбрать движок синтеза\n" +
		"/help — эта справка"

	startText = "Привет! Я готов отвечать на вопросы, описывать фото и слушать голосовые сообщения. " +
		"Напиши /help, чтобы узнать подробности."

	brainDownText = "Не получилось получить ответ от модели. Попробуй ещё раз чуть позже."
)

// Handler routes incoming Telegram updates through the
// limit/classify/augment/generate pipeline.
type Handler struct {
	api      API
	brain    gemini.Generator
	store    history.Store
	limits   *ratelimit.Registry
	augment  Augmenter
	composer *prompt.Composer
	metrics  *observability.Metrics

	transcriber  voice.Transcriber
	voices       map[string]voice.Synthesizer
	defaultVoice string
	prefs        *VoicePrefs

	mu    sync.Mutex
	users map[int64]*sync.Mutex
}

type HandlerOptions struct {
	API          API
	Brain        gemini.Generator
	Store        history.Store
	Limits       *ratelimit.Registry
	Augment      Augmenter
	Composer     *prompt.Composer
	Metrics      *observability.Metrics
	Transcriber  voice.Transcriber
	Voices       map[string]voice.Synthesizer
	DefaultVoice string
	Prefs        *VoicePrefs
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{
		api:          opts.API,
		brain:        opts.Brain,
		store:        opts.Store,
		limits:       opts.Limits,
		augment:      opts.Augment,
		composer:     opts.Composer,
		metrics:      opts.Metrics,
		transcriber:  opts.Transcriber,
		voices:       opts.Voices,
		defaultVoice: opts.DefaultVoice,
		prefs:        opts.Prefs,
		users:        make(map[int64]*sync.Mutex),
	}
}

// HandleUpdate processes one update. Turns of the same user are serialized
// so history appends and quota checks never interleave; arrival order for
// a user is preserved by the poller's per-user dispatch.
func (h *Handler) HandleUpdate(ctx context.Context, upd telegram.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	lock := h.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	switch {
	case strings.HasPrefix(msg.Text, "/"):
		h.metrics.MessagesTotal.WithLabelValues("command").Inc()
		h.handleCommand(ctx, chatID, userID, msg.Text)
	case len(msg.Photo) > 0:
		h.metrics.MessagesTotal.WithLabelValues("photo").Inc()
		h.handlePhoto(ctx, chatID, userID, msg)
	case msg.Voice != nil:
		h.metrics.MessagesTotal.WithLabelValues("voice").Inc()
		h.handleVoice(ctx, chatID, userID, msg)
	case strings.TrimSpace(msg.Text) != "":
		h.metrics.MessagesTotal.WithLabelValues("text").Inc()
		h.handleText(ctx, chatID, userID, msg.Text)
	}
}

func (h *Handler) userLock(userID int64) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	lock, ok := h.users[userID]
	if !ok {
		lock = &sync.Mutex{}
		h.users[userID] = lock
	}
	return lock
}

func (h *Handler) handleCommand(ctx context.Context, chatID, userID int64, text string) {
	fields := strings.Fields(strings.TrimSpace(text))
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		h.reply(ctx, chatID, startText)
	case "/help":
		h.reply(ctx, chatID, helpText)
	case "/clear":
		if err := h.store.Clear(ctx, userID); err != nil {
			log.Printf("clear history for user %d: %v", userID, err)
			h.reply(ctx, chatID, "Не удалось очистить историю, попробуй позже.")
			return
		}
		h.reply(ctx, chatID, "История диалога очищена.")
	case "/limits":
		minute, day := h.limits.Remaining(userID)
		quota := h.limits.Quota()
		h.reply(ctx, chatID, fmt.Sprintf(
			"Осталось запросов: %d из %d в минуту, %d из %d в день.",
			minute, quota.Minute, day, quota.Day))
	case "/voice":
		h.handleVoiceToggle(ctx, chatID, userID, fields[1:])
	case "/voice_select":
		h.handleVoiceSelect(ctx, chatID, userID, fields[1:])
	default:
		h.reply(ctx, chatID, "Неизвестная команда. Напиши /help.")
	}
}

func (h *Handler) handleVoiceToggle(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		pref := h.prefs.Get(userID)
		state := "выключены"
		if pref.Enabled {
			state = "включены"
		}
		h.reply(ctx, chatID, fmt.Sprintf("Голосовые ответы %s. Используй /voice on или /voice off.", state))
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		h.prefs.SetEnabled(userID, true)
		h.reply(ctx, chatID, "Голосовые ответы включены.")
	case "off":
		h.prefs.SetEnabled(userID, false)
		h.reply(ctx, chatID, "Голосовые ответы выключены.")
	default:
		h.reply(ctx, chatID, "Используй /voice on или /voice off.")
	}
}

func (h *Handler) handleVoiceSelect(ctx context.Context, chatID, userID int64, args []string) {
	if len(h.voices) == 0 {
		h.reply(ctx, chatID, "Синтез речи не настроен.")
		return
	}
	var names []string
	for name := range h.voices {
		names = append(names, name)
	}
	if len(args) == 0 {
		h.reply(ctx, chatID, fmt.Sprintf(
			"Текущий движок: %s. Доступные: %s.",
			h.engineFor(userID), strings.Join(names, ", ")))
		return
	}
	engine := strings.ToLower(args[0])
	if _, ok := h.voices[engine]; !ok {
		h.reply(ctx, chatID, fmt.Sprintf("Нет такого движка. Доступные: %s.", strings.Join(names, ", ")))
		return
	}
	h.prefs.SetEngine(userID, engine)
	h.reply(ctx, chatID, fmt.Sprintf("Движок синтеза: %s.", engine))
}

func (h *Handler) engineFor(userID int64) string {
	engine := h.prefs.Get(userID).Engine
	if _, ok := h.voices[engine]; !ok {
		engine = h.defaultVoice
	}
	return engine
}

func (h *Handler) handlePhoto(ctx context.Context, chatID, userID int64, msg *telegram.Message) {
	if !h.admit(ctx, chatID, userID) {
		return
	}
	_ = h.api.SendChatAction(ctx, chatID, "typing")

	// Telegram lists sizes smallest first; the last one is the original
	// resolution.
	largest := msg.Photo[len(msg.Photo)-1]
	data, err := h.api.DownloadFile(ctx, largest.FileID)
	if err != nil {
		log.Printf("download photo for user %d: %v", userID, err)
		h.replyFailure(ctx, chatID, "Не удалось скачать фото, попробуй ещё раз.")
		return
	}

	image := gemini.ImagePart("image/jpeg", base64.StdEncoding.EncodeToString(data))
	caption := strings.TrimSpace(msg.Caption)
	recorded := caption
	if recorded == "" {
		recorded = "[фото]"
	} else {
		recorded = "[фото] " + recorded
	}
	h.runTurn(ctx, chatID, userID, turnInput{
		message:      caption,
		recordedText: recorded,
		image:        &image,
	})
}

func (h *Handler) handleVoice(ctx context.Context, chatID, userID int64, msg *telegram.Message) {
	if h.transcriber == nil {
		h.reply(ctx, chatID, "Распознавание голосовых сообщений не настроено. Напиши текстом.")
		return
	}
	if !h.admit(ctx, chatID, userID) {
		return
	}
	_ = h.api.SendChatAction(ctx, chatID, "typing")

	ogg, err := h.api.DownloadFile(ctx, msg.Voice.FileID)
	if err != nil {
		log.Printf("download voice note for user %d: %v", userID, err)
		h.replyFailure(ctx, chatID, "Не удалось скачать голосовое сообщение.")
		return
	}
	text, err := h.transcriber.Transcribe(ctx, ogg)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			log.Printf("transcribe voice note for user %d: %v", userID, err)
		}
		h.replyFailure(ctx, chatID, "Не удалось распознать речь. Попробуй ещё раз или напиши текстом.")
		return
	}

	h.runTurn(ctx, chatID, userID, turnInput{
		message:      text,
		recordedText: "[голос] " + text,
		voiceReply:   h.prefs.Get(userID).Enabled,
	})
}

func (h *Handler) handleText(ctx context.Context, chatID, userID int64, text string) {
	if !h.admit(ctx, chatID, userID) {
		return
	}
	_ = h.api.SendChatAction(ctx, chatID, "typing")
	h.runTurn(ctx, chatID, userID, turnInput{
		message:      strings.TrimSpace(text),
		recordedText: strings.TrimSpace(text),
	})
}

// admit checks the quota and, when exhausted, tells the user instead of
// silently dropping the message. Nothing is consumed here; usage is
// recorded only after a successful model call.
func (h *Handler) admit(ctx context.Context, chatID, userID int64) bool {
	if h.limits.CanAdmit(userID) {
		return true
	}
	minute, day := h.limits.Remaining(userID)
	window := "minute"
	if minute > 0 {
		window = "day"
	}
	h.metrics.QuotaRejections.WithLabelValues(window).Inc()
	quota := h.limits.Quota()
	h.reply(ctx, chatID, fmt.Sprintf(
		"Лимит запросов исчерпан. Осталось: %d из %d в минуту, %d из %d в день. Подожди немного.",
		minute, quota.Minute, day, quota.Day))
	return false
}

type turnInput struct {
	message      string
	recordedText string
	image        *gemini.Part
	voiceReply   bool
}

func (h *Handler) runTurn(ctx context.Context, chatID, userID int64, in turnInput) {
	turnStart := time.Now()

	turns, err := h.store.History(ctx, userID)
	if err != nil {
		log.Printf("load history for user %d: %v", userID, err)
		// Degrade to a context-free turn instead of failing the message.
		turns = nil
	}

	classifyStart := time.Now()
	category := classify.Classify(in.message)
	h.metrics.ObserveTurnStage(observability.StageClassify, time.Since(classifyStart))

	var block string
	if category != classify.CategoryNone {
		augmentStart := time.Now()
		block = h.augment.Fetch(ctx, category, in.message)
		h.metrics.ObserveTurnStage(observability.StageAugment, time.Since(augmentStart))
	}

	var parts []gemini.Part
	if in.image != nil {
		parts = h.composer.ComposeWithImage(turns, block, in.message, *in.image)
	} else {
		parts = h.composer.Compose(turns, block, in.message)
	}

	generateStart := time.Now()
	answer, err := h.brain.Generate(ctx, parts)
	h.metrics.ObserveModelLatency(time.Since(generateStart))
	h.metrics.ObserveTurnStage(observability.StageGenerate, time.Since(generateStart))
	if err != nil {
		log.Printf("generate reply for user %d: %v", userID, err)
		h.replyFailure(ctx, chatID, brainDownText)
		return
	}

	// Usage and history are committed only for completed turns.
	h.limits.Record(userID)
	h.metrics.TrackedUsers.Set(float64(h.limits.TrackedUsers()))
	h.appendTurn(ctx, userID, history.RoleUser, in.recordedText)
	h.appendTurn(ctx, userID, history.RoleAssistant, answer)

	replyStart := time.Now()
	h.deliver(ctx, chatID, userID, answer, in.voiceReply)
	h.metrics.ObserveTurnStage(observability.StageReply, time.Since(replyStart))
	h.metrics.ObserveTurnStage(observability.StageTurnTotal, time.Since(turnStart))
}

func (h *Handler) appendTurn(ctx context.Context, userID int64, role, content string) {
	if err := h.store.Append(ctx, userID, history.Turn{Role: role, Content: content}); err != nil {
		log.Printf("append %s turn for user %d: %v", role, userID, err)
	}
}

func (h *Handler) deliver(ctx context.Context, chatID, userID int64, answer string, voiceReply bool) {
	if voiceReply {
		if synth, ok := h.voices[h.engineFor(userID)]; ok {
			spoken := voice.SanitizeSpeechText(answer)
			if spoken != "" {
				_ = h.api.SendChatAction(ctx, chatID, "record_voice")
				audio, format, err := synth.Synthesize(ctx, spoken, voice.DetectLang(spoken))
				if err == nil {
					if err := h.api.SendVoice(ctx, chatID, audio, "reply."+format); err == nil {
						h.metrics.RepliesTotal.WithLabelValues("voice").Inc()
						return
					}
					log.Printf("send voice reply to chat %d: %v", chatID, err)
				} else {
					log.Printf("synthesize reply for chat %d: %v", chatID, err)
				}
			}
		}
		// Fall through to a text reply when synthesis is unavailable.
	}

	minute, day := h.limits.Remaining(userID)
	text := fmt.Sprintf("%s\n\nОсталось запросов: %d в минуту, %d в день.", answer, minute, day)
	if err := h.api.SendMessage(ctx, chatID, text); err != nil {
		log.Printf("send reply to chat %d: %v", chatID, err)
		h.metrics.RepliesTotal.WithLabelValues("error").Inc()
		return
	}
	h.metrics.RepliesTotal.WithLabelValues("text").Inc()
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.api.SendMessage(ctx, chatID, text); err != nil {
		log.Printf("send message to chat %d: %v", chatID, err)
	}
}

func (h *Handler) replyFailure(ctx context.Context, chatID int64, text string) {
	h.metrics.RepliesTotal.WithLabelValues("error").Inc()
	h.reply(ctx, chatID, text)
}
