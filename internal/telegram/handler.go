package telegram

import (
	"context"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/abn-search/internal/domain"
	"github.com/kitbuilder587/abn-search/internal/metrics"
	"github.com/kitbuilder587/abn-search/internal/query"
	"github.com/kitbuilder587/abn-search/internal/ratelimit"
	"github.com/kitbuilder587/abn-search/internal/view"
)

const (
	startText = "<b>" + view.DefaultTitle + "</b>\n" +
		view.DefaultDescription + ".\n\n" +
		"Send a business name or an 11 digit ABN. Use /help for commands."

	helpText = `<b>Commands:</b>

/abn NUMBER - Look up a business by ABN
/retry - Repeat the last search
/help - Show this help

Any other text is searched by business name or ABN.

<b>Examples:</b>
• Example Pty Ltd
• /abn 51 824 753 556`

	abnUsageText    = "Usage: /abn 51 824 753 556"
	nothingToRetry  = "Nothing to retry. Send a business name or ABN first."
	unknownCommand  = "Unknown command. Use /help for the list of commands."
	rateLimitedText = "Too many requests. Please wait a minute."
)

// чат без сообщений дольше этого теряет сессию, /retry после этого не сработает
const sessionIdleTTL = 30 * time.Minute

type chatSession struct {
	session  *query.Session
	lastSeen time.Time
}

type HandlerDeps struct {
	Sender  Sender
	Client  *query.Client
	Limiter *ratelimit.Limiter
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Handler держит по одной query.Session на чат.
type Handler struct {
	sender  Sender
	client  *query.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics

	now func() time.Time

	mu        sync.Mutex
	sessions  map[int64]*chatSession
	lastSweep time.Time
}

func NewHandler(deps HandlerDeps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handler{
		sender:   deps.Sender,
		client:   deps.Client,
		limiter:  deps.Limiter,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		now:      time.Now,
		sessions: make(map[int64]*chatSession),
	}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}

	cmd, args := ParseCommand(msg.Text)

	h.logger.Info("received message",
		zap.Int64("chat_id", msg.Chat.ID),
		zap.String("command", cmd.String()),
	)

	switch cmd {
	case CommandStart:
		h.send(msg.Chat.ID, startText)
	case CommandHelp:
		h.send(msg.Chat.ID, helpText)
	case CommandABN:
		h.handleABN(ctx, msg, args)
	case CommandRetry:
		h.handleRetry(ctx, msg)
	case CommandSearch:
		h.handleSearch(ctx, msg, args)
	default:
		h.send(msg.Chat.ID, unknownCommand)
	}
}

func (h *Handler) handleABN(ctx context.Context, msg *tgbotapi.Message, args string) {
	if args == "" {
		h.send(msg.Chat.ID, abnUsageText)
		return
	}
	if !domain.IsABN(args) {
		h.send(msg.Chat.ID, domain.ErrorFor(domain.ErrInvalidABN).Message+"\n"+abnUsageText)
		return
	}
	h.handleSearch(ctx, msg, args)
}

func (h *Handler) handleSearch(ctx context.Context, msg *tgbotapi.Message, q string) {
	if domain.Key(q) == "" {
		return
	}
	if !h.allow(msg) {
		return
	}

	session := h.session(msg.Chat.ID)
	h.send(msg.Chat.ID, view.LoadingMessage)
	h.sender.SendTyping(msg.Chat.ID)

	h.render(msg.Chat.ID, session.Submit(ctx, q))
}

func (h *Handler) handleRetry(ctx context.Context, msg *tgbotapi.Message) {
	session := h.session(msg.Chat.ID)
	if session.Snapshot().Query == "" {
		h.send(msg.Chat.ID, nothingToRetry)
		return
	}
	if !h.allow(msg) {
		return
	}

	h.send(msg.Chat.ID, view.LoadingMessage)
	h.sender.SendTyping(msg.Chat.ID)

	h.render(msg.Chat.ID, session.Retry(ctx))
}

// render отправляет итоговое состояние. Перебитый запрос молчит,
// ответ отправит обработчик нового.
func (h *Handler) render(chatID int64, snap query.Snapshot) {
	if snap.Superseded {
		return
	}
	page := view.NewPage(snap)
	if page.IsLoading() || page.IsIdle() {
		return
	}

	for _, m := range SplitMessage(FormatPage(page), MaxMessageLength) {
		h.send(chatID, m)
	}
}

func (h *Handler) allow(msg *tgbotapi.Message) bool {
	if h.limiter == nil {
		return true
	}

	key := strconv.FormatInt(msg.Chat.ID, 10)
	if msg.From != nil {
		key = strconv.FormatInt(msg.From.ID, 10)
	}
	if h.limiter.Allow(key) {
		return true
	}

	h.logger.Warn("rate limit exceeded",
		zap.String("user", key),
		zap.Time("reset_at", h.limiter.ResetTime(key)),
	)
	if h.metrics != nil {
		h.metrics.RecordRateLimitHit("telegram")
	}
	h.send(msg.Chat.ID, rateLimitedText)
	return false
}

func (h *Handler) session(chatID int64) *query.Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if now.Sub(h.lastSweep) >= sessionIdleTTL {
		h.lastSweep = now
		for id, cs := range h.sessions {
			if now.Sub(cs.lastSeen) >= sessionIdleTTL {
				delete(h.sessions, id)
			}
		}
	}

	cs, ok := h.sessions[chatID]
	if !ok {
		cs = &chatSession{session: query.NewSession(h.client)}
		h.sessions[chatID] = cs
	}
	cs.lastSeen = now
	return cs.session
}

func (h *Handler) send(chatID int64, text string) {
	if err := h.sender.Send(chatID, text); err != nil {
		h.logger.Error("failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
