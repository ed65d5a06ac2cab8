package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/abn-search/internal/metrics"
	"github.com/kitbuilder587/abn-search/internal/query"
	"github.com/kitbuilder587/abn-search/internal/ratelimit"
)

type BotConfig struct {
	Token             string
	Debug             bool
	RequestsPerMinute int
}

// Sender - то, через что хендлер пишет в чат.
type Sender interface {
	Send(chatID int64, text string) error
	SendTyping(chatID int64)
}

type Bot struct {
	api         *tgbotapi.BotAPI
	logger      *zap.Logger
	metrics     *metrics.Metrics
	handler     *Handler
	rateLimiter *ratelimit.Limiter
	wg          sync.WaitGroup
}

func New(cfg BotConfig, client *query.Client, logger *zap.Logger, m *metrics.Metrics) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	api.Debug = cfg.Debug

	rateLimiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RequestsPerMinute,
	})

	bot := &Bot{
		api:         api,
		logger:      logger,
		metrics:     m,
		rateLimiter: rateLimiter,
	}

	bot.handler = NewHandler(HandlerDeps{
		Sender:  bot,
		Client:  client,
		Limiter: rateLimiter,
		Logger:  logger,
		Metrics: m,
	})

	logger.Info("telegram bot authorized",
		zap.String("username", api.Self.UserName),
	)

	return bot, nil
}

// Run читает long polling до отмены ctx. Каждое сообщение обрабатывается в своей
// горутине; перед выходом ждем незавершенные.
func (b *Bot) Run(ctx context.Context) error {
	defer b.rateLimiter.Stop()

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info("polling for updates")
	defer func() {
		b.api.StopReceivingUpdates()
		b.wg.Wait()
		b.logger.Info("bot stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.dispatch(ctx, update.Message)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, msg *tgbotapi.Message) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handleMessage(ctx, msg)
	}()
}

// handleMessage не дает панике в хендлере уронить бота; вид апдейта для метрик
// определяется внутри защищенного участка.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	start := time.Now()
	kind, status := CommandUnknown.String(), "processed"

	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			var chatID int64
			if msg.Chat != nil {
				chatID = msg.Chat.ID
			}
			b.logger.Error("panic in update handler",
				zap.Any("panic", r),
				zap.String("kind", kind),
				zap.Int64("chat_id", chatID),
			)
		}
		if b.metrics != nil {
			b.metrics.RecordBotUpdate(kind, status, time.Since(start))
		}
	}()

	cmd, _ := ParseCommand(msg.Text)
	kind = cmd.String()
	b.handler.HandleMessage(ctx, msg)
}

func (b *Bot) Send(chatID int64, text string) error {
	if b.api == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendTyping(chatID int64) {
	if b.api == nil {
		return
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	b.api.Send(action)
}
