package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"recipebot/internal/config"
	"recipebot/internal/logging"
	"recipebot/internal/pipeline"
	"recipebot/internal/platform"
	"recipebot/internal/quota"
	"recipebot/internal/workflow"
)

const (
	minPollBackoff = time.Second
	maxPollBackoff = 30 * time.Second

	textNoURL    = "Пришли ссылку на Instagram / TikTok / YouTube"
	textBusyPool = "❌ Бот сейчас перезапускается, попробуй через минуту."
	textNoStatus = "❌ Не получилось узнать баланс, попробуй позже."
)

// Submitter accepts requests for asynchronous processing.
type Submitter interface {
	Submit(req pipeline.Request) error
}

// QuotaReader reports a user's quota without changing it.
type QuotaReader interface {
	Status(ctx context.Context, userID int64) (quota.Status, error)
}

// Poller long-polls getUpdates and dispatches each message.
type Poller struct {
	client      *Client
	submitter   Submitter
	quota       QuotaReader
	quotaCfg    config.Quota
	pollTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
	offset      int64
}

// NewPoller builds a poller. quota may be nil, in which case /balance is
// answered with an error notice.
func NewPoller(client *Client, submitter Submitter, reader QuotaReader, cfg *config.Config, logger *slog.Logger) *Poller {
	pollTimeout := 30 * time.Second
	quotaCfg := config.Default().Quota
	if cfg != nil {
		if cfg.Telegram.PollTimeoutSeconds > 0 {
			pollTimeout = time.Duration(cfg.Telegram.PollTimeoutSeconds) * time.Second
		}
		quotaCfg = cfg.Quota
	}
	return &Poller{
		client:      client,
		submitter:   submitter,
		quota:       reader,
		quotaCfg:    quotaCfg,
		pollTimeout: pollTimeout,
		logger:      logging.NewComponentLogger(logger, "telegram"),
		now:         time.Now,
	}
}

// Offset returns the next update id the poller will ask for.
func (p *Poller) Offset() int64 {
	return p.offset
}

// Run polls until ctx is canceled. Poll failures are logged and retried with
// exponential backoff; they never end the loop.
func (p *Poller) Run(ctx context.Context) error {
	backoff := minPollBackoff
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		updates, err := p.client.GetUpdates(ctx, p.offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.WarnWithContext(p.logger, "telegram poll failed", "poll_failed",
				logging.Error(err),
				logging.Duration("retry_in", backoff),
				logging.String(logging.FieldErrorHint, "check telegram.token and network reachability"),
			)
			if err := sleepContext(ctx, backoff); err != nil {
				return nil
			}
			backoff = min(backoff*2, maxPollBackoff)
			continue
		}
		backoff = minPollBackoff
		for _, update := range updates {
			p.Handle(ctx, update)
			if update.UpdateID >= p.offset {
				p.offset = update.UpdateID + 1
			}
		}
	}
}

// Handle dispatches one update.
func (p *Poller) Handle(ctx context.Context, update Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	logger := p.logger.With(
		logging.Requester(msg.From.ID),
		logging.Int64("update_id", update.UpdateID),
	)

	if command, ok := parseCommand(text); ok {
		switch command {
		case "start", "help":
			p.reply(ctx, logger, msg, p.welcomeText())
		case "balance":
			p.reply(ctx, logger, msg, p.balanceText(ctx, logger, msg.From.ID))
		default:
			p.reply(ctx, logger, msg, textNoURL)
		}
		return
	}

	rawURL, ok := platform.ExtractURL(text)
	if !ok {
		p.reply(ctx, logger, msg, textNoURL)
		return
	}
	req := pipeline.Request{
		RequesterID: msg.From.ID,
		ChatID:      msg.Chat.ID,
		MessageID:   msg.MessageID,
		URL:         rawURL,
		ReceivedAt:  p.messageTime(msg),
	}
	err := p.submitter.Submit(req)
	switch {
	case err == nil:
		logger.Debug("request queued", logging.String(logging.FieldEventType, "request_queued"), logging.SourceURL(rawURL))
	case errors.Is(err, workflow.ErrQueueFull):
		p.reply(ctx, logger, msg, pipeline.NoticeQueueFull)
	default:
		logging.WarnWithContext(logger, "request not accepted", "submit_failed", logging.Error(err))
		p.reply(ctx, logger, msg, textBusyPool)
	}
}

func (p *Poller) messageTime(msg *Message) time.Time {
	if msg.Date > 0 {
		return time.Unix(msg.Date, 0)
	}
	return p.now()
}

func (p *Poller) reply(ctx context.Context, logger *slog.Logger, msg *Message, text string) {
	if _, err := p.client.SendMessage(ctx, SendMessageParams{ChatID: msg.Chat.ID, Text: text}); err != nil {
		logging.WarnWithContext(logger, "reply failed", "reply_failed", logging.Error(err))
	}
}

func (p *Poller) welcomeText() string {
	return fmt.Sprintf(`👋 Привет! Я превращаю кулинарные ролики в рецепты.

🆓 Тебе доступно %d бесплатных видео.
Хочешь больше? Будут такие тарифы:
•  %d роликов одним пакетом
•  Подписка на %d дн, включает %d роликов

Просто пришли ссылку на Reels / TikTok / Shorts, я всё сделаю.`,
		p.quotaCfg.FreeLimit, p.quotaCfg.PackageAmount, p.quotaCfg.SubscriptionDays, p.quotaCfg.SubscriptionAmount)
}

func (p *Poller) balanceText(ctx context.Context, logger *slog.Logger, userID int64) string {
	if p.quota == nil {
		return textNoStatus
	}
	status, err := p.quota.Status(ctx, userID)
	if err != nil {
		logging.WarnWithContext(logger, "quota status failed", "quota_status_failed", logging.Error(err))
		return textNoStatus
	}
	return formatBalance(status, p.now())
}

func formatBalance(status quota.Status, today time.Time) string {
	if status.Unlimited {
		return "♾ У тебя безлимитный доступ."
	}
	lines := []string{
		fmt.Sprintf("🆓 Бесплатных видео осталось: %d из %d", status.FreeRemaining, status.FreeLimit),
		fmt.Sprintf("💳 Баланс: %d", status.EffectiveBalance),
	}
	if status.PaidUntil != nil {
		if status.Expired(today) {
			lines = append(lines, "📅 Подписка закончилась "+status.PaidUntil.Format("2006-01-02"))
		} else {
			lines = append(lines, "📅 Подписка до "+status.PaidUntil.Format("2006-01-02"))
		}
	}
	return strings.Join(lines, "\n")
}

// parseCommand returns the command name for "/name" or "/name@bot" text.
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name, _, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), true
}
