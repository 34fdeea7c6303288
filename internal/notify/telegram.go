package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/wasla-delivery/orderchat/internal/config"
)

const maxAlertLen = 4000

// Telegram forwards warning and error statuses to an ops chat, one topic per
// severity. Info and success statuses stay local.
type Telegram struct {
	bot *bot.Bot
	cfg *config.Config
}

func NewTelegram(b *bot.Bot, cfg *config.Config) *Telegram {
	return &Telegram{bot: b, cfg: cfg}
}

func (t *Telegram) Notify(kind Kind, message string) {
	if !t.cfg.OpsAlertsEnabled() {
		return
	}

	var topicID int
	switch kind {
	case KindError:
		topicID = t.cfg.OpsTopicError
	case KindWarning:
		topicID = t.cfg.OpsTopicWarning
	default:
		return
	}

	text := fmt.Sprintf("*%s*\n\n%s\n\n_%s_", kind, message,
		time.Now().Format("2006-01-02 15:04:05"))
	if len([]rune(text)) > maxAlertLen {
		text = string([]rune(text)[:maxAlertLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.NotifyTimeout)
	defer cancel()

	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          t.cfg.OpsChatID,
		Text:            text,
		ParseMode:       "Markdown",
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send ops alert", "kind", kind, "error", err)
	}
}
