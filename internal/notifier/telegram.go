package notifier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ETFRotation/internal/httpclient"
)

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	Bot    *tgbotapi.BotAPI
	ChatID int64
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) (*TelegramNotifier, error) {
	return newTelegramNotifier(botToken, chatID, proxyURL, tgbotapi.APIEndpoint)
}

func newTelegramNotifier(botToken, chatID, proxyURL, endpoint string) (*TelegramNotifier, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram chat id %q: %w", chatID, err)
	}
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, httpclient.New(proxyURL, 35*time.Second))
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramNotifier{Bot: bot, ChatID: id}, nil
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// Send sends the text and then the chart as a photo when present.
func (t *TelegramNotifier) Send(ctx context.Context, r Report) error {
	return t.sendTo(ctx, t.ChatID, r)
}

func (t *TelegramNotifier) sendTo(ctx context.Context, chatID int64, r Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Text != "" {
		if _, err := t.Bot.Send(tgbotapi.NewMessage(chatID, r.Text)); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	if len(r.Chart) > 0 {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "equity.png", Bytes: r.Chart})
		if _, err := t.Bot.Send(photo); err != nil {
			return fmt.Errorf("send chart: %w", err)
		}
	}
	return nil
}
