package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ChatSender delivers one message to the operations chat.
type ChatSender interface {
	SendMessage(ctx context.Context, text string) error
}

// TelegramSender posts messages to a fixed Telegram chat via the Bot API.
type TelegramSender struct {
	Bot    *tgbotapi.BotAPI
	ChatID int64
}

// NewTelegramSender authenticates the bot once at startup.
func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &TelegramSender{Bot: bot, ChatID: chatID}, nil
}

// SendMessage delivers the text as a single chat message.
func (s *TelegramSender) SendMessage(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(s.ChatID, text)
	msg.DisableWebPagePreview = true
	if _, err := s.Bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
