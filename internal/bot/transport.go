package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Transport is the outbound side of the chat provider: send a status
// message, rewrite it in place, and leave a chat.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) (messageID int, err error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	LeaveChat(ctx context.Context, chatID int64) error
}

// TelegramTransport implements Transport on the Telegram Bot API.
type TelegramTransport struct {
	api *tgbotapi.BotAPI
}

// NewTelegramTransport wraps an authorized Bot API client.
func NewTelegramTransport(api *tgbotapi.BotAPI) *TelegramTransport {
	return &TelegramTransport{api: api}
}

// SendMessage sends a new message and returns its identifier for later edits.
func (t *TelegramTransport) SendMessage(_ context.Context, chatID int64, text string) (int, error) {
	sent, err := t.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, fmt.Errorf("SendMessage: %w", err)
	}
	return sent.MessageID, nil
}

// EditMessage rewrites a previously sent message in place.
func (t *TelegramTransport) EditMessage(_ context.Context, chatID int64, messageID int, text string) error {
	if _, err := t.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("EditMessage: %w", err)
	}
	return nil
}

// LeaveChat removes the bot from a chat.
func (t *TelegramTransport) LeaveChat(_ context.Context, chatID int64) error {
	if _, err := t.api.Request(tgbotapi.LeaveChatConfig{ChatID: chatID}); err != nil {
		return fmt.Errorf("LeaveChat: %w", err)
	}
	return nil
}
