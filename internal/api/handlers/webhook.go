package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/expensebot/internal/api/middleware"
	"github.com/dvloznov/expensebot/internal/bot"
)

// Processor drives one inbound message to a terminal state.
type Processor interface {
	Process(ctx context.Context, msg bot.Message) bot.State
}

// ProcessorProvider resolves the message processor for a request. Providers
// construct the bot transport lazily, so resolution fails when the bot
// token is absent.
type ProcessorProvider interface {
	Processor(ctx context.Context) (Processor, error)
}

// WebhookHandler handles Telegram webhook deliveries.
type WebhookHandler struct {
	provider ProcessorProvider
	log      zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(provider ProcessorProvider, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		provider: provider,
		log:      log,
	}
}

// HandleUpdate handles POST /webhook. A processed delivery returns 204; a
// delivery the bot cannot even decode, or a failed dependency setup, is an
// internal fault.
func (h *WebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode webhook update")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	message := update.Message
	if message == nil {
		// Not a message update (edits, polls, member changes); nothing to do.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	processor, err := h.provider.Processor(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to set up message processor")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	state := processor.Process(ctx, messageFromUpdate(message))

	h.log.Debug().
		Int("message_id", message.MessageID).
		Stringer("state", state).
		Msg("Update processed")

	w.WriteHeader(http.StatusNoContent)
}

// messageFromUpdate maps the Telegram wire message onto the state machine's
// view of it.
func messageFromUpdate(message *tgbotapi.Message) bot.Message {
	var userID int64 = -1
	if message.From != nil {
		userID = message.From.ID
	}

	receivedAt := time.Now()
	if message.Date > 0 {
		receivedAt = time.Unix(int64(message.Date), 0).UTC()
	}

	return bot.Message{
		ChatID:     message.Chat.ID,
		UserID:     userID,
		MessageID:  message.MessageID,
		Text:       message.Text,
		IsGroup:    message.Chat.IsGroup() || message.Chat.IsSuperGroup(),
		ReceivedAt: receivedAt,
	}
}
