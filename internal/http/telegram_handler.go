package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"venue-vote/internal/notify"
	"venue-vote/internal/platform/apperr"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const telegramHelpText = "<b>Available commands</b>\n\n" +
	"/start - receive vote reminders and results\n" +
	"/stop - stop receiving notifications\n" +
	"/help - show this message"

// @Summary     Telegram bot webhook
// @Description Handles /start, /stop and /help. Other updates are acknowledged and ignored.
// @Tags        telegram
// @Accept      json
// @Produce     json
// @Success     200  {object}  map[string]bool
// @Failure     401  {object}  map[string]string  "bad secret token"
// @Router      /api/v1/telegram/webhook [post]
func (h *Handler) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" {
		got := r.Header.Get(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			errorResponse(w, apperr.Unauthorized("invalid_secret", "invalid webhook secret", nil))
			return
		}
	}

	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid update", err))
		return
	}

	msg := upd.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	chatID := msg.Chat.ID

	var reply string
	switch msg.Command() {
	case "start":
		firstName, username := "", ""
		if msg.From != nil {
			firstName, username = msg.From.FirstName, msg.From.UserName
		}
		created, err := h.recipients.RegisterTelegram(r.Context(), chatID, firstName, username)
		if err != nil {
			errorResponse(w, err)
			return
		}
		slogLogger.Info("telegram chat registered", "chat_id", chatID, "new", created)
		reply = welcomeText(firstName)
	case "stop":
		found, err := h.recipients.DeregisterTelegram(r.Context(), chatID)
		if err != nil {
			errorResponse(w, err)
			return
		}
		slogLogger.Info("telegram chat deregistered", "chat_id", chatID, "known", found)
		reply = "Notifications turned off. Send /start to turn them back on."
	case "help":
		reply = telegramHelpText
	}

	if reply != "" {
		h.replyTelegram(r.Context(), chatID, reply)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func welcomeText(firstName string) string {
	name := "there"
	if firstName != "" {
		name = notify.EscapeHTML(firstName)
	}
	return fmt.Sprintf("Welcome %s!\n\nYou will receive reminders before each vote closes and the winner when it does.\n\nSend /stop to unsubscribe or /help for the command list.", name)
}

func (h *Handler) replyTelegram(ctx context.Context, chatID int64, text string) {
	if h.telegram == nil {
		return
	}
	if err := h.telegram.SendText(ctx, chatID, text); err != nil {
		slogLogger.Warn("telegram reply failed", "chat_id", chatID, "error", err)
	}
}
