package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"venue-vote/internal/domain/recipient"
)

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramSender struct {
	bot botSender
}

// NewTelegramSender connects to the Bot API and verifies the token.
func NewTelegramSender(token string, timeout time.Duration) (*TelegramSender, error) {
	client := &http.Client{Timeout: timeout}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot}, nil
}

func newTelegramSenderWith(bot botSender) *TelegramSender {
	return &TelegramSender{bot: bot}
}

func (s *TelegramSender) Send(ctx context.Context, to recipient.Recipient, msg Message) error {
	chatID, err := strconv.ParseInt(to.Address, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram address %q: %w", to.Address, err)
	}
	return s.SendText(ctx, chatID, RenderHTML(msg))
}

// SendText posts an HTML formatted text to one chat. Used for command replies.
func (s *TelegramSender) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	m.DisableWebPagePreview = true
	_, err := s.bot.Send(m)
	return err
}

// EscapeHTML makes user supplied text safe inside a Telegram HTML message.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// RenderHTML formats a message for Telegram's HTML parse mode. The link is an
// anchor so characters in the URL are never read as markup.
func RenderHTML(msg Message) string {
	var b strings.Builder
	if msg.Title != "" {
		fmt.Fprintf(&b, "<b>%s</b>\n\n", EscapeHTML(msg.Title))
	}
	b.WriteString(EscapeHTML(msg.Body))
	if msg.URL != "" {
		fmt.Fprintf(&b, "\n\n<a href=\"%s\">%s</a>", EscapeHTML(msg.URL), linkLabel(msg.Kind))
	}
	return b.String()
}

func linkLabel(k Kind) string {
	switch k {
	case KindWinner:
		return "Open map"
	case KindVotingOpen, KindLastCall:
		return "Vote now"
	}
	return "Open"
}
