package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/platewise/api/internal/model"
)

// TelegramSender is the part of *tgbotapi.BotAPI the notifier needs
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram messages owners whose id is a Telegram chat id.
// Owners with any other id form are skipped.
type Telegram struct {
	bot TelegramSender
}

func NewTelegram(bot TelegramSender) *Telegram {
	return &Telegram{bot: bot}
}

// NewTelegramBot returns nil when no token is configured
func NewTelegramBot(token string) (*Telegram, error) {
	if token == "" {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegram(bot), nil
}

func (t *Telegram) Notify(ctx context.Context, n model.Notification) error {
	chatID, err := strconv.ParseInt(n.OwnerID, 10, 64)
	if err != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, TelegramText(n))); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// TelegramText renders the message body for a notification
func TelegramText(n model.Notification) string {
	switch n.Status {
	case model.EstimateStatusDone:
		return fmt.Sprintf("Your meal is ready: about %.0f kcal (%.0f to %.0f).", n.KcalMean, n.KcalMin, n.KcalMax)
	default:
		reason := n.Reason
		if reason == "" {
			reason = "estimation failed"
		}
		return "We couldn't estimate your meal: " + reason
	}
}
