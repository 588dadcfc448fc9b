package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends each notification as a chat message. The user id of
// a notification is the recipient's Telegram chat id.
type TelegramNotifier struct {
	bot sender
}

func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	if token == "" {
		return nil, errors.New("telegram notifier requires a bot token")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return &TelegramNotifier{bot: bot}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, n Notification) error {
	chatID, err := strconv.ParseInt(n.UserID, 10, 64)
	if err != nil {
		return fmt.Errorf("user %q is not a telegram chat id: %w", n.UserID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s\n\n%s", n.Title, n.Body))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}
