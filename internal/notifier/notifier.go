// Package notifier delivers missed and reminder events to goal owners.
// Delivery is fire-and-forget: callers log failures and move on.
package notifier

import (
	"context"
	"fmt"

	"github.com/julianstephens/podcheck/internal/constants"
)

type Event string

const (
	EventMissed   Event = "missed"
	EventReminder Event = "reminder"
)

type Notification struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Options selects and configures a backend.
type Options struct {
	Kind          string
	WebhookURL    string
	WebhookSecret string
	TelegramToken string
}

func New(opts Options) (Notifier, error) {
	switch opts.Kind {
	case "", constants.NotifierLog:
		return NewLogNotifier(), nil
	case constants.NotifierWebhook:
		return NewWebhookNotifier(opts.WebhookURL, opts.WebhookSecret)
	case constants.NotifierTelegram:
		return NewTelegramNotifier(opts.TelegramToken)
	default:
		return nil, fmt.Errorf("unknown notifier %q", opts.Kind)
	}
}
