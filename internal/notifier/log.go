package notifier

import (
	"context"

	"github.com/julianstephens/podcheck/internal/logger"
)

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	keyvals := []any{"user", n.UserID, "title", n.Title}
	for k, v := range n.Data {
		keyvals = append(keyvals, k, v)
	}
	logger.Info(n.Body, keyvals...)
	return nil
}
