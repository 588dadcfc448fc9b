package constants

import "time"

const (
	AppName            = "podcheck"
	DefaultKeyringUser = "default"
	DefaultConfigPath  = "~/.config/podcheck/config.yaml"
	DefaultDBPath      = "~/.config/podcheck/podcheck.db"
	Version            = "v0.3.0"

	// EnvPrefix is prepended to every environment override key.
	EnvPrefix = "PODCHECK_"

	// Worker constants
	PidfileName           = "podcheck-worker.pid"
	DefaultConcurrency    = 8
	DefaultPollInterval   = 5 * time.Second
	DefaultLease          = 2 * time.Minute
	DefaultMaxAttempts    = 5
	DefaultRetryBackoff   = 30 * time.Second
	MaxRetryBackoff       = 30 * time.Minute
	DefaultClaimBatchSize = 64

	// Sweeper constants
	DefaultSweepInterval = time.Hour
	DefaultLookbackDays  = 1
	DefaultJobRetention  = 14 * 24 * time.Hour

	// Check-in constants
	DefaultBackfillWindow = 6 * time.Hour

	// Notify constants
	DefaultNotificationGracePeriod = 10 * time.Minute
	NotifyRequestTimeout           = 10 * time.Second
	WebhookSecretHeader            = "X-Podcheck-Secret"

	// Queue constants
	QueueBackendSQL    = "sql"
	QueueBackendRedis  = "redis"
	DefaultRedisPrefix = "podcheck"

	// Notifier kinds
	NotifierLog      = "log"
	NotifierWebhook  = "webhook"
	NotifierTelegram = "telegram"
)
