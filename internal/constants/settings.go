package constants

const (
	// Config keys, as they appear in config.yaml
	SettingDatabase            = "database"
	SettingWorkerConcurrency   = "worker.concurrency"
	SettingWorkerPollInterval  = "worker.poll_interval"
	SettingWorkerLease         = "worker.lease"
	SettingWorkerMaxAttempts   = "worker.max_attempts"
	SettingWorkerRetryBackoff  = "worker.retry_backoff"
	SettingSweeperInterval     = "sweeper.interval"
	SettingSweeperLookbackDays = "sweeper.lookback_days"
	SettingSweeperJobRetention = "sweeper.job_retention"
	SettingBackfillWindow      = "checkins.backfill_window"
	SettingNotificationGrace   = "notifications.grace_period"
	SettingQueueBackend        = "queue.backend"
	SettingQueueRedisAddr      = "queue.redis_addr"
	SettingQueueRedisPrefix    = "queue.redis_prefix"
	SettingNotifierKind        = "notifier.kind"
	SettingNotifierWebhookURL  = "notifier.webhook_url"
	SettingNotifierTelegram    = "notifier.telegram_token"

	// Environment override keys (without EnvPrefix)
	EnvDatabase      = "DATABASE"
	EnvQueue         = "QUEUE"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvNotifier      = "NOTIFIER"
	EnvWebhookURL    = "WEBHOOK_URL"
	EnvWebhookSecret = "WEBHOOK_SECRET"
	EnvTelegramToken = "TELEGRAM_TOKEN"
	EnvDebug         = "DEBUG"
	EnvDBConnection  = "DB_CONNECTION"
)
