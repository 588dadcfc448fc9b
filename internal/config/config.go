// Package config loads podcheck settings from an optional YAML file, a .env
// file and PODCHECK_* environment variables, in that order of precedence.
// Secrets that are not configured anywhere are looked up in the OS keyring.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/podcheck/internal/constants"
	"github.com/julianstephens/podcheck/internal/keyring"
	"github.com/julianstephens/podcheck/internal/logger"
)

type Config struct {
	Database      string              `yaml:"database"`
	Log           LogConfig           `yaml:"log"`
	Worker        WorkerConfig        `yaml:"worker"`
	Sweeper       SweeperConfig       `yaml:"sweeper"`
	CheckIns      CheckInConfig       `yaml:"checkins"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Queue         QueueConfig         `yaml:"queue"`
	Notifier      NotifierConfig      `yaml:"notifier"`

	// DatabaseFromSecret is set when Database came from the keyring or
	// PODCHECK_DB_CONNECTION, where a password may legitimately appear.
	DatabaseFromSecret bool `yaml:"-"`
}

type LogConfig struct {
	Debug bool   `yaml:"debug"`
	Dir   string `yaml:"dir"`
}

type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Lease        time.Duration `yaml:"lease"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

type SweeperConfig struct {
	Interval     time.Duration `yaml:"interval"`
	LookbackDays int           `yaml:"lookback_days"`
	JobRetention time.Duration `yaml:"job_retention"`
}

type CheckInConfig struct {
	BackfillWindow time.Duration `yaml:"backfill_window"`
}

type NotificationsConfig struct {
	GracePeriod time.Duration `yaml:"grace_period"`
}

type QueueConfig struct {
	Backend     string `yaml:"backend"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type NotifierConfig struct {
	Kind          string `yaml:"kind"`
	WebhookURL    string `yaml:"webhook_url"`
	WebhookSecret string `yaml:"webhook_secret"`
	TelegramToken string `yaml:"telegram_token"`
}

// Default returns the built-in settings. Database is left empty so that a
// keyring entry can fill it in before falling back to the default path.
func Default() Config {
	return Config{
		Worker: WorkerConfig{
			Concurrency:  constants.DefaultConcurrency,
			PollInterval: constants.DefaultPollInterval,
			Lease:        constants.DefaultLease,
			MaxAttempts:  constants.DefaultMaxAttempts,
			RetryBackoff: constants.DefaultRetryBackoff,
		},
		Sweeper: SweeperConfig{
			Interval:     constants.DefaultSweepInterval,
			LookbackDays: constants.DefaultLookbackDays,
			JobRetention: constants.DefaultJobRetention,
		},
		CheckIns: CheckInConfig{
			BackfillWindow: constants.DefaultBackfillWindow,
		},
		Notifications: NotificationsConfig{
			GracePeriod: constants.DefaultNotificationGracePeriod,
		},
		Queue: QueueConfig{
			Backend:     constants.QueueBackendSQL,
			RedisPrefix: constants.DefaultRedisPrefix,
		},
		Notifier: NotifierConfig{
			Kind: constants.NotifierLog,
		},
	}
}

// Load builds the effective configuration. A missing config file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return cfg, err
		}
		data, err := os.ReadFile(expanded)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Debug("no config file, using defaults", "path", expanded)
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := cfg.decode(bytes.NewReader(data)); err != nil {
				return cfg, fmt.Errorf("invalid config file %s: %w", expanded, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.ResolveSecrets(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays PODCHECK_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(constants.EnvPrefix + key)
		return v, ok && v != ""
	}

	if v, ok := get(constants.EnvDatabase); ok {
		c.Database = v
	}
	// DB_CONNECTION carries a full PostgreSQL connection string and wins over
	// DATABASE, the same way the keyring entry does.
	if v, ok := get(constants.EnvDBConnection); ok {
		c.Database = v
		c.DatabaseFromSecret = true
	}
	if v, ok := get(constants.EnvQueue); ok {
		c.Queue.Backend = v
	}
	if v, ok := get(constants.EnvRedisAddr); ok {
		c.Queue.RedisAddr = v
	}
	if v, ok := get(constants.EnvNotifier); ok {
		c.Notifier.Kind = v
	}
	if v, ok := get(constants.EnvWebhookURL); ok {
		c.Notifier.WebhookURL = v
	}
	if v, ok := get(constants.EnvWebhookSecret); ok {
		c.Notifier.WebhookSecret = v
	}
	if v, ok := get(constants.EnvTelegramToken); ok {
		c.Notifier.TelegramToken = v
	}
	if v, ok := get(constants.EnvDebug); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", constants.EnvPrefix, constants.EnvDebug, err)
		}
		c.Log.Debug = debug
	}
	return nil
}

// ResolveSecrets fills unset secrets from the OS keyring. An unavailable
// keyring is only an error when nothing else configured the database.
func (c *Config) ResolveSecrets() error {
	lookup := func(name string, dst *string) error {
		if *dst != "" {
			return nil
		}
		v, ok, err := keyring.Lookup(name)
		if err != nil {
			logger.Debug("keyring lookup failed", "secret", name, "error", err)
			return err
		}
		if ok {
			*dst = v
		}
		return nil
	}

	if c.Database == "" {
		err := lookup(keyring.SecretDatabase, &c.Database)
		if err != nil && !errors.Is(err, keyring.ErrKeyringUnavailable) {
			return err
		}
		c.DatabaseFromSecret = c.Database != ""
	}
	if c.Database == "" {
		c.Database = constants.DefaultDBPath
	}

	switch c.Notifier.Kind {
	case constants.NotifierTelegram:
		_ = lookup(keyring.SecretTelegramToken, &c.Notifier.TelegramToken)
	case constants.NotifierWebhook:
		_ = lookup(keyring.SecretWebhookSecret, &c.Notifier.WebhookSecret)
	}
	return nil
}

// IsPostgres reports whether Database names a PostgreSQL server rather than
// a SQLite file.
func (c Config) IsPostgres() bool {
	return strings.HasPrefix(c.Database, "postgres://") ||
		strings.HasPrefix(c.Database, "postgresql://") ||
		strings.Contains(c.Database, "host=")
}

func (c Config) Validate() error {
	var errs []error
	positive := func(key string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", key, d))
		}
	}

	if c.Database == "" {
		errs = append(errs, fmt.Errorf("%s is required", constants.SettingDatabase))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", constants.SettingWorkerConcurrency))
	}
	if c.Worker.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", constants.SettingWorkerMaxAttempts))
	}
	positive(constants.SettingWorkerPollInterval, c.Worker.PollInterval)
	positive(constants.SettingWorkerLease, c.Worker.Lease)
	positive(constants.SettingWorkerRetryBackoff, c.Worker.RetryBackoff)
	positive(constants.SettingSweeperInterval, c.Sweeper.Interval)
	positive(constants.SettingSweeperJobRetention, c.Sweeper.JobRetention)
	positive(constants.SettingBackfillWindow, c.CheckIns.BackfillWindow)
	if c.Sweeper.LookbackDays < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", constants.SettingSweeperLookbackDays))
	}
	if c.Notifications.GracePeriod < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", constants.SettingNotificationGrace))
	}

	switch c.Queue.Backend {
	case constants.QueueBackendSQL:
	case constants.QueueBackendRedis:
		if c.Queue.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("%s is required for the redis queue", constants.SettingQueueRedisAddr))
		}
		if c.Queue.RedisPrefix == "" {
			errs = append(errs, fmt.Errorf("%s cannot be empty", constants.SettingQueueRedisPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", constants.SettingQueueBackend,
			constants.QueueBackendSQL, constants.QueueBackendRedis, c.Queue.Backend))
	}

	switch c.Notifier.Kind {
	case constants.NotifierLog:
	case constants.NotifierWebhook:
		if c.Notifier.WebhookURL == "" {
			errs = append(errs, fmt.Errorf("%s is required for the webhook notifier", constants.SettingNotifierWebhookURL))
		}
	case constants.NotifierTelegram:
		if c.Notifier.TelegramToken == "" {
			errs = append(errs, fmt.Errorf("%s is required for the telegram notifier", constants.SettingNotifierTelegram))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown %s %q", constants.SettingNotifierKind, c.Notifier.Kind))
	}

	return errors.Join(errs...)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
