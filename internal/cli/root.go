package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/julianstephens/podcheck/internal/config"
	"github.com/julianstephens/podcheck/internal/constants"
	"github.com/julianstephens/podcheck/internal/evaluator"
	"github.com/julianstephens/podcheck/internal/notifier"
	"github.com/julianstephens/podcheck/internal/pidfile"
	"github.com/julianstephens/podcheck/internal/queue"
	"github.com/julianstephens/podcheck/internal/queue/redisqueue"
	"github.com/julianstephens/podcheck/internal/queue/sqlqueue"
	"github.com/julianstephens/podcheck/internal/scheduler"
	"github.com/julianstephens/podcheck/internal/storage"
	"github.com/julianstephens/podcheck/internal/storage/postgres"
	"github.com/julianstephens/podcheck/internal/storage/sqlite"
	"github.com/julianstephens/podcheck/internal/sweeper"
)

// Context is handed to every command. Services are built on first use so a
// command only pays for what it touches.
type Context struct {
	Config config.Config
	Store  storage.Provider
	Out    io.Writer
	Now    func() time.Time
	// RuntimeDir holds the worker pidfile and logs.
	RuntimeDir string

	queue     queue.Queue
	notifier  notifier.Notifier
	evaluator *evaluator.Service
	engine    *scheduler.Engine
	sweeper   *sweeper.Sweeper
}

func NewContext(cfg config.Config, store storage.Provider, runtimeDir string) *Context {
	return &Context{
		Config:     cfg,
		Store:      store,
		Out:        os.Stdout,
		Now:        time.Now,
		RuntimeDir: runtimeDir,
	}
}

// NewStore picks the storage backend named by cfg.Database. PostgreSQL
// connection strings given on the command line or in the config file must
// not carry a password.
func NewStore(cfg config.Config) (storage.Provider, error) {
	if cfg.IsPostgres() {
		if err := postgres.CheckConnString(cfg.Database, cfg.DatabaseFromSecret); err != nil {
			return nil, err
		}
		return postgres.New(cfg.Database), nil
	}

	path, err := config.ExpandPath(cfg.Database)
	if err != nil {
		return nil, err
	}
	return sqlite.NewStore(path), nil
}

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.Out, args...)
}

func (c *Context) Queue(ctx context.Context) (queue.Queue, error) {
	if c.queue != nil {
		return c.queue, nil
	}

	switch c.Config.Queue.Backend {
	case "", constants.QueueBackendSQL:
		c.queue = sqlqueue.New(c.Store, sqlqueue.WithClock(c.Now))
	case constants.QueueBackendRedis:
		q, err := redisqueue.Dial(ctx, c.Config.Queue.RedisAddr,
			redisqueue.WithPrefix(c.Config.Queue.RedisPrefix),
			redisqueue.WithClock(c.Now),
		)
		if err != nil {
			return nil, err
		}
		c.queue = q
	default:
		return nil, fmt.Errorf("unknown queue backend %q", c.Config.Queue.Backend)
	}
	return c.queue, nil
}

func (c *Context) Notifier() (notifier.Notifier, error) {
	if c.notifier != nil {
		return c.notifier, nil
	}
	n, err := notifier.New(notifier.Options{
		Kind:          c.Config.Notifier.Kind,
		WebhookURL:    c.Config.Notifier.WebhookURL,
		WebhookSecret: c.Config.Notifier.WebhookSecret,
		TelegramToken: c.Config.Notifier.TelegramToken,
	})
	if err != nil {
		return nil, err
	}
	c.notifier = n
	return n, nil
}

// SetNotifier replaces the configured notifier, mainly for tests.
func (c *Context) SetNotifier(n notifier.Notifier) {
	c.notifier = n
	c.evaluator = nil
}

func (c *Context) Evaluator() (*evaluator.Service, error) {
	if c.evaluator != nil {
		return c.evaluator, nil
	}
	n, err := c.Notifier()
	if err != nil {
		return nil, err
	}
	c.evaluator = evaluator.New(c.Store, n,
		evaluator.WithClock(c.Now),
		evaluator.WithBackfillWindow(c.Config.CheckIns.BackfillWindow),
	)
	return c.evaluator, nil
}

// Engine returns the scheduling engine with the evaluators registered.
func (c *Context) Engine(ctx context.Context) (*scheduler.Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}
	q, err := c.Queue(ctx)
	if err != nil {
		return nil, err
	}
	ev, err := c.Evaluator()
	if err != nil {
		return nil, err
	}

	w := c.Config.Worker
	c.engine = scheduler.New(q, scheduler.Config{
		Concurrency:  w.Concurrency,
		PollInterval: w.PollInterval,
		Lease:        w.Lease,
		MaxAttempts:  w.MaxAttempts,
		RetryBackoff: w.RetryBackoff,
	}, scheduler.WithClock(c.Now))
	c.engine.HandleEvaluator(ev)
	return c.engine, nil
}

func (c *Context) Sweeper(ctx context.Context) (*sweeper.Sweeper, error) {
	if c.sweeper != nil {
		return c.sweeper, nil
	}
	engine, err := c.Engine(ctx)
	if err != nil {
		return nil, err
	}
	q, err := c.Queue(ctx)
	if err != nil {
		return nil, err
	}

	s := c.Config.Sweeper
	c.sweeper = sweeper.New(c.Store, engine, sweeper.Config{
		Interval:      s.Interval,
		LookbackDays:  s.LookbackDays,
		JobRetention:  s.JobRetention,
		ReminderGrace: c.Config.Notifications.GracePeriod,
	}, sweeper.WithClock(c.Now), sweeper.WithPruner(q))
	return c.sweeper, nil
}

// PidfilePath is where the worker records itself.
func (c *Context) PidfilePath() string {
	return pidfile.Path(c.RuntimeDir)
}

func (c *Context) Close() error {
	var errs []error
	if c.queue != nil {
		errs = append(errs, c.queue.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
