// Package scheduler turns goals into delayed evaluator jobs and runs them.
// The Engine polls a durable queue.Queue, leases due jobs and dispatches them
// to a bounded worker pool. Delivery is at-least-once, so handlers must be
// idempotent.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/julianstephens/podcheck/internal/constants"
	"github.com/julianstephens/podcheck/internal/logger"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/queue"
)

type HandlerFunc func(ctx context.Context, job models.ScheduledJob) error

// Evaluator is the pair of entry points the engine fires.
type Evaluator interface {
	EvaluateDeadline(ctx context.Context, goalID, date string) error
	EvaluateReminder(ctx context.Context, goalID, date string) error
}

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	Lease        time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	BatchSize    int
}

func DefaultConfig() Config {
	return Config{
		Concurrency:  constants.DefaultConcurrency,
		PollInterval: constants.DefaultPollInterval,
		Lease:        constants.DefaultLease,
		MaxAttempts:  constants.DefaultMaxAttempts,
		RetryBackoff: constants.DefaultRetryBackoff,
		MaxBackoff:   constants.MaxRetryBackoff,
		BatchSize:    constants.DefaultClaimBatchSize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Lease <= 0 {
		c.Lease = d.Lease
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	return c
}

type Engine struct {
	queue queue.Queue
	cfg   Config
	now   func() time.Time

	mu       sync.RWMutex
	handlers map[models.JobKind]HandlerFunc

	// wake is buffered with size 1 so repeated signals coalesce.
	wake chan struct{}
	sem  chan struct{}
	wg   sync.WaitGroup
	// saturated is set when a poll found no free worker.
	saturated atomic.Bool
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(q queue.Queue, cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		queue:    q,
		cfg:      cfg,
		now:      time.Now,
		handlers: make(map[models.JobKind]HandlerFunc),
		wake:     make(chan struct{}, 1),
		sem:      make(chan struct{}, cfg.Concurrency),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Handle(kind models.JobKind, h HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[kind] = h
}

// HandleEvaluator routes DEADLINE and REMINDER jobs to ev.
func (e *Engine) HandleEvaluator(ev Evaluator) {
	e.Handle(models.JobDeadline, func(ctx context.Context, job models.ScheduledJob) error {
		return ev.EvaluateDeadline(ctx, job.GoalID, job.Date)
	})
	e.Handle(models.JobReminder, func(ctx context.Context, job models.ScheduledJob) error {
		return ev.EvaluateReminder(ctx, job.GoalID, job.Date)
	})
}

func (e *Engine) handler(kind models.JobKind) (HandlerFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handlers[kind]
	return h, ok
}

// Enqueue schedules kind for (goalID, date) at fireAt. It is a no-op when the
// job already exists and reports whether a new job was created.
func (e *Engine) Enqueue(ctx context.Context, kind models.JobKind, goalID, date string, fireAt time.Time) (bool, error) {
	job := models.ScheduledJob{
		JobKey: models.JobKey{Kind: kind, GoalID: goalID, Date: date},
		FireAt: fireAt.UTC(),
	}
	created, err := e.queue.Enqueue(ctx, job)
	if err != nil {
		return false, err
	}
	if created {
		logger.Debug("job enqueued", "job", job.JobKey.String(), "fire_at", job.FireAt)
		if !fireAt.After(e.now()) {
			e.signal()
		}
	}
	return created, nil
}

// Schedule computes the fire instant for goal on date and enqueues it.
func (e *Engine) Schedule(ctx context.Context, goal models.Goal, date string, kind models.JobKind) (bool, time.Time, error) {
	fireAt, err := FireInstant(goal, date, kind)
	if err != nil {
		return false, time.Time{}, err
	}
	created, err := e.Enqueue(ctx, kind, goal.ID, date, fireAt)
	return created, fireAt, err
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Run dispatches due jobs until ctx is cancelled, then waits for in-flight
// jobs to finish.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	defer e.wg.Wait()

	logger.Info("scheduling engine started", "concurrency", e.cfg.Concurrency, "poll", e.cfg.PollInterval)
	for {
		n, more, err := e.claimAndStart(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Error("failed to claim jobs", "error", err)
		}
		if more && n > 0 {
			e.signal()
		}

		select {
		case <-ctx.Done():
			logger.Info("scheduling engine stopping")
			return nil
		case <-ticker.C:
		case <-e.wake:
		}
	}
}

// RunOnce claims whatever is due now, runs it and waits for completion. It
// returns the number of jobs processed.
func (e *Engine) RunOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		n, more, err := e.claimAndStart(ctx)
		total += n
		if err != nil || !more {
			e.wg.Wait()
			return total, err
		}
		if n == 0 {
			e.wg.Wait()
		}
	}
}

// claimAndStart leases at most as many jobs as there are free workers and
// starts them. more reports whether further jobs may be waiting.
func (e *Engine) claimAndStart(ctx context.Context) (int, bool, error) {
	free := cap(e.sem) - len(e.sem)
	if free == 0 {
		e.saturated.Store(true)
		return 0, true, nil
	}
	limit := min(free, e.cfg.BatchSize)

	jobs, err := e.queue.Claim(ctx, e.now(), e.cfg.Lease, limit)
	if err != nil {
		return 0, false, err
	}
	for _, job := range jobs {
		e.sem <- struct{}{}
		e.wg.Add(1)
		go e.process(ctx, job)
	}
	return len(jobs), len(jobs) == limit, nil
}

func (e *Engine) process(ctx context.Context, job models.ScheduledJob) {
	defer func() {
		<-e.sem
		if e.saturated.CompareAndSwap(true, false) {
			e.signal()
		}
		e.wg.Done()
	}()

	// A running job finishes even when shutdown starts, bounded by its lease.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Lease)
	defer cancel()

	key := job.JobKey
	log := []any{"job", key.String(), "attempt", job.Attempts}

	err := e.invoke(jobCtx, job)
	switch {
	case err == nil:
		if err := e.queue.Ack(jobCtx, key); err != nil {
			logger.Error("failed to ack job", append(log, "error", err)...)
			return
		}
		logger.Debug("job done", log...)
	case job.Attempts >= e.cfg.MaxAttempts:
		logger.Error("job failed permanently", append(log, "error", err)...)
		if err := e.queue.Fail(jobCtx, key, err.Error()); err != nil {
			logger.Error("failed to park job", append(log, "error", err)...)
		}
	default:
		retryAt := e.now().Add(e.backoff(job.Attempts))
		logger.Warn("job failed, will retry", append(log, "error", err, "retry_at", retryAt)...)
		if err := e.queue.Nack(jobCtx, key, err.Error(), retryAt); err != nil {
			logger.Error("failed to release job", append(log, "error", err)...)
		}
	}
}

func (e *Engine) invoke(ctx context.Context, job models.ScheduledJob) (err error) {
	h, ok := e.handler(job.Kind)
	if !ok {
		return fmt.Errorf("no handler registered for %s jobs", job.Kind)
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job handler panicked", "job", job.JobKey.String(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

// backoff doubles the base delay for every attempt already made.
func (e *Engine) backoff(attempt int) time.Duration {
	d := e.cfg.RetryBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= e.cfg.MaxBackoff {
			return e.cfg.MaxBackoff
		}
	}
	return min(d, e.cfg.MaxBackoff)
}
