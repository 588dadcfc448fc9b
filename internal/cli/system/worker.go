package system

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/logger"
	"github.com/julianstephens/podcheck/internal/pidfile"
)

// WorkerCmd runs the scheduling engine and the resync sweeper until
// interrupted.
type WorkerCmd struct {
	NoSweep bool `help:"Only dispatch due jobs; do not run the resync sweeper."`
}

func (cmd *WorkerCmd) Run(ctx *cli.Context) error {
	release, err := pidfile.Acquire(ctx.PidfilePath(), ctx.Now())
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warn("Failed to remove pidfile", "error", err)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd.run(sigCtx, ctx)
}

func (cmd *WorkerCmd) run(c context.Context, ctx *cli.Context) error {
	engine, err := ctx.Engine(c)
	if err != nil {
		return err
	}

	c, cancel := context.WithCancel(c)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(c); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Worker component stopped", "component", name, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				// One component failing stops the other.
				cancel()
			}
		}()
	}

	start("engine", engine.Run)
	if !cmd.NoSweep {
		sw, err := ctx.Sweeper(c)
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		start("sweeper", sw.Run)
	}

	logger.Info("Worker started", "pid", os.Getpid(), "store", ctx.Store.Describe(), "queue", ctx.Config.Queue.Backend)
	ctx.Println("podcheck worker running, press Ctrl+C to stop")
	wg.Wait()
	logger.Info("Worker stopped")
	return errors.Join(errs...)
}
