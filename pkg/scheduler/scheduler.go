package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Runner executes named fire-and-forget tasks on their own goroutines. All
// task contexts descend from one root context that Stop cancels, and Stop
// waits for running tasks to return (bounded by its own context).
//
// Runner satisfies the tracker's TaskScheduler collaborator.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopped atomic.Bool

	started   atomic.Uint64
	completed atomic.Uint64
	panics    atomic.Uint64

	logger *slog.Logger
}

// NewRunner creates a runner ready to accept tasks.
func NewRunner() *Runner {
	return NewRunnerWithLogger(slog.Default())
}

// NewRunnerWithLogger creates a runner that logs task panics to the given
// logger. A nil logger falls back to slog.Default.
func NewRunnerWithLogger(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// CreateTask runs fn on a new goroutine. The context passed to fn is
// cancelled when the runner stops. Tasks created after Stop are dropped
// silently; fire-and-forget scheduling has no error path.
func (r *Runner) CreateTask(name string, fn func(ctx context.Context)) {
	if r.stopped.Load() {
		return
	}

	r.wg.Add(1)
	r.started.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.panics.Add(1)
				r.logger.Error("scheduled task panicked",
					"task", name,
					"panic", rec)
				return
			}
			r.completed.Add(1)
		}()
		fn(r.ctx)
	}()
}

// Stop cancels all task contexts and waits for running tasks to return,
// or until ctx expires.
func (r *Runner) Stop(ctx context.Context) error {
	r.stopped.Store(true)
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until all currently running tasks return.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Stats holds runner counters.
type Stats struct {
	Started   uint64
	Completed uint64
	Panics    uint64
}

// Stats returns a snapshot of the task counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Started:   r.started.Load(),
		Completed: r.completed.Load(),
		Panics:    r.panics.Load(),
	}
}
