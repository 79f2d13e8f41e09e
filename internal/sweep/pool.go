package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/san-kum/isingsim/internal/ising"
	"github.com/san-kum/isingsim/internal/observables"
	"golang.org/x/sync/errgroup"
)

// Outcome is the result slot of one submitted task. Exactly one of
// Aggregate (with Err nil) or Err is meaningful.
type Outcome struct {
	Index     int
	Task      Task
	Result    *ising.Result
	Aggregate observables.Aggregate
	Err       *TaskError
}

func (o Outcome) Failed() bool { return o.Err != nil }

// Pool runs independent tasks on a fixed number of workers.
type Pool struct {
	workers int
	logger  *slog.Logger
	exec    Executor
	discard bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger for task completion and failure events.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithExecutor replaces the default Execute.
func WithExecutor(exec Executor) Option {
	return func(p *Pool) { p.exec = exec }
}

// DiscardSeries drops the raw step series once they are reduced.
func DiscardSeries() Option {
	return func(p *Pool) { p.discard = true }
}

// NewPool creates a pool of the given capacity; workers < 1 means one worker per CPU.
func NewPool(workers int, opts ...Option) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		workers: workers,
		logger:  slog.New(slog.DiscardHandler),
		exec:    Execute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) Workers() int { return p.workers }

// Run executes every task exactly once and blocks until all have finished.
// The returned slice has one entry per task in input order. The error joins
// the TaskError of every failed task and is nil when all succeeded.
//
// Tasks not yet dispatched when ctx is canceled are not started; their slots
// carry the context error.
func (p *Pool) Run(ctx context.Context, tasks []Task) ([]Outcome, error) {
	out := make([]Outcome, len(tasks))
	if len(tasks) == 0 {
		return out, nil
	}

	workers := min(p.workers, len(tasks))
	queue := make(chan int)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for idx := range queue {
				out[idx] = p.execute(idx, tasks[idx])
			}
			return nil
		})
	}

	next := 0
dispatch:
	for ; next < len(tasks); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- next:
		}
	}
	close(queue)

	for idx := next; idx < len(tasks); idx++ {
		out[idx] = Outcome{Index: idx, Task: tasks[idx], Err: newTaskError(idx, tasks[idx], ctx.Err())}
	}

	_ = g.Wait()

	var errs []error
	for _, o := range out {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return out, errors.Join(errs...)
}

func (p *Pool) execute(idx int, t Task) (o Outcome) {
	o = Outcome{Index: idx, Task: t}

	defer func() {
		if r := recover(); r != nil {
			o.Result = nil
			o.Err = newTaskError(idx, t, fmt.Errorf("panic: %v", r))
			p.logger.Warn("task panicked", "index", idx, "l", t.L, "t", t.T, "panic", r)
		}
	}()

	res, err := p.exec(t)
	if err == nil && (res == nil || len(res.Series) == 0) {
		err = ErrNoSeries
	}
	if err != nil {
		o.Err = newTaskError(idx, t, err)
		p.logger.Warn("task failed", "index", idx, "l", t.L, "t", t.T, "seed", t.Seed, "error", err)
		return o
	}

	agg, err := observables.Reduce(t.L, res.Series[0], res.Duration)
	if err != nil {
		o.Err = newTaskError(idx, t, err)
		p.logger.Warn("task reduction failed", "index", idx, "l", t.L, "t", t.T, "error", err)
		return o
	}

	if p.discard {
		res.Series = nil
	}
	o.Result = res
	o.Aggregate = agg

	p.logger.Debug("task complete", "index", idx, "l", t.L, "t", t.T, "duration", res.Duration)
	return o
}
