// Package taskloop drives a queue of work items to completion.
//
// Items are either async, running concurrently on a bounded pool without
// access to shared state, or sync, running one at a time on the goroutine
// that called Run with exclusive access to the shared context. Every item
// returns follow-up items, which are queued in order.
package taskloop

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/modmake/internal/log"
)

// Task is a work item over shared state C. A task must also implement
// AsyncTask[C] or SyncTask[C].
type Task[C any] interface {
	Name() string
}

// AsyncTask runs concurrently with other async tasks. It must not touch C.
type AsyncTask[C any] interface {
	Task[C]
	RunAsync(ctx context.Context) ([]Task[C], error)
}

// SyncTask runs with exclusive access to C.
type SyncTask[C any] interface {
	Task[C]
	RunSync(ctx context.Context, c *C) ([]Task[C], error)
}

type options struct {
	parallelism int
}

// Option configures Run.
type Option func(*options)

// WithParallelism bounds the number of async tasks running at once.
// Values below one mean GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

type result[C any] struct {
	task Task[C]
	next []Task[C]
	err  error
}

// Run executes tasks and everything they produce until the queue drains.
// The first failure cancels outstanding async tasks and is returned as is
// once they have stopped.
func Run[C any](ctx context.Context, c *C, tasks []Task[C], opts ...Option) error {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parallelism < 1 {
		o.parallelism = runtime.GOMAXPROCS(0)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(o.parallelism)
	results := make(chan result[C], o.parallelism)

	queue := append([]Task[C](nil), tasks...)
	pending := 0
	var runErr error

	spawn := func(t AsyncTask[C]) func() error {
		return func() error {
			next, err := t.RunAsync(ctx)
			select {
			case results <- result[C]{task: t, next: next, err: err}:
			case <-ctx.Done():
			}
			return nil
		}
	}

loop:
	for {
		saturated := false
		for len(queue) > 0 && !saturated {
			switch t := queue[0].(type) {
			case SyncTask[C]:
				next, err := t.RunSync(ctx, c)
				if err != nil {
					log.Trace(ctx, "sync task failed", "task", t.Name(), "error", err)
					runErr = err
					break loop
				}
				queue = append(queue, next...)
			case AsyncTask[C]:
				if !g.TryGo(spawn(t)) {
					if pending > 0 {
						// Drain a result before launching more.
						saturated = true
						continue
					}
					// Every running task has already reported; its slot
					// frees momentarily.
					g.Go(spawn(t))
				}
				pending++
			default:
				runErr = fmt.Errorf("task %s is neither sync nor async", queue[0].Name())
				break loop
			}
			queue = queue[1:]
		}

		if pending == 0 {
			break
		}
		select {
		case r := <-results:
			pending--
			if r.err != nil {
				log.Trace(ctx, "async task failed", "task", r.task.Name(), "error", r.err)
				runErr = r.err
				break loop
			}
			queue = append(queue, r.next...)
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		}
	}

	cancel()
	_ = g.Wait()
	return runErr
}
