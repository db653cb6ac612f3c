package exec

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Job is one independent validation program to run against a backend.
type Job func(x Executable) error

// Pool runs many independent jobs concurrently on a fixed number of
// workers. Each worker owns one backend instance, so jobs never share
// mutable backend state. A panic inside a job is caught and reported as
// that job's error; it never takes the pool down.
type Pool struct {
	workers int
	new     func() (Executable, error)
}

// NewPool builds a pool of the given size. newBackend is called once per
// worker to create its private backend instance.
func NewPool(workers int, newBackend func() (Executable, error)) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, new: newBackend}
}

// Run executes every job and returns a slice of per-job results, indexed
// like jobs. A backend construction failure cancels dispatch: jobs
// already handed out finish on their workers, the rest report the setup
// error. ctx cancellation also stops dispatch but never interrupts a
// call in flight, since a single emulated call has no suspension point.
func (p *Pool) Run(ctx context.Context, jobs []Job) []error {
	results := make([]error, len(jobs))
	indexes := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < p.workers; w++ {
		g.Go(func() error {
			backend, err := p.new()
			if err != nil {
				return fmt.Errorf("backend setup: %w", err)
			}
			defer backend.Close()
			for i := range indexes {
				results[i] = runJob(jobs[i], backend)
			}
			return nil
		})
	}

	sent := 0
dispatch:
	for i := range jobs {
		select {
		case indexes <- i:
			sent++
		case <-gctx.Done():
			break dispatch
		}
	}
	close(indexes)

	// Every dispatched job has its result written before Wait returns;
	// the rest carry the setup failure or the cancellation cause.
	err := g.Wait()
	for i := sent; i < len(jobs); i++ {
		if err != nil {
			results[i] = err
		} else {
			results[i] = context.Cause(gctx)
		}
	}
	return results
}

func runJob(job Job, backend Executable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return job(backend)
}
