// Package worker runs bounded fan-out jobs on behalf of a single request.
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool bounds how many jobs run at once.
type Pool struct {
	workers int
}

// NewPool creates a pool that runs at most workers jobs concurrently.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Workers reports the concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// ForEach calls fn for every index in [0, n) and waits for all of them.
// The first error cancels the context handed to the remaining jobs and is
// returned. Jobs that must never fail should handle their own errors.
func (p *Pool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}

	return g.Wait()
}
