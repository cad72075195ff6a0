// Package parallel runs independent simulation tasks on a bounded worker group.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers normalizes a configured worker count: zero or negative means one
// worker per CPU, and there are never more workers than tasks.
func Workers(configured, tasks int) int {
	w := configured
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	if w > tasks {
		w = tasks
	}
	if w < 1 {
		w = 1
	}
	return w
}

// For calls fn(ctx, i) for every i in [0, n) on at most workers goroutines.
// fn must only write to state owned by index i. The first error cancels ctx
// for the remaining tasks and is returned; tasks not yet started are skipped
// once ctx is done.
func For(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers, n))

	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
