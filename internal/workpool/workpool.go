// Package workpool runs per-item work on a bounded set of goroutines while
// a single coordinator consumes the results in input order.
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// lookahead is how many items per worker may be started ahead of consume
const lookahead = 2

type slot[R any] struct {
	done    chan struct{}
	started bool
	result  R
}

// Ordered applies fn to every item on at most workers goroutines and calls
// consume with each result in input order on the calling goroutine.
//
// At most lookahead*workers items are started ahead of the last consumed
// one. Cancellation is polled before each item is consumed: Ordered then
// stops handing out work, waits for the items already running and returns
// ctx.Err(). An error from consume stops the run the same way and is
// returned as is. fn must not block indefinitely.
func Ordered[T, R any](ctx context.Context, workers int, items []T, fn func(T) R, consume func(T, R) error) error {
	if len(items) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}

	slots := make([]*slot[R], len(items))
	for i := range slots {
		slots[i] = &slot[R]{done: make(chan struct{})}
	}

	feedCtx, stop := context.WithCancel(ctx)
	defer stop()

	var g errgroup.Group
	g.SetLimit(workers)
	window := semaphore.NewWeighted(int64(lookahead * workers))
	fed := make(chan struct{})
	go func() {
		defer close(fed)
		for i, s := range slots {
			// Acquire may succeed on a cancelled context, so check both
			if err := window.Acquire(feedCtx, 1); err != nil || feedCtx.Err() != nil {
				close(s.done)
				continue
			}
			s.started = true
			g.Go(func() error {
				defer close(s.done)
				s.result = fn(items[i])
				return nil
			})
		}
	}()

	err := func() error {
		for i, s := range slots {
			if err := ctx.Err(); err != nil {
				return err
			}
			<-s.done
			if !s.started {
				return ctx.Err()
			}
			if err := consume(items[i], s.result); err != nil {
				return err
			}
			window.Release(1)
		}
		return nil
	}()

	stop()
	<-fed
	_ = g.Wait()
	return err
}
