package telemetry

import "context"

// BlockingPool bounds concurrent blocking work to a fixed number of
// goroutines via a buffered channel used as a semaphore, the same technique
// microbatch.Batcher uses to cap concurrent BatchProcessor calls
// (runningBatchCh in microbatch.go) — Go's idiomatic substitute for a
// dedicated blocking-safe executor, since there is no reactor/executor split
// to render directly.
type BlockingPool struct {
	sem chan struct{}
}

// NewBlockingPool creates a BlockingPool allowing up to size concurrent
// RunBlocking calls. size <= 0 is treated as 1.
func NewBlockingPool(size int) *BlockingPool {
	if size < 1 {
		size = 1
	}
	return &BlockingPool{sem: make(chan struct{}, size)}
}

// RunBlocking runs fn on a dedicated goroutine once a pool slot is free,
// returning its result. If ctx is cancelled before a slot frees up, or while
// fn is still running, RunBlocking returns ctx.Err() without waiting for fn
// to finish (fn's goroutine is left to complete on its own; it has no way to
// observe the abandonment since extraction work is assumed uninterruptible).
func RunBlocking[T any](ctx context.Context, p *BlockingPool, fn func() (T, error)) (T, error) {
	var zero T

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() { <-p.sem }()
		v, err := fn()
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
