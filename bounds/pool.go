package bounds

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultTimeout bounds the duration of one rasterization.
const DefaultTimeout = 30 * time.Second

// Pool limits the number of concurrent rasterizations,
// and the duration of each of them.
// It may be shared by several analyzers.
type Pool struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewPool returns a pool running at most `workers` jobs at once.
// A zero or negative `timeout` disables the time limit.
func NewPool(workers int, timeout time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers)), timeout: timeout}
}

// Run waits for a free worker and calls `fn`.
// If the timeout expires (or `ctx` is canceled) before `fn` returns,
// Run returns the context error without waiting for `fn`, whose
// worker is only released when it actually returns.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for a worker: %w", err)
	}
	cancel := func() {}
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		defer cancel()
		done <- fn(ctx)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
