package jobs

import (
	"context"
	"sync"
	"sync/atomic"
)

// Waiter is a one-shot signal raised after the last worker of an executor
// has exited. Wait may be called once.
type Waiter struct {
	done   chan struct{}
	once   sync.Once
	err    error
	waited atomic.Bool
}

func newWaiter() *Waiter {
	return &Waiter{done: make(chan struct{})}
}

// Wait blocks until all workers have finished or ctx is done. It returns the
// producer error, if any, or the executor's cancellation cause. Calling Wait
// twice panics.
func (w *Waiter) Wait(ctx context.Context) error {
	if !w.waited.CompareAndSwap(false, true) {
		panic("jobs: Waiter.Wait called twice")
	}
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the waiter is signaled.
func (w *Waiter) Done() <-chan struct{} {
	return w.done
}

func (w *Waiter) signal(err error) {
	w.once.Do(func() {
		w.err = err
		close(w.done)
	})
}
