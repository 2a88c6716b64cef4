package jobs

import (
	"context"
	"fmt"
)

// Submit pushes a job with optional info into a running executor.
type Submit[T any] func(job Job[T], info any) error

// Producer generates jobs concurrently with the workers consuming them.
type Producer[T any] interface {
	Produce(ctx context.Context, submit Submit[T]) error
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc[T any] func(ctx context.Context, submit Submit[T]) error

// Produce calls f(ctx, submit).
func (f ProducerFunc[T]) Produce(ctx context.Context, submit Submit[T]) error {
	return f(ctx, submit)
}

// StartProducer starts workers and runs p on its own goroutine. When p
// returns the queue is stopped, so the returned Waiter fires after every
// produced job has executed. A producer error is returned by Waiter.Wait.
func (e *Executor[T]) StartProducer(ctx context.Context, workers int, p Producer[T]) (*Waiter, error) {
	if workers < 1 {
		return nil, fmt.Errorf("invalid worker count for producer: %d", workers)
	}

	waiter, err := e.Start(ctx, workers, true)
	if err != nil {
		return nil, err
	}

	go func() {
		submit := func(job Job[T], info any) error {
			_, err := e.AddJobWithInfo(ctx, job, info)
			return err
		}

		err := p.Produce(ctx, submit)
		if err != nil {
			e.mu.Lock()
			e.producerErr = err
			e.mu.Unlock()
		}
		e.Stop()
	}()

	return waiter, nil
}
