package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity bounds the number of pending jobs per queue.
const DefaultCapacity = 64

// Option configures an Executor.
type Option func(*settings)

type settings struct {
	capacity int
	logger   *slog.Logger
}

// WithCapacity sets how many jobs may wait in the queue before AddJob blocks.
func WithCapacity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithLogger sets the logger used for worker lifecycle and job failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// Executor runs jobs from one queue on a fixed set of workers. It is
// single-use: once its queue is closed it cannot be started again.
type Executor[T any] struct {
	cfg        settings
	onExecuted func(Result[T])

	mu          sync.Mutex
	started     bool
	queue       *Queue[T]
	workers     int
	waiter      *Waiter
	cancel      context.CancelFunc
	producerErr error

	finished atomic.Int32
}

// NewExecutor creates an executor. onExecuted receives every Result on the
// worker goroutine that produced it; it may be nil.
func NewExecutor[T any](onExecuted func(Result[T]), opts ...Option) *Executor[T] {
	cfg := settings{
		capacity: DefaultCapacity,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Executor[T]{cfg: cfg, onExecuted: onExecuted}
}

// Start creates the queue and launches workers. When withWaiter is true the
// returned Waiter fires once the last worker has exited.
func (e *Executor[T]) Start(ctx context.Context, workers int, withWaiter bool) (*Waiter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil, ErrAlreadyStarted
	}
	if workers < 0 {
		return nil, fmt.Errorf("invalid worker count: %d", workers)
	}

	ctx, cancel := context.WithCancel(ctx)
	e.started = true
	e.cancel = cancel
	e.workers = workers
	e.queue = newQueue[T](e.cfg.capacity, ctx.Done())
	if withWaiter {
		e.waiter = newWaiter()
	}

	if workers == 0 {
		e.queue.close()
		cancel()
		if e.waiter != nil {
			e.waiter.signal(nil)
		}
		return e.waiter, nil
	}

	e.cfg.logger.Debug("starting workers", "workers", workers, "capacity", e.cfg.capacity)
	for i := 0; i < workers; i++ {
		go e.work(ctx, i)
	}

	return e.waiter, nil
}

// AddJob enqueues job and returns its identifier. It fails with
// ErrQueueDraining after Stop.
func (e *Executor[T]) AddJob(ctx context.Context, job Job[T]) (uuid.UUID, error) {
	return e.AddJobWithInfo(ctx, job, nil)
}

// AddJobWithInfo enqueues job with an opaque value echoed in its Result.
func (e *Executor[T]) AddJobWithInfo(ctx context.Context, job Job[T], info any) (uuid.UUID, error) {
	q, err := e.currentQueue()
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	if err := q.add(ctx, entry[T]{id: id, job: job, info: info}); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Stop moves the queue to Draining. Queued and running jobs complete; no new
// job is accepted. Stop before Start is a no-op.
func (e *Executor[T]) Stop() {
	q, err := e.currentQueue()
	if err != nil {
		return
	}
	q.drain()
}

// State returns the queue state, or Open before Start.
func (e *Executor[T]) State() State {
	q, err := e.currentQueue()
	if err != nil {
		return Open
	}
	return q.State()
}

func (e *Executor[T]) currentQueue() (*Queue[T], error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil, ErrNotStarted
	}
	return e.queue, nil
}

// work is the worker loop: claim, execute, report, until the queue is
// drained or ctx is done.
func (e *Executor[T]) work(ctx context.Context, id int) {
	defer e.workerExited(ctx, id)

	for {
		ent, ok := e.queue.next(ctx)
		if !ok {
			return
		}
		e.execute(ctx, id, ent)
	}
}

func (e *Executor[T]) execute(ctx context.Context, worker int, ent entry[T]) {
	start := time.Now()
	res := Result[T]{ID: ent.id, Info: ent.info, Worker: worker}
	res.Value, res.Err = runSafely(ctx, ent.job)
	res.Duration = time.Since(start)

	if res.Err != nil {
		e.cfg.logger.Debug("job failed", "job", ent.id, "worker", worker, "error", res.Err)
	}
	if e.onExecuted != nil {
		e.onExecuted(res)
	}
}

// runSafely converts a panic inside job into a PanicError.
func runSafely[T any](ctx context.Context, job Job[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return job.Run(ctx)
}

// workerExited counts finished workers. The last one closes the queue and
// signals the waiter, whichever worker that is.
func (e *Executor[T]) workerExited(ctx context.Context, id int) {
	n := e.finished.Add(1)
	e.cfg.logger.Debug("worker exited", "worker", id, "finished", n)
	if int(n) != e.workers {
		return
	}

	e.queue.close()

	e.mu.Lock()
	err := e.producerErr
	waiter := e.waiter
	cancel := e.cancel
	e.mu.Unlock()

	if err == nil {
		err = ctx.Err()
	}
	cancel()
	if waiter != nil {
		waiter.signal(err)
	}
}
