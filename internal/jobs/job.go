package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for executor operations.
var (
	ErrNotStarted     = errors.New("executor not started")
	ErrAlreadyStarted = errors.New("executor already started")
	ErrQueueDraining  = errors.New("job queue is draining")
	ErrQueueClosed    = errors.New("job queue is closed")
	ErrJobPanicked    = errors.New("job panicked")
)

// Job is a unit of work yielding a typed value.
type Job[T any] interface {
	Run(ctx context.Context) (T, error)
}

// Func adapts a function to the Job interface.
type Func[T any] func(ctx context.Context) (T, error)

// Run calls f(ctx).
func (f Func[T]) Run(ctx context.Context) (T, error) {
	return f(ctx)
}

// Result is the outcome of one executed job: Value when Err is nil,
// otherwise a failure.
type Result[T any] struct {
	ID       uuid.UUID
	Info     any // supplied by the submitter, passed through untouched
	Value    T
	Err      error
	Worker   int
	Duration time.Duration
}

// OK reports whether the job succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// PanicError wraps a value recovered from a panicking job.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrJobPanicked, e.Value)
}

func (e *PanicError) Unwrap() error {
	return ErrJobPanicked
}
