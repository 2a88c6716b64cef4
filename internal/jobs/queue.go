package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Queue.
type State int32

const (
	// Open accepts new jobs.
	Open State = iota
	// Draining rejects new jobs; queued ones are still consumed.
	Draining
	// Closed is empty with no worker left. A closed queue cannot be reused.
	Closed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// entry is a job owned by the queue until a worker claims it.
type entry[T any] struct {
	id   uuid.UUID
	job  Job[T]
	info any
}

// Queue is a bounded multi-producer/multi-consumer job queue.
type Queue[T any] struct {
	mu    sync.RWMutex
	state State
	items chan entry[T]
	abort <-chan struct{}
}

// newQueue creates an open queue holding at most capacity pending jobs.
// Blocked producers give up when abort is closed.
func newQueue[T any](capacity int, abort <-chan struct{}) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		items: make(chan entry[T], capacity),
		abort: abort,
	}
}

// State returns the current lifecycle state.
func (q *Queue[T]) State() State {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.state
}

// add enqueues e, blocking while the queue is full. The read lock is held
// across the send so drain cannot close the channel underneath it.
func (q *Queue[T]) add(ctx context.Context, e entry[T]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	switch q.state {
	case Draining:
		return ErrQueueDraining
	case Closed:
		return ErrQueueClosed
	}

	select {
	case q.items <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.abort:
		return ErrQueueClosed
	}
}

// next blocks until a job is available. It returns false once the queue is
// draining and empty, or ctx is done.
func (q *Queue[T]) next(ctx context.Context) (entry[T], bool) {
	select {
	case e, ok := <-q.items:
		return e, ok
	case <-ctx.Done():
		return entry[T]{}, false
	}
}

// drain moves an open queue to Draining. Repeated calls are no-ops.
func (q *Queue[T]) drain() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != Open {
		return
	}
	q.state = Draining
	close(q.items)
}

// close marks the queue Closed, draining it first if needed.
func (q *Queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == Open {
		close(q.items)
	}
	q.state = Closed
}
