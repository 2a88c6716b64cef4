// Package jobs implements a bounded producer/consumer job executor.
//
// An Executor owns one Queue and a fixed number of worker goroutines:
//   - Start launches the workers and optionally returns a Waiter
//   - AddJob (or a Producer) pushes jobs into the queue
//   - Stop moves the queue to Draining; queued jobs still run
//   - the last worker to exit closes the queue and signals the Waiter
//
// Every executed job yields exactly one Result through the OnExecuted
// callback. A job that returns an error or panics produces a failed Result
// and the worker keeps consuming. The callback runs on the worker goroutine
// and must not block for long.
package jobs
