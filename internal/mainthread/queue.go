// Package mainthread marshals work onto a single owning goroutine. Producers
// on any goroutine Post tasks; the owner waits on Wake and calls Drain, which
// runs the queued tasks in FIFO order on its own goroutine.
package mainthread

import (
	"context"
	"log/slog"
	"sync"
)

// Task is a unit of work run by Drain.
type Task func(ctx context.Context) error

// Queue is a FIFO of tasks plus a wake signal.
type Queue struct {
	mu    sync.Mutex
	tasks []Task
	wake  chan struct{}
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Post enqueues task and signals the owner. It never blocks.
func (q *Queue) Post(task Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Wake receives a value after one or more Posts.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs queued tasks until the queue is empty, including tasks posted
// while draining. A failing task is logged and the next one runs. Drain
// returns the number of tasks run.
func (q *Queue) Drain(ctx context.Context) int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return n
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		if err := task(ctx); err != nil {
			slog.Error("queued task failed", "error", err)
		}
		n++
	}
}

// Run drains the queue every time it is woken until ctx is done. It is the
// loop a headless owner (the watch command) runs in place of a host event
// loop.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
			q.Drain(ctx)
		}
	}
}

// Dispatch posts fn and waits for the owner to run it, returning its error.
// fn runs on the owner's goroutine but with the caller's ctx, so its values
// and cancellation carry over. A task whose ctx ended before the owner got
// to it is not run. Dispatch returns ctx.Err() if ctx ends first.
func (q *Queue) Dispatch(ctx context.Context, fn Task) error {
	done := make(chan error, 1)
	q.Post(func(context.Context) error {
		if err := ctx.Err(); err != nil {
			done <- err
			return nil
		}
		err := fn(ctx)
		done <- err
		return err
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
