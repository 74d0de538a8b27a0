package server

import (
	"context"
	"errors"

	"axquery/internal/logging"
)

var (
	// ErrBusy is returned when the command queue is full.
	ErrBusy = errors.New("command queue full")

	// ErrStopped is returned once the worker has exited.
	ErrStopped = errors.New("worker stopped")
)

type job struct {
	run  func()
	done chan struct{}
}

// Worker runs submitted functions one at a time on a single goroutine. Every
// tree access goes through it, since node handles are not safe for concurrent
// use.
type Worker struct {
	jobs    chan job
	stopped chan struct{}
}

// NewWorker creates a worker with a bounded queue.
func NewWorker(queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Worker{
		jobs:    make(chan job, queueSize),
		stopped: make(chan struct{}),
	}
}

// Run executes jobs until ctx is done. Queued jobs that never ran see
// ErrStopped.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stopped)
	logging.Server("worker started (queue=%d)", cap(w.jobs))
	for {
		select {
		case <-ctx.Done():
			logging.Server("worker stopping: %v", ctx.Err())
			return nil
		case j := <-w.jobs:
			w.exec(j)
		}
	}
}

func (w *Worker) exec(j job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			logging.ServerError("job panicked: %v", r)
		}
	}()
	j.run()
}

// Do queues fn and waits for it to finish. It fails fast with ErrBusy when
// the queue is full.
func (w *Worker) Do(ctx context.Context, fn func()) error {
	j := job{run: fn, done: make(chan struct{})}
	select {
	case <-w.stopped:
		return ErrStopped
	default:
	}
	select {
	case w.jobs <- j:
	default:
		return ErrBusy
	}
	select {
	case <-j.done:
		return nil
	case <-w.stopped:
		// The job may have completed just before the worker exited.
		select {
		case <-j.done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued jobs.
func (w *Worker) Pending() int {
	return len(w.jobs)
}
