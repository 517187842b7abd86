package engine

import (
	"context"
	"log/slog"
)

// Worker runs engine calls on a single dedicated goroutine.
//
// Tasks execute one at a time in submission order. A caller whose context
// ends stops waiting, but a task that already started runs to completion
// so the engine is never interrupted mid-call.
//
// Thread-safety: Do and Stop are safe for concurrent use.
type Worker struct {
	name    string
	queue   *taskQueue
	stopped chan struct{}
	logger  *slog.Logger
}

// StartWorker starts a worker goroutine. The name is used in log records.
func StartWorker(name string, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		name:    name,
		queue:   newTaskQueue(),
		stopped: make(chan struct{}),
		logger:  logger,
	}
	go w.run()
	return w
}

// Do submits fn and waits for it to finish.
//
// Returns ErrWorkerStopped if the worker was stopped before fn was queued,
// ctx.Err() if ctx ended first, or fn's error. A task whose ctx ended before
// it started is skipped; one already running finishes in the background.
func (w *Worker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	if !w.queue.Enqueue(t) {
		return ErrWorkerStopped
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new work, waits for queued tasks to drain, and ends the
// worker goroutine. Calling Stop more than once is a no-op.
//
// Stop must not be called from inside a task.
func (w *Worker) Stop() {
	w.queue.Close()
	<-w.stopped
}

// Pending returns the number of queued tasks that have not started.
func (w *Worker) Pending() int {
	return w.queue.Len()
}

func (w *Worker) run() {
	defer close(w.stopped)
	w.logger.Debug("engine worker started", "worker", w.name)

	for {
		if t, ok := w.queue.TryDequeue(); ok {
			w.execute(t)
			continue
		}
		if w.queue.Drained() {
			w.logger.Debug("engine worker stopped", "worker", w.name)
			return
		}
		<-w.queue.Wait()
	}
}

// execute runs a task unless its caller already gave up.
func (w *Worker) execute(t task) {
	if err := t.ctx.Err(); err != nil {
		t.done <- err
		return
	}
	t.done <- t.fn(t.ctx)
}
