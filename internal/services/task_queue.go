package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/observability"
	"github.com/getsentry/sentry-go"
)

// TaskError is published on TaskQueue.Errors for every failed task.
type TaskError struct {
	Kind string
	Err  error
	At   time.Time
}

type task struct {
	kind string
	run  func(ctx context.Context) error
}

// TaskQueue runs fire-and-forget work (rescans, notifications) off the
// request path. Submit never blocks; when the queue is full or shut down the
// task is dropped and counted.
type TaskQueue struct {
	tasks   chan task
	errs    chan TaskError
	workers int
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewTaskQueue(workers, size int, timeout time.Duration) *TaskQueue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 64
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskQueue{
		tasks:   make(chan task, size),
		errs:    make(chan TaskError, size),
		workers: workers,
		timeout: timeout,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (q *TaskQueue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.loop()
	}
}

// Errors exposes task failures. Undrained errors are dropped once the buffer
// fills up; they are always logged first.
func (q *TaskQueue) Errors() <-chan TaskError {
	return q.errs
}

// Submit enqueues fn and reports whether it was accepted.
func (q *TaskQueue) Submit(kind string, fn func(ctx context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		observability.BackgroundTasks.WithLabelValues(kind, "dropped").Inc()
		return false
	}
	select {
	case q.tasks <- task{kind: kind, run: fn}:
		observability.TaskQueueDepth.Set(float64(len(q.tasks)))
		return true
	default:
		slog.Warn("task queue full, dropping task", "kind", kind)
		observability.BackgroundTasks.WithLabelValues(kind, "dropped").Inc()
		return false
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish. When
// ctx expires first, running tasks are cancelled.
func (q *TaskQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		close(q.errs)
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *TaskQueue) loop() {
	defer q.wg.Done()
	for t := range q.tasks {
		observability.TaskQueueDepth.Set(float64(len(q.tasks)))
		q.execute(t)
	}
}

func (q *TaskQueue) execute(t task) {
	ctx, cancel := context.WithTimeout(q.baseCtx, q.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return t.run(ctx)
	}()

	if err == nil {
		observability.BackgroundTasks.WithLabelValues(t.kind, "ok").Inc()
		return
	}

	observability.BackgroundTasks.WithLabelValues(t.kind, "error").Inc()
	slog.Warn("background task failed", "kind", t.kind, "error", err)
	select {
	case q.errs <- TaskError{Kind: t.kind, Err: err, At: time.Now()}:
	default:
	}
}

// DrainTaskErrors forwards task failures to sentry until the queue shuts down.
func DrainTaskErrors(errs <-chan TaskError) {
	for te := range errs {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("task_kind", te.Kind)
			sentry.CaptureException(te.Err)
		})
	}
}
